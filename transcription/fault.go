package transcription

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/kbukum/pilgi/errors"
)

// Fault categories shown as "Error type" in the failure envelope.
const (
	CategoryEngine      = "engine_error"
	CategoryTimeout     = "timeout"
	CategoryCancelled   = "cancelled"
	CategoryPanic       = "panic"
	CategoryBusy        = "busy"
	CategoryUnavailable = "unavailable"
	CategoryDecode      = "decode_error"
	CategoryInput       = "input_error"
)

// Categorized is implemented by errors that know their own fault category.
// Backends return these for failures with a meaningful name, e.g. an
// unreadable audio file.
type Categorized interface {
	Category() string
}

// Fault is an engine failure with a category label.
type Fault struct {
	category string
	err      error
}

// NewFault wraps err with an explicit category.
func NewFault(category string, err error) *Fault {
	return &Fault{category: category, err: err}
}

func (f *Fault) Error() string {
	if f.err == nil {
		return f.category
	}
	return f.err.Error()
}

func (f *Fault) Unwrap() error { return f.err }

// Category implements Categorized.
func (f *Fault) Category() string { return f.category }

type panicError struct {
	value any
}

func (p *panicError) Error() string { return fmt.Sprintf("engine panicked: %v", p.value) }

// FaultCategory names the kind of failure err represents.
func FaultCategory(err error) string {
	if err == nil {
		return ""
	}
	var c Categorized
	if stderrors.As(err, &c) && c.Category() != "" {
		return c.Category()
	}
	var p *panicError
	if stderrors.As(err, &p) {
		return CategoryPanic
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case stderrors.Is(err, context.Canceled):
		return CategoryCancelled
	}
	if appErr, ok := errors.AsAppError(err); ok {
		switch appErr.Code {
		case errors.ErrCodeBusy:
			return CategoryBusy
		case errors.ErrCodeTimeout:
			return CategoryTimeout
		case errors.ErrCodeServiceUnavailable, errors.ErrCodeConnectionFailed:
			return CategoryUnavailable
		}
		return strings.ToLower(string(appErr.Code))
	}
	return CategoryEngine
}

// faultMessage is the text rendered after "❌ Error: ".
func faultMessage(err error) string {
	if appErr, ok := errors.AsAppError(err); ok && appErr.Cause != nil &&
		appErr.Code == errors.ErrCodeEngineFault {
		return appErr.Cause.Error()
	}
	msg := err.Error()
	if msg == "" {
		return "unknown error"
	}
	return msg
}

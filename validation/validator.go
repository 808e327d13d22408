package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kbukum/pilgi/errors"
)

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator collects field errors for inputs that arrive one by one, such
// as the form fields of an upload or the flags of a CLI command.
type Validator struct {
	errs []FieldError
}

// New creates an empty Validator.
func New() *Validator { return &Validator{} }

// Fail records a field error.
func (v *Validator) Fail(field, message string) *Validator {
	v.errs = append(v.errs, FieldError{Field: field, Message: message})
	return v
}

// Errors returns the recorded field errors.
func (v *Validator) Errors() []FieldError { return v.errs }

// Validate returns a VALIDATION error listing every field, or nil.
func (v *Validator) Validate() *errors.AppError {
	if len(v.errs) == 0 {
		return nil
	}
	parts := make([]string, len(v.errs))
	for i, e := range v.errs {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	appErr := errors.Validation(strings.Join(parts, "; "))
	appErr.Details = map[string]any{"fields": v.errs}
	return appErr
}

// languagePattern accepts ISO 639-1/639-3 codes and the "auto" sentinel.
var languagePattern = regexp.MustCompile(`^(auto|[a-z]{2,3})$`)

const languageHint = "must be a language code such as 'en' or 'auto'"

// Language checks an optional language hint. Empty means auto-detect.
func (v *Validator) Language(field, value string) *Validator {
	if value != "" && !languagePattern.MatchString(value) {
		v.Fail(field, languageHint)
	}
	return v
}

package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/pilgi/errors"
)

// Kind says what went wrong with a sidecar call.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindUnreachable Kind = "unreachable"
	KindNotFound    Kind = "not_found"
	// KindBusy covers 429 and 503: the sidecar is up but asks us to wait.
	KindBusy Kind = "busy"
	// KindRejected covers other 4xx responses and requests that could not
	// be built.
	KindRejected Kind = "rejected"
	KindServer   Kind = "server"
	KindDecode   Kind = "decode"
)

// Error is a failed sidecar call.
type Error struct {
	Kind Kind
	// Status is 0 when no response arrived.
	Status int
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail()
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("sidecar %s (HTTP %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("sidecar %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same call may succeed later.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindUnreachable, KindBusy, KindServer:
		return true
	}
	return false
}

// Detail returns the message the sidecar put in its body. FastAPI-style
// {"detail": ...} and {"error": ...} bodies are unwrapped; anything else is
// returned trimmed and truncated.
func (e *Error) Detail() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return ""
	}
	var parsed struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(e.Body, &parsed) == nil {
		if s, ok := parsed.Detail.(string); ok && s != "" {
			return s
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	const maxDetail = 200
	if len(body) > maxDetail {
		body = body[:maxDetail] + "..."
	}
	return body
}

func statusError(status int, body []byte) *Error {
	var kind Kind
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		kind = KindBusy
	case status >= 400 && status < 500:
		kind = KindRejected
	default:
		kind = KindServer
	}
	return &Error{Kind: kind, Status: status, Body: body}
}

// KindOf returns the kind of a client error, or "" for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a client error worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// ToAppError maps a client error onto the application error taxonomy.
// service names the remote in the resulting message.
func ToAppError(service string, err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return apperrors.ExternalServiceError(service, err)
	}
	switch e.Kind {
	case KindTimeout:
		return apperrors.Timeout(service).WithCause(err)
	case KindUnreachable:
		return apperrors.ConnectionFailed(service).WithCause(err)
	case KindBusy:
		return apperrors.ServiceUnavailable(service).WithCause(err)
	case KindNotFound:
		return apperrors.NotFound(service, e.Detail()).WithCause(err)
	case KindRejected:
		return apperrors.InvalidInput(service, e.Detail()).WithCause(err)
	}
	return apperrors.ExternalServiceError(service, err)
}

package errors

import (
	"fmt"
	"maps"
)

// AppError is the error every pilgi surface reports. HTTP handlers turn it
// into a status plus an error envelope; sessions carry it in their error
// events.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause records the underlying error and returns e.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges details into e and returns e.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	maps.Copy(e.Details, details)
	return e
}

// WithDetail sets one detail and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	return e.WithDetails(map[string]any{key: value})
}

// New builds an AppError whose status and retryable flag come from code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Retryable:  IsRetryableCode(code),
		HTTPStatus: StatusFor(code),
	}
}

func newWith(code ErrorCode, message, key string, value any) *AppError {
	return New(code, message).WithDetail(key, value)
}

// ServiceUnavailable reports a dependency that is temporarily down.
func ServiceUnavailable(service string) *AppError {
	return newWith(ErrCodeServiceUnavailable,
		fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service), "service", service)
}

// ConnectionFailed reports a sidecar or store that could not be reached.
func ConnectionFailed(service string) *AppError {
	return newWith(ErrCodeConnectionFailed,
		fmt.Sprintf("Unable to connect to %s. Please verify the service is running.", service), "service", service)
}

// Timeout reports an operation that ran out of time.
func Timeout(operation string) *AppError {
	return newWith(ErrCodeTimeout, "The request took too long. Please try again.", "operation", operation)
}

// Busy reports a full admission queue in front of resource.
func Busy(resource string) *AppError {
	return newWith(ErrCodeBusy,
		fmt.Sprintf("The %s is busy. Please wait a moment and try again.", resource), "resource", resource)
}

// NotFound reports a missing transcript, upload or model. The id detail is
// omitted when empty.
func NotFound(resource, id string) *AppError {
	e := newWith(ErrCodeNotFound, fmt.Sprintf("The requested %s was not found.", resource), "resource", resource)
	if id != "" {
		e.Details["id"] = id
	}
	return e
}

// InvalidInput reports a rejected request field.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, "Invalid input: "+reason)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Validation reports a config or request that failed validation as a whole.
func Validation(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// MissingField reports a required form field that was not sent.
func MissingField(field string) *AppError {
	return newWith(ErrCodeMissingField, "Missing required field: "+field, "field", field)
}

// EngineNotReady rejects a session that arrived before the model was prepared.
func EngineNotReady(model string) *AppError {
	return newWith(ErrCodeEngineNotReady,
		"The model is not loaded yet. Prepare the model first, then try again.", "model", model)
}

// ModelLoadFailed reports a failed model acquisition or initialization.
func ModelLoadFailed(model string, cause error) *AppError {
	return newWith(ErrCodeModelLoadFailed, fmt.Sprintf("Failed to load model %s.", model), "model", model).
		WithCause(cause)
}

// EngineFault reports a recognition call that failed for this input.
func EngineFault(message string, cause error) *AppError {
	return New(ErrCodeEngineFault, message).WithCause(cause)
}

// Internal hides an unexpected error behind a generic message.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred. Please try again or contact support.").
		WithCause(cause)
}

// StorageError reports a failed upload or artifact store operation.
func StorageError(operation string, cause error) *AppError {
	return newWith(ErrCodeStorage, fmt.Sprintf("Storage %s failed. Please try again.", operation), "operation", operation).
		WithCause(cause)
}

// ExternalServiceError reports an unclassified failure from a sidecar.
func ExternalServiceError(service string, cause error) *AppError {
	return newWith(ErrCodeExternalService,
		fmt.Sprintf("The %s service encountered an error. Please try again.", service), "service", service).
		WithCause(cause)
}

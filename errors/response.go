package errors

import stderrors "errors"

// ErrorResponse is the JSON envelope every failed request answers with:
//
//	{"error": {"code": "ENGINE_BUSY", "message": "...", "retryable": true}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the client-facing part of an AppError. Cause and HTTP
// status stay on the server.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}}
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	return stderrors.AsType[*AppError](err)
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// Wrap returns the AppError already in err's chain, or hides err behind
// INTERNAL_ERROR. A nil err stays nil.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}

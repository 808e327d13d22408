package errors

import "net/http"

// ErrorCode is the machine-readable code clients switch on.
type ErrorCode string

const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	// ErrCodeBusy means the engine admission queue turned the caller away.
	ErrCodeBusy ErrorCode = "ENGINE_BUSY"

	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	// ErrCodeEngineNotReady means a session arrived before the model was prepared.
	ErrCodeEngineNotReady ErrorCode = "ENGINE_NOT_READY"
	// ErrCodeModelLoadFailed covers both acquiring and initializing the model.
	ErrCodeModelLoadFailed ErrorCode = "MODEL_LOAD_FAILED"
	// ErrCodeEngineFault means recognition failed for this particular input.
	ErrCodeEngineFault ErrorCode = "ENGINE_FAULT"

	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeStorage         ErrorCode = "STORAGE_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

type codeInfo struct {
	status    int
	retryable bool
}

var codes = map[ErrorCode]codeInfo{
	ErrCodeServiceUnavailable: {http.StatusServiceUnavailable, true},
	ErrCodeConnectionFailed:   {http.StatusServiceUnavailable, true},
	ErrCodeTimeout:            {http.StatusGatewayTimeout, true},
	ErrCodeBusy:               {http.StatusTooManyRequests, true},
	ErrCodeNotFound:           {http.StatusNotFound, false},
	ErrCodeInvalidInput:       {http.StatusBadRequest, false},
	ErrCodeMissingField:       {http.StatusBadRequest, false},
	ErrCodeEngineNotReady:     {http.StatusConflict, true},
	ErrCodeModelLoadFailed:    {http.StatusServiceUnavailable, true},
	ErrCodeEngineFault:        {http.StatusUnprocessableEntity, false},
	ErrCodeInternal:           {http.StatusInternalServerError, false},
	ErrCodeStorage:            {http.StatusInternalServerError, true},
	ErrCodeExternalService:    {http.StatusBadGateway, true},
}

// IsRetryableCode reports whether a caller may repeat a request that
// failed with code. Unknown codes are not retryable.
func IsRetryableCode(code ErrorCode) bool {
	return codes[code].retryable
}

// StatusFor returns the HTTP status for code, or 500 for unknown codes.
func StatusFor(code ErrorCode) int {
	if info, ok := codes[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestConstructorsFollowCodeTable(t *testing.T) {
	cause := fmt.Errorf("sidecar reset")
	tests := []struct {
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{ServiceUnavailable("whisper sidecar"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable, true},
		{ConnectionFailed("redis"), ErrCodeConnectionFailed, http.StatusServiceUnavailable, true},
		{Timeout("transcribe"), ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{Busy("distil-large-v3"), ErrCodeBusy, http.StatusTooManyRequests, true},
		{NotFound("transcript", "t-1"), ErrCodeNotFound, http.StatusNotFound, false},
		{InvalidInput("language", "bad tag"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{Validation("storage.bucket: is required"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{MissingField("file"), ErrCodeMissingField, http.StatusBadRequest, false},
		{EngineNotReady("base"), ErrCodeEngineNotReady, http.StatusConflict, true},
		{ModelLoadFailed("base", cause), ErrCodeModelLoadFailed, http.StatusServiceUnavailable, true},
		{EngineFault("could not decode audio", cause), ErrCodeEngineFault, http.StatusUnprocessableEntity, false},
		{Internal(cause), ErrCodeInternal, http.StatusInternalServerError, false},
		{StorageError("upload", cause), ErrCodeStorage, http.StatusInternalServerError, true},
		{ExternalServiceError("whisper", cause), ErrCodeExternalService, http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if tt.err.Code != tt.code || tt.err.HTTPStatus != tt.status || tt.err.Retryable != tt.retryable {
				t.Errorf("got %s/%d/%v, want %s/%d/%v",
					tt.err.Code, tt.err.HTTPStatus, tt.err.Retryable, tt.code, tt.status, tt.retryable)
			}
			if tt.err.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestUnknownCode(t *testing.T) {
	e := New("SOMETHING_ELSE", "odd")
	if e.HTTPStatus != http.StatusInternalServerError || e.Retryable {
		t.Errorf("unknown code mapped to %d retryable=%v", e.HTTPStatus, e.Retryable)
	}
}

func TestCauseIsReachable(t *testing.T) {
	cause := fmt.Errorf("download interrupted")
	err := fmt.Errorf("prepare: %w", ModelLoadFailed("distil-large-v3", cause))

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is did not find the cause")
	}
	if !strings.Contains(err.Error(), "download interrupted") {
		t.Errorf("cause missing from message: %q", err.Error())
	}
	if NotFound("transcript", "").Unwrap() != nil {
		t.Error("unexpected cause")
	}
}

func TestDetails(t *testing.T) {
	e := NotFound("transcript", "")
	if _, ok := e.Details["id"]; ok {
		t.Error("empty id should be omitted")
	}

	e.WithDetail("session_id", "s-1").WithDetails(map[string]any{"backend": "whisper"})
	e.WithDetail("session_id", "s-2")
	want := map[string]any{"resource": "transcript", "session_id": "s-2", "backend": "whisper"}
	if len(e.Details) != len(want) {
		t.Fatalf("details = %v", e.Details)
	}
	for k, v := range want {
		if e.Details[k] != v {
			t.Errorf("%s = %v, want %v", k, e.Details[k], v)
		}
	}

	if Internal(nil).WithDetails(nil).Details == nil {
		t.Error("WithDetails(nil) should still allocate")
	}
	if InvalidInput("", "empty body").Details != nil {
		t.Error("InvalidInput without a field should carry no details")
	}
}

func TestResponseEnvelope(t *testing.T) {
	body, err := json.Marshal(Busy("base").WithCause(fmt.Errorf("queue full")).ToResponse())
	if err != nil {
		t.Fatal(err)
	}
	got := string(body)
	for _, want := range []string{`"code":"ENGINE_BUSY"`, `"retryable":true`, `"resource":"base"`} {
		if !strings.Contains(got, want) {
			t.Errorf("envelope %s missing %s", got, want)
		}
	}
	if strings.Contains(got, "queue full") {
		t.Errorf("cause leaked to client: %s", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	orig := EngineNotReady("base")
	if Wrap(fmt.Errorf("session: %w", orig)) != orig {
		t.Error("Wrap should return the AppError from the chain")
	}
	if got, ok := AsAppError(fmt.Errorf("x: %w", orig)); !ok || got != orig {
		t.Error("AsAppError missed a wrapped AppError")
	}
	if IsAppError(fmt.Errorf("plain")) {
		t.Error("plain error reported as AppError")
	}

	plain := fmt.Errorf("disk full")
	if got := Wrap(plain); got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("Wrap(plain) = %+v", got)
	}
}

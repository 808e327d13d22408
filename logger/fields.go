package logger

import "time"

// Field keys shared across pilgi's log lines.
const (
	FieldComponent = "component"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldPhase     = "phase"
	FieldModel     = "model"
	FieldBackend   = "backend"
	FieldAudioPath = "audio_path"
	FieldOutcome   = "outcome"
	FieldTokens    = "tokens"
)

// Fields pairs up alternating keys and values. A non-string key drops its
// pair, as does a trailing key with no value.
//
//	log.Info("model ready", logger.Fields(logger.FieldModel, "base.en"))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 1; i < len(kvs); i += 2 {
		if k, ok := kvs[i-1].(string); ok {
			m[k] = kvs[i]
		}
	}
	return m
}

// ErrorFields names the failed operation and its error.
func ErrorFields(op string, err error) map[string]any {
	return MergeWithError(map[string]any{FieldOperation: op}, err)
}

// MergeWithError sets the error field, allocating when fields is nil.
func MergeWithError(fields map[string]any, err error) map[string]any {
	return with(fields, FieldError, err.Error())
}

// MergeWithDuration sets duration_ms, allocating when fields is nil.
func MergeWithDuration(fields map[string]any, d time.Duration) map[string]any {
	return with(fields, FieldDuration, d.Milliseconds())
}

func with(fields map[string]any, key string, v any) map[string]any {
	if fields == nil {
		fields = map[string]any{}
	}
	fields[key] = v
	return fields
}

package logger

import "context"

// ctxKey is the field name a context value is logged under.
type ctxKey string

// Order in which WithContext adds the ids.
var ctxKeys = []ctxKey{FieldTraceID, FieldSpanID, FieldRequestID, FieldSessionID}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey(FieldRequestID), id)
}

func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey(FieldSessionID), id)
}

// ContextWithTrace stores the ids of the active span.
func ContextWithTrace(ctx context.Context, traceID, spanID string) context.Context {
	ctx = context.WithValue(ctx, ctxKey(FieldTraceID), traceID)
	return context.WithValue(ctx, ctxKey(FieldSpanID), spanID)
}

// RequestIDFromContext returns "" when ctx has no request id.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey(FieldRequestID)).(string)
	return id
}

// WithContext adds the non-empty trace, span, request and session ids
// found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	zc := l.zl.With()
	for _, k := range ctxKeys {
		if v, _ := ctx.Value(k).(string); v != "" {
			zc = zc.Str(string(k), v)
		}
	}
	return l.derive(zc)
}

package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation is one traced transcription session, from its span start to
// the outcome it ended with. A nil Metrics skips the counters.
type Operation struct {
	span    trace.Span
	metrics *Metrics
	began   time.Time
}

// BeginOperation opens the span for name, tags it with the service and
// the non-empty ids, and counts the session as active.
func BeginOperation(ctx context.Context, name, service, requestID, sessionID string, m *Metrics) (context.Context, *Operation) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrOperationName, "transcribe"),
	}
	for key, v := range map[string]string{AttrRequestID: requestID, AttrSessionID: sessionID} {
		if v != "" {
			attrs = append(attrs, attribute.String(key, v))
		}
	}
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(attrs...))
	if m != nil {
		m.RecordSessionStart(ctx)
	}
	return ctx, &Operation{span: span, metrics: m, began: time.Now()}
}

func (o *Operation) Span() trace.Span { return o.span }

// End stamps outcome and elapsed time on the span, records err when set,
// then ends the span and the session gauge.
func (o *Operation) End(ctx context.Context, outcome string, err error) {
	if err != nil {
		SetSpanError(trace.ContextWithSpan(ctx, o.span), err)
		o.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	o.span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int64(AttrDurationMs, time.Since(o.began).Milliseconds()),
	)
	o.span.End()
	if o.metrics != nil {
		o.metrics.RecordSessionEnd(ctx, outcome)
	}
}

package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names. Durations are histograms in seconds.
const (
	MetricHTTPRequests     = "pilgi.http.requests.total"
	MetricHTTPActive       = "pilgi.http.requests.active"
	MetricHTTPDuration     = "pilgi.http.request.duration"
	MetricProviderCalls    = "pilgi.provider.calls.total"
	MetricProviderDuration = "pilgi.provider.call.duration"
	MetricErrors           = "pilgi.errors.total"
	MetricSessions         = "pilgi.sessions.total"
	MetricSessionsActive   = "pilgi.sessions.active"
	MetricEngineDuration   = "pilgi.engine.duration"
	MetricModelLoads       = "pilgi.model.load.total"
)

// Metrics is the set of instruments pilgi records into. Build it with
// NewMetrics; the zero value is not usable.
type Metrics struct {
	httpRequests     metric.Int64Counter
	httpActive       metric.Int64UpDownCounter
	httpDuration     metric.Float64Histogram
	providerCalls    metric.Int64Counter
	providerDuration metric.Float64Histogram
	errors           metric.Int64Counter
	sessions         metric.Int64Counter
	sessionsActive   metric.Int64UpDownCounter
	engineDuration   metric.Float64Histogram
	modelLoads       metric.Int64Counter
}

// NewMetrics registers every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var errs []error
	counter := func(dst *metric.Int64Counter, name, desc string) {
		var err error
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, wrapInstrument(name, err))
	}
	gauge := func(dst *metric.Int64UpDownCounter, name, desc string) {
		var err error
		*dst, err = meter.Int64UpDownCounter(name, metric.WithDescription(desc))
		errs = append(errs, wrapInstrument(name, err))
	}
	seconds := func(dst *metric.Float64Histogram, name, desc string) {
		var err error
		*dst, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		errs = append(errs, wrapInstrument(name, err))
	}

	counter(&m.httpRequests, MetricHTTPRequests, "HTTP requests by method and status")
	gauge(&m.httpActive, MetricHTTPActive, "HTTP requests in flight")
	seconds(&m.httpDuration, MetricHTTPDuration, "HTTP request latency")
	counter(&m.providerCalls, MetricProviderCalls, "Provider calls by status")
	seconds(&m.providerDuration, MetricProviderDuration, "Provider call latency")
	counter(&m.errors, MetricErrors, "Errors by type and component")
	counter(&m.sessions, MetricSessions, "Transcription sessions by outcome")
	gauge(&m.sessionsActive, MetricSessionsActive, "Transcription sessions streaming now")
	seconds(&m.engineDuration, MetricEngineDuration, "Recognition call latency")
	counter(&m.modelLoads, MetricModelLoads, "Model loads by result")

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func wrapInstrument(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("instrument %s: %w", name, err)
}

func attrs(kv ...string) metric.MeasurementOption {
	set := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 1; i < len(kv); i += 2 {
		set = append(set, attribute.String(kv[i-1], kv[i]))
	}
	return metric.WithAttributes(set...)
}

func (m *Metrics) RecordRequestStart(ctx context.Context) { m.httpActive.Add(ctx, 1) }

// RecordRequestEnd pairs with RecordRequestStart.
func (m *Metrics) RecordRequestEnd(ctx context.Context, service, method, status string, d time.Duration) {
	m.httpActive.Add(ctx, -1)
	m.httpRequests.Add(ctx, 1, attrs("service", service, "method", method, "status", status))
	m.httpDuration.Record(ctx, d.Seconds(), attrs("service", service, "method", method))
}

// RecordOperation counts one provider call; status is "ok" or "error".
func (m *Metrics) RecordOperation(ctx context.Context, provider, operation, status string, d time.Duration) {
	m.providerCalls.Add(ctx, 1, attrs("provider", provider, "operation", operation, "status", status))
	m.providerDuration.Record(ctx, d.Seconds(), attrs("provider", provider, "operation", operation))
}

func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errors.Add(ctx, 1, attrs("type", errType, "component", component))
}

func (m *Metrics) RecordSessionStart(ctx context.Context) { m.sessionsActive.Add(ctx, 1) }

// RecordSessionEnd pairs with RecordSessionStart and counts the outcome.
func (m *Metrics) RecordSessionEnd(ctx context.Context, outcome string) {
	m.sessionsActive.Add(ctx, -1)
	m.RecordSessionOutcome(ctx, outcome)
}

// RecordSessionOutcome counts a session rejected before it streamed, such
// as one failing validation or finding no model.
func (m *Metrics) RecordSessionOutcome(ctx context.Context, outcome string) {
	m.sessions.Add(ctx, 1, attrs("outcome", outcome))
}

func (m *Metrics) RecordEngine(ctx context.Context, model string, d time.Duration) {
	m.engineDuration.Record(ctx, d.Seconds(), attrs("model", model))
}

// RecordModelLoad counts a load that ended "ready" or "failed".
func (m *Metrics) RecordModelLoad(ctx context.Context, model, result string) {
	m.modelLoads.Add(ctx, 1, attrs("model", model, "result", result))
}

package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// collect returns the metrics recorded on reader keyed by instrument name.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumByAttr(t *testing.T, m metricdata.Metrics, key string) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected int64 sum, got %T", m.Name, m.Data)
	}
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

func recordingTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	custom := Config{Endpoint: "otel:4318", SampleRate: 0.25}
	custom.ApplyDefaults()
	if custom.Endpoint != "otel:4318" || custom.SampleRate != 0.25 {
		t.Errorf("explicit values must be kept: %+v", custom)
	}
}

func TestSetupDisabledGivesNoopMetrics(t *testing.T) {
	p, err := Setup(context.Background(), Config{}, "pilgi", "dev", "test")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if p.Metrics == nil {
		t.Fatal("expected metrics even when disabled")
	}
	p.Metrics.RecordSessionOutcome(context.Background(), "rejected")
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNewMetricsOnNoopMeter(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	m.RecordRequestStart(ctx)
	m.RecordRequestEnd(ctx, "pilgi", "POST /api/v1/transcriptions", "200", 100*time.Millisecond)
	m.RecordOperation(ctx, "whispercpp", "transcribe", "ok", 50*time.Millisecond)
	m.RecordError(ctx, "engine_fault", "session")
}

func TestSessionAndModelMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	ctx := context.Background()
	m.RecordSessionStart(ctx)
	m.RecordSessionStart(ctx)
	m.RecordSessionEnd(ctx, "completed")
	m.RecordSessionOutcome(ctx, "not_ready")
	m.RecordModelLoad(ctx, "base.en", "ready")
	m.RecordModelLoad(ctx, "base.en", "failed")
	m.RecordEngine(ctx, "base.en", 2*time.Second)

	got := collect(t, reader)

	outcomes := sumByAttr(t, got["pilgi.sessions.total"], "outcome")
	if outcomes["completed"] != 1 || outcomes["not_ready"] != 1 {
		t.Errorf("unexpected session outcomes: %v", outcomes)
	}

	active, ok := got["pilgi.sessions.active"].Data.(metricdata.Sum[int64])
	if !ok || len(active.DataPoints) != 1 || active.DataPoints[0].Value != 1 {
		t.Errorf("expected one active session, got %+v", got["pilgi.sessions.active"].Data)
	}

	loads := sumByAttr(t, got["pilgi.model.load.total"], "result")
	if loads["ready"] != 1 || loads["failed"] != 1 {
		t.Errorf("unexpected load results: %v", loads)
	}

	hist, ok := got["pilgi.engine.duration"].Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 2 {
		t.Errorf("expected a 2s engine duration, got %+v", got["pilgi.engine.duration"].Data)
	}
}

func TestOperationLifecycle(t *testing.T) {
	exporter := recordingTracer(t)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())
	metrics, _ := NewMetrics(mp.Meter("test"))

	ctx, op := BeginOperation(context.Background(), SpanSession, "pilgi", "req-1", "sess-1", metrics)
	if traceID, _ := TraceIDs(ctx); traceID == "" {
		t.Error("returned context does not carry the session span")
	}
	op.End(ctx, "fault", errors.New("decoder crashed"))

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != SpanSession {
		t.Fatalf("expected one session span, got %+v", spans)
	}
	attrs := attribute.NewSet(spans[0].Attributes...)
	if v, _ := attrs.Value(AttrSessionID); v.AsString() != "sess-1" {
		t.Errorf("expected session id attribute, got %q", v.AsString())
	}
	if _, ok := attrs.Value(AttrRequestID); !ok {
		t.Error("expected request id attribute")
	}
	if v, _ := attrs.Value(AttrOutcome); v.AsString() != "fault" {
		t.Errorf("expected outcome attribute, got %q", v.AsString())
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected the error to be recorded on the span")
	}

	outcomes := sumByAttr(t, collect(t, reader)["pilgi.sessions.total"], "outcome")
	if outcomes["fault"] != 1 {
		t.Errorf("expected fault outcome counted, got %v", outcomes)
	}
}

func TestOperationWithoutMetricsOrIDs(t *testing.T) {
	exporter := recordingTracer(t)
	ctx, op := BeginOperation(context.Background(), SpanSession, "pilgi", "", "", nil)
	op.End(ctx, "completed", nil)
	if op.Span().IsRecording() {
		t.Error("span still recording after End")
	}
	attrs := attribute.NewSet(exporter.GetSpans()[0].Attributes...)
	if _, ok := attrs.Value(AttrSessionID); ok {
		t.Error("empty session id was attached")
	}
}

func TestSpanHelpers(t *testing.T) {
	exporter := recordingTracer(t)

	ctx, span := StartSpan(context.Background(), SpanEngine)
	SetSpanAttribute(ctx, AttrModel, "base.en")
	SetSpanAttribute(ctx, AttrTokens, 12)
	SetSpanAttribute(ctx, "int64", int64(3))
	SetSpanAttribute(ctx, "float", 0.6)
	SetSpanAttribute(ctx, "bool", true)
	SetSpanAttribute(ctx, "slice", []string{"a"})
	SetSpanAttribute(ctx, "ignored", struct{}{})
	SetSpanError(ctx, errors.New("boom"))

	traceID, spanID := TraceIDs(ctx)
	if traceID == "" || spanID == "" {
		t.Error("expected trace ids for a recording span")
	}
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	attrs := attribute.NewSet(spans[0].Attributes...)
	if v, _ := attrs.Value(AttrTokens); v.AsInt64() != 12 {
		t.Errorf("expected token attribute 12, got %v", v.AsInt64())
	}
	if _, ok := attrs.Value("ignored"); ok {
		t.Error("unsupported attribute types must be dropped")
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, errors.New("no span"))
	if traceID, spanID := TraceIDs(ctx); traceID != "" || spanID != "" {
		t.Errorf("expected empty ids, got %q/%q", traceID, spanID)
	}
}

package transcription

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/pilgi/component"
	apperrors "github.com/kbukum/pilgi/errors"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/observability"
	"github.com/kbukum/pilgi/provider"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestRegistry(b Backend, policy Policy, opts ...RegistryOption) *ModelRegistry {
	cfg := ModelConfig{Backend: "fake", Name: testModel, Policy: policy}
	return NewModelRegistry(cfg, b, append([]RegistryOption{WithLogger(logger.NewNop())}, opts...)...)
}

func waitForStatus(t *testing.T, r *ModelRegistry, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for r.Status() != want {
		if time.Now().After(deadline) {
			t.Fatalf("status stayed %s, want %s", r.Status(), want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestEnsureLoadedIsIdempotent(t *testing.T) {
	backend := &fakeBackend{engine: &fakeEngine{}}
	r := newTestRegistry(backend, PolicyLazy)

	if r.Status() != StatusUnloaded || r.Handle() != nil {
		t.Fatalf("expected unloaded registry, got %s", r.Status())
	}

	first, err := r.EnsureLoaded(context.Background())
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	second, err := r.EnsureLoaded(context.Background())
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if first != second {
		t.Error("expected the same handle on repeated calls")
	}
	if backend.loads.Load() != 1 {
		t.Errorf("expected one load, got %d", backend.loads.Load())
	}
	if r.Status() != StatusReady || r.Handle() != first || !first.Ready() {
		t.Errorf("expected ready registry holding the handle")
	}
	if first.Name() != testModel || first.ShortName() != "distil-large-v3" || first.Backend() != "fake" {
		t.Errorf("unexpected handle identity: %s %s %s", first.Name(), first.ShortName(), first.Backend())
	}
}

func TestEnsureLoadedSingleFlight(t *testing.T) {
	backend := &fakeBackend{engine: &fakeEngine{}, gate: make(chan struct{})}
	r := newTestRegistry(backend, PolicyLazy)

	const callers = 8
	handles := make([]*EngineHandle, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = r.EnsureLoaded(context.Background())
		}(i)
	}

	waitForStatus(t, r, StatusLoading)
	close(backend.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Errorf("caller %d got a different handle", i)
		}
	}
	if backend.loads.Load() != 1 {
		t.Errorf("expected a single load, got %d", backend.loads.Load())
	}
}

func TestStatusDoesNotBlockDuringLoad(t *testing.T) {
	backend := &fakeBackend{engine: &fakeEngine{}, gate: make(chan struct{})}
	r := newTestRegistry(backend, PolicyLazy)

	go func() { _, _ = r.EnsureLoaded(context.Background()) }()
	waitForStatus(t, r, StatusLoading)

	done := make(chan Status, 1)
	go func() { done <- r.Status() }()
	select {
	case s := <-done:
		if s != StatusLoading {
			t.Errorf("expected loading, got %s", s)
		}
	case <-time.After(time.Second):
		t.Fatal("Status blocked on the in-flight load")
	}
	close(backend.gate)
	waitForStatus(t, r, StatusReady)
}

func TestWaiterCancellationLeavesLoadRunning(t *testing.T) {
	backend := &fakeBackend{engine: &fakeEngine{}, gate: make(chan struct{})}
	r := newTestRegistry(backend, PolicyLazy)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	if _, err := r.EnsureLoaded(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if r.Status() != StatusLoading {
		t.Fatalf("expected load still in flight, got %s", r.Status())
	}

	close(backend.gate)
	waitForStatus(t, r, StatusReady)
	if backend.loads.Load() != 1 {
		t.Errorf("expected one load, got %d", backend.loads.Load())
	}
}

func TestLoadFailureIsReportedNotRetried(t *testing.T) {
	backend := &fakeBackend{engine: &fakeEngine{}}
	backend.setErr(errors.New("download interrupted"))
	r := newTestRegistry(backend, PolicyLazy)

	_, err := r.EnsureLoaded(context.Background())
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeModelLoadFailed || !appErr.Retryable {
		t.Fatalf("expected retryable MODEL_LOAD_FAILED, got %v", err)
	}
	if r.Status() != StatusFailed || r.Handle() != nil {
		t.Errorf("expected failed registry, got %s", r.Status())
	}
	if rep := r.Report(); rep.Error != "download interrupted" {
		t.Errorf("expected cause in report, got %q", rep.Error)
	}

	time.Sleep(20 * time.Millisecond)
	if backend.loads.Load() != 1 {
		t.Errorf("failure must not be retried automatically, got %d loads", backend.loads.Load())
	}

	backend.setErr(nil)
	if _, err := r.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if r.Status() != StatusReady || backend.loads.Load() != 2 {
		t.Errorf("expected ready after a fresh attempt, got %s with %d loads", r.Status(), backend.loads.Load())
	}
	if r.Report().Error != "" {
		t.Errorf("error must clear after success, got %q", r.Report().Error)
	}
}

func TestBackendPanicBecomesLoadFailure(t *testing.T) {
	r := newTestRegistry(&fakeBackend{panicVal: "out of memory"}, PolicyLazy)
	_, err := r.EnsureLoaded(context.Background())
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeModelLoadFailed {
		t.Fatalf("expected MODEL_LOAD_FAILED, got %v", err)
	}
	if !strings.Contains(appErr.Cause.Error(), "out of memory") {
		t.Errorf("expected panic value in cause, got %v", appErr.Cause)
	}
	if r.Status() != StatusFailed {
		t.Errorf("expected failed, got %s", r.Status())
	}
}

func TestLoadFailuresAreReportedAlike(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		cause   string
	}{
		{"missing backend", nil, "no backend configured"},
		{"backend error", &fakeBackend{err: errors.New("weights missing")}, "weights missing"},
		{"backend panic", &fakeBackend{panicVal: "out of memory"}, "out of memory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := sdkmetric.NewManualReader()
			metrics, err := observability.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
			if err != nil {
				t.Fatalf("NewMetrics failed: %v", err)
			}
			var failed []LoadEvent
			r := newTestRegistry(tt.backend, PolicyLazy, WithMetrics(metrics), WithObserver(func(ev LoadEvent) {
				if ev.Phase == LoadFailed {
					failed = append(failed, ev)
				}
			}))

			_, err = r.EnsureLoaded(context.Background())
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Code != apperrors.ErrCodeModelLoadFailed {
				t.Fatalf("expected MODEL_LOAD_FAILED, got %v", err)
			}
			if len(failed) != 1 || !strings.Contains(failed[0].Error, tt.cause) {
				t.Errorf("expected one failed event mentioning %q, got %+v", tt.cause, failed)
			}
			if got := failedLoads(t, reader); got != 1 {
				t.Errorf("expected one failed load recorded, got %d", got)
			}
		})
	}
}

func failedLoads(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	var n int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != "pilgi.model.load.total" || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, _ := dp.Attributes.Value("result"); v.AsString() == "failed" {
					n += dp.Value
				}
			}
		}
	}
	return n
}

func TestLoadObserverSeesPhases(t *testing.T) {
	var mu sync.Mutex
	var phases []LoadPhase
	observe := func(ev LoadEvent) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, ev.Phase)
	}

	backend := &fakeBackend{engine: &fakeEngine{}}
	r := newTestRegistry(backend, PolicyLazy, WithObserver(observe))
	if _, err := r.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want := []LoadPhase{LoadStarting, LoadFetching, LoadInitializing, LoadReady}
	mu.Lock()
	got := append([]LoadPhase(nil), phases...)
	mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("phase %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestLoadObserverSeesFailure(t *testing.T) {
	backend := &fakeBackend{}
	backend.setErr(errors.New("checksum mismatch"))
	r := newTestRegistry(backend, PolicyLazy)

	var last LoadEvent
	r.Subscribe(func(ev LoadEvent) { last = ev })
	_, _ = r.EnsureLoaded(context.Background())

	if last.Phase != LoadFailed || last.Error != "checksum mismatch" || last.Model != testModel {
		t.Errorf("unexpected failure event: %+v", last)
	}
}

func TestStartPolicies(t *testing.T) {
	t.Run("lazy does not load", func(t *testing.T) {
		backend := &fakeBackend{engine: &fakeEngine{}}
		r := newTestRegistry(backend, PolicyLazy)
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if r.Status() != StatusUnloaded || backend.loads.Load() != 0 {
			t.Errorf("lazy start must not load, got %s", r.Status())
		}
	})

	t.Run("eager loads", func(t *testing.T) {
		backend := &fakeBackend{engine: &fakeEngine{}}
		r := newTestRegistry(backend, PolicyEager)
		if err := r.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if r.Status() != StatusReady {
			t.Errorf("expected ready, got %s", r.Status())
		}
	})

	t.Run("eager failure aborts start", func(t *testing.T) {
		backend := &fakeBackend{}
		backend.setErr(errors.New("no space left on device"))
		r := newTestRegistry(backend, PolicyEager)
		err := r.Start(context.Background())
		if err == nil {
			t.Fatal("expected eager start to fail")
		}
		if appErr, ok := apperrors.AsAppError(err); !ok || appErr.Code != apperrors.ErrCodeModelLoadFailed {
			t.Errorf("expected wrapped MODEL_LOAD_FAILED, got %v", err)
		}
	})
}

func TestStopReleasesEngine(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRegistry(&fakeBackend{engine: engine}, PolicyEager)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !engine.closed.Load() {
		t.Error("expected engine to be closed")
	}
	if r.Status() != StatusUnloaded {
		t.Errorf("expected unloaded after stop, got %s", r.Status())
	}
}

func TestRegistryHealth(t *testing.T) {
	backend := &fakeBackend{engine: &fakeEngine{}}
	r := newTestRegistry(backend, PolicyLazy)

	if h := r.Health(context.Background()); h.Status != component.StatusDegraded || h.Message != "unloaded" {
		t.Errorf("expected degraded/unloaded, got %+v", h)
	}

	backend.setErr(errors.New("bad weights"))
	_, _ = r.EnsureLoaded(context.Background())
	if h := r.Health(context.Background()); h.Status != component.StatusUnhealthy || h.Message != "bad weights" {
		t.Errorf("expected unhealthy with cause, got %+v", h)
	}

	backend.setErr(nil)
	_, _ = r.EnsureLoaded(context.Background())
	if h := r.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %+v", h)
	}
}

func TestRegistryDescribe(t *testing.T) {
	r := newTestRegistry(&fakeBackend{}, PolicyLazy)
	if d := r.Describe(); d.Type != "model" || !strings.Contains(d.Details, "distil-large-v3") {
		t.Errorf("unexpected description: %+v", d)
	}
}

func TestRegistryHandleRunsSessions(t *testing.T) {
	r := newTestRegistry(&fakeBackend{engine: &fakeEngine{text: "ready to go"}}, PolicyLazy)
	if _, err := r.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	events := drain(t, quietSession(r.Handle(), Request{AudioPath: "a.wav"}))
	if final := events[len(events)-1]; final.Kind != KindSuccess {
		t.Errorf("expected success, got %+v", final)
	}
}

func TestModelConfigDefaults(t *testing.T) {
	var cfg ModelConfig
	cfg.ApplyDefaults()
	if cfg.Backend != "whispercpp" || cfg.Name != testModel || cfg.Policy != PolicyLazy || cfg.MaxConcurrent != 1 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestShortName(t *testing.T) {
	tests := map[string]string{
		"distil-whisper/distil-large-v3": "distil-large-v3",
		"base.en":                        "base.en",
		"org/":                           "org",
		"a/b/c":                          "c",
	}
	for in, want := range tests {
		if got := ShortName(in); got != want {
			t.Errorf("ShortName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConcurrentSessionsQueueWithDefaultConfig(t *testing.T) {
	engine := &fakeEngine{text: "hello world", delay: 100 * time.Millisecond}
	r := NewModelRegistry(ModelConfig{}, &fakeBackend{engine: engine}, WithLogger(logger.NewNop()))
	handle, err := r.EnsureLoaded(context.Background())
	if err != nil {
		t.Fatalf("EnsureLoaded failed: %v", err)
	}

	const sessions = 3
	finals := make([]ProgressEvent, sessions)
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			events, err := provider.Collect[ProgressEvent](context.Background(), quietSession(handle, Request{AudioPath: "a.wav"}))
			if err != nil || len(events) == 0 {
				t.Errorf("session %d: stream error %v", i, err)
				return
			}
			finals[i] = events[len(events)-1]
		}(i)
	}
	wg.Wait()

	for i, final := range finals {
		if final.Kind != KindSuccess || final.Err != nil {
			t.Errorf("session %d: expected success, got kind=%s err=%v", i, final.Kind, final.Err)
		}
	}
	if engine.calls.Load() != sessions {
		t.Errorf("expected %d engine calls, got %d", sessions, engine.calls.Load())
	}
	if engine.maxActive.Load() != 1 {
		t.Errorf("engine calls must be serialized, saw %d at once", engine.maxActive.Load())
	}
}

func TestStopDuringLoadReleasesEngine(t *testing.T) {
	engine := &fakeEngine{}
	backend := &fakeBackend{engine: engine, gate: make(chan struct{})}
	r := newTestRegistry(backend, PolicyLazy)

	result := make(chan error, 1)
	go func() {
		_, err := r.EnsureLoaded(context.Background())
		result <- err
	}()
	waitForStatus(t, r, StatusLoading)

	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	close(backend.gate)

	if err := <-result; err == nil {
		t.Error("a load abandoned by Stop must not hand out an engine")
	}
	deadline := time.Now().Add(time.Second)
	for !engine.closed.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !engine.closed.Load() {
		t.Error("engine loaded after Stop was never closed")
	}
	if r.Handle() != nil {
		t.Error("registry must not keep an abandoned engine")
	}
}

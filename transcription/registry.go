package transcription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/errors"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/observability"
	"github.com/kbukum/pilgi/provider"
	"github.com/kbukum/pilgi/resilience"
)

var (
	_ component.Component   = (*ModelRegistry)(nil)
	_ component.Describable = (*ModelRegistry)(nil)
)

// LoadObserver is notified of every load phase. Observers run synchronously
// on the loading goroutine and must not block.
type LoadObserver func(LoadEvent)

// StatusReport is the readiness surface exposed to the UI.
type StatusReport struct {
	Status   Status     `json:"status"`
	Model    string     `json:"model"`
	Backend  string     `json:"backend"`
	Policy   Policy     `json:"policy"`
	Version  string     `json:"version,omitempty"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// ModelRegistry owns the engine lifecycle. At most one load is in flight at
// a time; concurrent EnsureLoaded callers wait for it and share its outcome.
type ModelRegistry struct {
	cfg     ModelConfig
	backend Backend
	lazy    *component.Lazy[*EngineHandle]
	log     *logger.Logger
	metrics *observability.Metrics
	mw      []provider.Middleware[Request, *Result]

	mu        sync.RWMutex
	observers []LoadObserver
}

// RegistryOption configures a ModelRegistry.
type RegistryOption func(*ModelRegistry)

// WithLogger sets the registry logger.
func WithLogger(l *logger.Logger) RegistryOption {
	return func(r *ModelRegistry) { r.log = l }
}

// WithMetrics records load outcomes and wraps engine calls with metrics.
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(r *ModelRegistry) { r.metrics = m }
}

// WithEngineMiddleware wraps every engine call of loaded handles.
func WithEngineMiddleware(mw ...provider.Middleware[Request, *Result]) RegistryOption {
	return func(r *ModelRegistry) { r.mw = append(r.mw, mw...) }
}

// WithObserver registers a load observer at construction.
func WithObserver(o LoadObserver) RegistryOption {
	return func(r *ModelRegistry) { r.observers = append(r.observers, o) }
}

// NewModelRegistry creates a registry for the configured backend. Nothing is
// loaded until Start (eager policy) or EnsureLoaded.
func NewModelRegistry(cfg ModelConfig, backend Backend, opts ...RegistryOption) *ModelRegistry {
	cfg.ApplyDefaults()
	r := &ModelRegistry{
		cfg:     cfg,
		backend: backend,
		log:     logger.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent("model")
	r.lazy = component.NewLazy("model", r.load).WithCloser(func(h *EngineHandle) error {
		return h.close()
	})
	return r
}

// Config returns the model configuration in effect.
func (r *ModelRegistry) Config() ModelConfig { return r.cfg }

// Subscribe adds a load observer.
func (r *ModelRegistry) Subscribe(o LoadObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// EnsureLoaded returns the ready handle, loading the engine first if needed.
// A ready registry returns immediately without touching the backend. A
// failed load is returned as MODEL_LOAD_FAILED and recorded; calling again
// starts a fresh attempt.
func (r *ModelRegistry) EnsureLoaded(ctx context.Context) (*EngineHandle, error) {
	h, err := r.lazy.Get(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.IsAppError(err) {
			return nil, err
		}
		return nil, errors.ModelLoadFailed(r.cfg.Name, err)
	}
	return h, nil
}

// Status reports the lifecycle state. It never blocks.
func (r *ModelRegistry) Status() Status {
	switch r.lazy.State() {
	case component.LazyLoading:
		return StatusLoading
	case component.LazyReady:
		return StatusReady
	case component.LazyFailed:
		return StatusFailed
	default:
		return StatusUnloaded
	}
}

// Handle returns the loaded handle or nil.
func (r *ModelRegistry) Handle() *EngineHandle {
	h, ok := r.lazy.Value()
	if !ok {
		return nil
	}
	return h
}

// Report returns the status along with model identity and the last error.
func (r *ModelRegistry) Report() StatusReport {
	report := StatusReport{
		Status:  r.Status(),
		Model:   r.cfg.Name,
		Backend: r.cfg.Backend,
		Policy:  r.cfg.Policy,
		Version: r.cfg.Version,
	}
	if h := r.Handle(); h != nil {
		at := h.LoadedAt()
		report.LoadedAt = &at
	}
	if err := r.lazy.Err(); err != nil {
		report.Error = err.Error()
		if appErr, ok := errors.AsAppError(err); ok && appErr.Cause != nil {
			report.Error = appErr.Cause.Error()
		}
	}
	return report
}

func (r *ModelRegistry) load(ctx context.Context) (handle *EngineHandle, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			handle, err = nil, r.fail(ctx, start, fmt.Errorf("backend panicked: %v", p))
		}
	}()
	r.publish(LoadStarting, fmt.Sprintf("Loading model %s", r.cfg.Name), nil)

	if r.backend == nil {
		return nil, r.fail(ctx, start, fmt.Errorf("no backend configured"))
	}

	engine, err := r.backend.Load(ctx, func(phase LoadPhase, message string) {
		if phase.Terminal() {
			return
		}
		r.publish(phase, message, nil)
	})
	if err == nil && engine == nil {
		err = fmt.Errorf("backend %s returned no engine", r.backend.Name())
	}
	if err != nil {
		return nil, r.fail(ctx, start, err)
	}

	mw := r.mw
	if r.metrics != nil {
		mw = append([]provider.Middleware[Request, *Result]{provider.WithMetrics[Request, *Result](r.metrics)}, mw...)
	}

	handle = NewEngineHandle(r.cfg.Name, engine,
		WithVersion(r.cfg.Version),
		WithAdmission(resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          r.cfg.Name,
			MaxConcurrent: r.cfg.MaxConcurrent,
			MaxWait:       r.cfg.AdmissionWait,
			OnReject: func(name string, err error) {
				r.log.Warn("engine busy, session rejected", logger.Fields(logger.FieldModel, name, logger.FieldError, err.Error()))
			},
		})),
		WithMiddleware(mw...),
	)

	r.publish(LoadReady, fmt.Sprintf("Model %s is ready", handle.ShortName()), nil)
	r.recordLoad(ctx, "ready")
	r.log.Info("model ready", logger.MergeWithDuration(logger.Fields(
		logger.FieldModel, r.cfg.Name,
		logger.FieldBackend, engine.Name(),
	), time.Since(start)))
	return handle, nil
}

// fail reports a load failure on every channel and returns the error
// EnsureLoaded callers see.
func (r *ModelRegistry) fail(ctx context.Context, start time.Time, cause error) *errors.AppError {
	appErr := errors.ModelLoadFailed(r.cfg.Name, cause)
	if r.backend != nil {
		appErr.WithDetail("backend", r.backend.Name())
	}
	r.publish(LoadFailed, "", cause)
	r.recordLoad(ctx, "failed")
	r.log.Error("model load failed", logger.MergeWithDuration(
		logger.ErrorFields("load", cause), time.Since(start)))
	return appErr
}

func (r *ModelRegistry) recordLoad(ctx context.Context, result string) {
	if r.metrics != nil {
		r.metrics.RecordModelLoad(ctx, r.cfg.Name, result)
	}
}

func (r *ModelRegistry) publish(phase LoadPhase, message string, err error) {
	ev := LoadEvent{
		Model:   r.cfg.Name,
		Phase:   phase,
		Message: message,
		At:      time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}

	if phase != LoadFailed {
		r.log.Info("model load phase", logger.Fields(logger.FieldPhase, string(phase), "message", message))
	}

	r.mu.RLock()
	observers := make([]LoadObserver, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, o := range observers {
		o(ev)
	}
}

// --- component.Component ---

// Name implements component.Component.
func (r *ModelRegistry) Name() string { return "model" }

// Start loads the model under the eager policy; a failure aborts start-up.
func (r *ModelRegistry) Start(ctx context.Context) error {
	if r.cfg.Policy != PolicyEager {
		r.log.Info("model will load on prepare", logger.Fields(logger.FieldModel, r.cfg.Name))
		return nil
	}
	if _, err := r.EnsureLoaded(ctx); err != nil {
		return fmt.Errorf("eager model load: %w", err)
	}
	return nil
}

// Stop releases the loaded engine.
func (r *ModelRegistry) Stop(_ context.Context) error {
	return r.lazy.Close()
}

// Health reports degraded while the model is not ready; a lazy service is
// still able to answer status and prepare requests.
func (r *ModelRegistry) Health(_ context.Context) component.Health {
	report := r.Report()
	h := component.Health{Name: r.Name(), Status: component.StatusHealthy, Message: string(report.Status)}
	switch report.Status {
	case StatusFailed:
		h.Status = component.StatusUnhealthy
		h.Message = report.Error
	case StatusUnloaded, StatusLoading:
		h.Status = component.StatusDegraded
	}
	return h
}

// Describe implements component.Describable.
func (r *ModelRegistry) Describe() component.Description {
	return component.Description{
		Name:    "Model",
		Type:    "model",
		Details: fmt.Sprintf("%s %s %s", r.cfg.Backend, ShortName(r.cfg.Name), r.cfg.Policy),
	}
}

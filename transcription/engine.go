package transcription

import (
	"context"
	"strings"
	"time"

	"github.com/kbukum/pilgi/provider"
	"github.com/kbukum/pilgi/resilience"
)

// Engine is a loaded recognition engine. Transcribe is one synchronous,
// blocking call; it should honour ctx cancellation where it can.
type Engine interface {
	provider.Provider
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// ReportFunc receives load progress from a Backend.
type ReportFunc func(phase LoadPhase, message string)

// Backend knows how to acquire and initialise one kind of engine.
// Load reports LoadFetching and LoadInitializing as it goes; the registry
// reports starting, ready and failed itself.
type Backend interface {
	provider.Provider
	Load(ctx context.Context, report ReportFunc) (Engine, error)
}

// BackendRegistry creates backends by name from the model config.
type BackendRegistry = provider.Registry[Backend, ModelConfig]

// NewBackendRegistry creates an empty backend registry.
func NewBackendRegistry() *BackendRegistry {
	return provider.NewRegistry[Backend, ModelConfig]()
}

// ModelConfig is the model section of the application config.
type ModelConfig struct {
	// Backend selects a registered backend ("whisper", "whispercpp").
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required"`
	// Name is the full model id, e.g. distil-whisper/distil-large-v3.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Version tags the loaded model in status reports.
	Version string `yaml:"version" mapstructure:"version"`
	// Policy is eager or lazy.
	Policy Policy `yaml:"policy" mapstructure:"policy" validate:"oneof=eager lazy"`
	// MaxConcurrent bounds simultaneous engine calls.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=1"`
	// AdmissionWait bounds how long a session queues for the engine. 0
	// queues until the request ends.
	AdmissionWait time.Duration `yaml:"admission_wait" mapstructure:"admission_wait" validate:"gte=0"`
}

// ApplyDefaults fills in unset model settings.
func (c *ModelConfig) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = "whispercpp"
	}
	if c.Name == "" {
		c.Name = "distil-whisper/distil-large-v3"
	}
	if c.Policy == "" {
		c.Policy = PolicyLazy
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
}

// ShortName returns the last path segment of a model id.
func ShortName(model string) string {
	if i := strings.LastIndex(model, "/"); i >= 0 && i < len(model)-1 {
		return model[i+1:]
	}
	return strings.TrimSuffix(model, "/")
}

// EngineHandle is a loaded engine lent to sessions. It is immutable after
// creation; the admission bulkhead bounds concurrent use.
type EngineHandle struct {
	name      string
	version   string
	loadedAt  time.Time
	engine    Engine
	invoker   provider.RequestResponse[Request, *Result]
	admission *resilience.Bulkhead
}

// HandleOption configures an EngineHandle.
type HandleOption func(*EngineHandle)

// WithAdmission sets the bulkhead guarding engine calls.
func WithAdmission(b *resilience.Bulkhead) HandleOption {
	return func(h *EngineHandle) { h.admission = b }
}

// WithMiddleware wraps engine calls, e.g. with provider.WithLogging.
func WithMiddleware(mw ...provider.Middleware[Request, *Result]) HandleOption {
	return func(h *EngineHandle) {
		h.invoker = provider.Chain(mw...)(h.invoker)
	}
}

// WithVersion sets the version tag.
func WithVersion(v string) HandleOption {
	return func(h *EngineHandle) { h.version = v }
}

// NewEngineHandle wraps a loaded engine.
func NewEngineHandle(name string, engine Engine, opts ...HandleOption) *EngineHandle {
	h := &EngineHandle{
		name:     name,
		loadedAt: time.Now(),
		engine:   engine,
	}
	if engine != nil {
		h.invoker = &provider.Func[Request, *Result]{
			ProviderName: engine.Name(),
			Available:    engine.IsAvailable,
			Fn:           engine.Transcribe,
		}
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.admission == nil {
		h.admission = resilience.NewBulkhead(resilience.DefaultBulkheadConfig(name))
	}
	return h
}

// Name returns the full model id.
func (h *EngineHandle) Name() string { return h.name }

// ShortName returns the model name used in the footer.
func (h *EngineHandle) ShortName() string { return ShortName(h.name) }

// Version returns the version tag.
func (h *EngineHandle) Version() string { return h.version }

// LoadedAt returns when the engine finished loading.
func (h *EngineHandle) LoadedAt() time.Time { return h.loadedAt }

// Ready reports whether the handle can serve sessions.
func (h *EngineHandle) Ready() bool { return h != nil && h.engine != nil && h.invoker != nil }

// Backend returns the engine's provider name.
func (h *EngineHandle) Backend() string {
	if h.engine == nil {
		return ""
	}
	return h.engine.Name()
}

// Admission returns the bulkhead guarding engine calls.
func (h *EngineHandle) Admission() *resilience.Bulkhead { return h.admission }

// invoke runs one engine call inside the admission bulkhead.
func (h *EngineHandle) invoke(ctx context.Context, req Request) (*Result, error) {
	return resilience.Call(ctx, h.admission, func() (*Result, error) {
		return h.invoker.Execute(ctx, req)
	})
}

// close releases the engine if it holds resources.
func (h *EngineHandle) close() error {
	if c, ok := h.engine.(provider.Closeable); ok {
		return c.Close(context.Background())
	}
	return nil
}

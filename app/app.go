package app

import (
	"context"
	"fmt"

	"github.com/kbukum/pilgi/api"
	"github.com/kbukum/pilgi/artifact"
	"github.com/kbukum/pilgi/bootstrap"
	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/observability"
	"github.com/kbukum/pilgi/provider"
	"github.com/kbukum/pilgi/redis"
	"github.com/kbukum/pilgi/server"
	"github.com/kbukum/pilgi/sse"
	"github.com/kbukum/pilgi/storage"
	"github.com/kbukum/pilgi/transcription"
	"github.com/kbukum/pilgi/transcription/whisper"
	"github.com/kbukum/pilgi/transcription/whispercpp"
	"github.com/kbukum/pilgi/version"
)

// Option adjusts how the service is assembled.
type Option func(*options)

type options struct {
	backend   transcription.Backend
	observers []transcription.LoadObserver
}

// WithBackend uses b instead of the backend named in the model config.
func WithBackend(b transcription.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithLoadObserver adds an observer to the model registry.
func WithLoadObserver(obs transcription.LoadObserver) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// Backends returns the backend registry with every built-in backend
// registered from cfg.
func Backends(cfg *Config) *transcription.BackendRegistry {
	reg := transcription.NewBackendRegistry()
	reg.RegisterFactory(whisper.ProviderName, whisper.Factory(cfg.Whisper))
	reg.RegisterFactory(whispercpp.ProviderName, whispercpp.Factory(cfg.WhisperCPP))
	return reg
}

// NewModelRegistry builds the registry for the configured backend.
func NewModelRegistry(cfg *Config, log *logger.Logger, metrics *observability.Metrics, opts ...Option) (*transcription.ModelRegistry, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	backend := o.backend
	if backend == nil {
		b, err := Backends(cfg).Create(cfg.Model.Backend, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("model backend %q: %w", cfg.Model.Backend, err)
		}
		backend = b
	}

	ropts := []transcription.RegistryOption{
		transcription.WithLogger(log),
		transcription.WithMetrics(metrics),
		transcription.WithEngineMiddleware(
			provider.WithLogging[transcription.Request, *transcription.Result](log.WithComponent("engine")),
			provider.WithTracing[transcription.Request, *transcription.Result](ServiceName),
		),
	}
	for _, obs := range o.observers {
		ropts = append(ropts, transcription.WithObserver(obs))
	}
	return transcription.NewModelRegistry(cfg.Model, backend, ropts...), nil
}

// Service holds the assembled components of the HTTP service.
type Service struct {
	Storage   *storage.Component
	Redis     *redis.Component
	Events    *sse.Component
	Model     *transcription.ModelRegistry
	Artifacts *artifact.Store
	Server    *server.Server
	API       *api.Handler
	Telemetry *observability.Providers
}

// Assemble builds the service and registers its components on a in start
// order: storage, redis, events, model, artifacts, server.
func Assemble(ctx context.Context, a *bootstrap.App[*Config], opts ...Option) (*Service, error) {
	cfg := a.Cfg
	log := a.Logger

	telemetry, err := observability.Setup(ctx, cfg.Observability, cfg.Name, version.Get().Short(), cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	a.OnStop(telemetry.Shutdown)

	svc := &Service{
		Storage:   storage.NewComponent(cfg.Storage, log),
		Events:    sse.NewComponent(api.BasePath + "/model/events"),
		Telemetry: telemetry,
	}

	artifactOpts := []artifact.Option{artifact.WithLogger(log)}
	if cfg.Redis.Enabled {
		svc.Redis = redis.NewComponent(cfg.Redis, log)
		artifactOpts = append(artifactOpts, artifact.WithRedisIndex(svc.Redis))
	}
	svc.Artifacts = artifact.New(cfg.Artifacts, svc.Storage, artifactOpts...)

	hub := svc.Events.Hub()
	opts = append(opts, WithLoadObserver(api.BroadcastLoadEvents(hub)))
	svc.Model, err = NewModelRegistry(cfg, log, telemetry.Metrics, opts...)
	if err != nil {
		return nil, err
	}

	svc.Server = server.New(cfg.Server, log, server.WithMetrics(telemetry.Metrics, cfg.Name))
	svc.API = api.New(svc.Model, svc.Artifacts, svc.Storage, hub, cfg.Transcription,
		api.WithLogger(log),
		api.WithMetrics(telemetry.Metrics),
		api.WithMaxUploadSize(cfg.Storage.MaxFileSize),
		api.WithServiceName(cfg.Name),
	)
	svc.API.Register(svc.Server.GinEngine())
	svc.Server.ApplyDefaults(cfg.Name, a.Components.HealthAll, svc.ready)

	registered := []component.Component{svc.Storage}
	if svc.Redis != nil {
		registered = append(registered, svc.Redis)
	}
	registered = append(registered, svc.Events, svc.Model, svc.Artifacts, svc.Server)
	for _, c := range registered {
		if err := a.RegisterComponent(c); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

func (s *Service) ready(_ context.Context) error {
	if st := s.Model.Status(); st != transcription.StatusReady {
		return fmt.Errorf("model %s", st)
	}
	return nil
}

// Serve assembles the HTTP service on cfg and runs it until a shutdown
// signal.
func Serve(ctx context.Context, cfg *Config, opts ...Option) error {
	a, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	if _, err := Assemble(ctx, a, opts...); err != nil {
		return err
	}
	return a.Run(ctx)
}

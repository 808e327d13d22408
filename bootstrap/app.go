package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/logger"
)

// Hook runs while the process stops, before its components are released.
type Hook func(ctx context.Context) error

// App carries one pilgi process from validated config to a clean exit.
// C is the typed config; embedding config.ServiceConfig satisfies Config.
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	stopTimeout time.Duration
	onStop      []Hook
}

// NewApp defaults and validates cfg. The logger comes from the logging
// section unless WithLogger supplies one.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	base := cfg.GetServiceConfig()
	log := o.logger
	if log == nil {
		logger.Init(&base.Logging)
		log = logger.GetGlobalLogger()
	}
	summary := &Summary{Out: os.Stdout, Service: base.Name, Version: base.Version}
	if o.quiet {
		summary.Out = nil
	}
	return &App[C]{
		Name:        base.Name,
		Version:     base.Version,
		Cfg:         cfg,
		Components:  component.NewRegistry(),
		Logger:      log,
		Summary:     summary,
		stopTimeout: base.StopTimeout,
	}, nil
}

// RegisterComponent queues c to start after everything already registered.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnStop appends hooks. They run in order before components stop.
func (a *App[C]) OnStop(hooks ...Hook) {
	a.onStop = append(a.onStop, hooks...)
}

// ReadyCheck fails with the name=status of every component that is not
// healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var bad []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		entry := fmt.Sprintf("%s=%s", h.Name, h.Status)
		if h.Message != "" {
			entry += fmt.Sprintf(" (%s)", h.Message)
		}
		bad = append(bad, entry)
	}
	if bad == nil {
		return nil
	}
	return fmt.Errorf("not ready: %s", strings.Join(bad, ", "))
}

// Run serves until SIGINT, SIGTERM or the end of ctx.
func (a *App[C]) Run(ctx context.Context) error {
	return a.RunTask(ctx, func(ctx context.Context) error {
		a.Logger.Info("Serving until interrupted")
		<-ctx.Done()
		return nil
	})
}

// RunTask brackets task with component start and stop. A signal cancels
// the task's context. When both fail, the task's error is returned.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.start(ctx); err != nil {
		if stopErr := a.stop(); stopErr != nil {
			a.Logger.Warn("Cleanup after failed start reported errors", logger.ErrorFields("stop", stopErr))
		}
		return err
	}
	taskCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := task(taskCtx)
	if stopErr := a.stop(); err == nil {
		err = stopErr
	}
	return err
}

func (a *App[C]) start(ctx context.Context) error {
	began := time.Now()
	a.Logger.Info("Starting pilgi", logger.Fields("name", a.Name, "version", a.Version))
	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Started with unhealthy components", logger.ErrorFields("ready", err))
	}
	a.Summary.Print(ctx, a.Components, time.Since(began))
	return nil
}

// stop spends one stop_timeout budget on the hooks and then the
// components. A failing hook does not skip the ones after it.
func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.stopTimeout)
	defer cancel()

	var errs []error
	for i, h := range a.onStop {
		if err := h(ctx); err != nil {
			a.Logger.Error("Stop hook failed", logger.MergeWithError(logger.Fields("hook", i), err))
			errs = append(errs, err)
		}
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Components stopped with errors", logger.ErrorFields("stop", err))
		errs = append(errs, err)
	}
	a.Logger.Info("Stopped", logger.Fields("timeout", a.stopTimeout.String()))
	return errors.Join(errs...)
}

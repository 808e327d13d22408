package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/logger"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component opens the configured backend on start. Uploads and artifacts
// share it.
type Component struct {
	cfg     Config
	log     *logger.Logger
	storage Storage
}

// NewComponent creates a storage component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("storage")}
}

// Storage returns the open backend, or nil before Start.
func (c *Component) Storage() Storage { return c.storage }

// Config returns the effective configuration.
func (c *Component) Config() Config { return c.cfg }

// Name returns the component name.
func (c *Component) Name() string { return "storage" }

// Start opens the backend.
func (c *Component) Start(_ context.Context) error {
	s, err := New(c.cfg, c.log)
	if err != nil {
		return err
	}
	c.storage = s
	return nil
}

// Stop releases the backend, closing it when it holds resources.
func (c *Component) Stop(_ context.Context) error {
	s := c.storage
	c.storage = nil
	if closer, ok := s.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Health reports whether the backend answers a lookup under artifacts/.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case c.storage == nil:
		h.Status, h.Message = component.StatusUnhealthy, "storage not started"
	default:
		if _, err := c.storage.Exists(ctx, PrefixArtifacts+".health"); err != nil {
			h.Status, h.Message = component.StatusUnhealthy, err.Error()
		}
	}
	return h
}

// Describe returns the backend for the startup summary.
func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider
	if c.cfg.Provider == ProviderS3 {
		details += fmt.Sprintf(" bucket=%s", c.cfg.Bucket)
	} else {
		details += fmt.Sprintf(" path=%s", c.cfg.BasePath)
	}
	return component.Description{Name: "Storage", Type: "storage", Details: details}
}

package sse

import (
	"context"
	"fmt"

	"github.com/kbukum/pilgi/component"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component ties a Hub to the application lifecycle. Stopping it ends every
// open stream so the HTTP server can drain.
type Component struct {
	hub  *Hub
	path string
}

// NewComponent returns a component around a fresh hub served at path.
func NewComponent(path string) *Component {
	return &Component{hub: NewHub(), path: path}
}

// Hub returns the hub.
func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return "sse" }

func (c *Component) Start(context.Context) error { return nil }

func (c *Component) Stop(context.Context) error {
	c.hub.Close()
	return nil
}

func (c *Component) Health(context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d subscribers", c.hub.Len()),
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{Name: "SSE Hub", Type: "sse", Details: "Path: " + c.path}
}

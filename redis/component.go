package redis

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/logger"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component owns the client backing the artifact index. Start fails when
// the server does not answer a ping.
type Component struct {
	cfg    Config
	log    *logger.Logger
	client atomic.Pointer[Client]
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

// Client is nil outside Start and Stop.
func (c *Component) Client() *Client { return c.client.Load() }

func (c *Component) Name() string { return "redis" }

func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("%w (close: %v)", err, client.Close())
	}
	c.client.Store(client)
	return nil
}

func (c *Component) Stop(context.Context) error {
	if client := c.client.Swap(nil); client != nil {
		return client.Close()
	}
	return nil
}

// Health pings on every call so a lost server shows up as unhealthy.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "redis not started"}
	client := c.client.Load()
	if client == nil {
		return h
	}
	if err := client.Ping(ctx); err != nil {
		h.Message = err.Error()
		return h
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Redis",
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d", c.cfg.Addr, c.cfg.DB),
	}
}

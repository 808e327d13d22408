package component

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/pilgi/logger"
)

type slot struct {
	c       Component
	running bool
}

// Registry owns component lifecycles. Start follows registration order and
// stop runs in reverse, so a component may depend on anything registered
// before it.
type Registry struct {
	mu    sync.RWMutex
	slots []*slot
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends c. Names are unique.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if slices.ContainsFunc(r.slots, func(s *slot) bool { return s.c.Name() == name }) {
		return fmt.Errorf("component %s already registered", name)
	}
	r.slots = append(r.slots, &slot{c: c})
	return nil
}

// StartAll starts components in order. On the first failure the ones that
// did start are stopped again and the failure is returned.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.running {
			continue
		}
		if err := s.c.Start(ctx); err != nil {
			logger.Error("component start failed", logger.ErrorFields(s.c.Name(), err))
			if stopErr := r.stopRunning(ctx); stopErr != nil {
				logger.Warn("rollback after failed start", logger.ErrorFields("stop", stopErr))
			}
			return fmt.Errorf("start %s: %w", s.c.Name(), err)
		}
		s.running = true
		logger.Debug("component started", logger.Fields("component", s.c.Name()))
	}
	return nil
}

// StopAll stops running components in reverse order under ctx. Every one
// is stopped; the failures are joined.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopRunning(ctx)
}

func (r *Registry) stopRunning(ctx context.Context) error {
	var errs []error
	for _, s := range slices.Backward(r.slots) {
		if !s.running {
			continue
		}
		s.running = false
		if err := s.c.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", s.c.Name(), err))
			continue
		}
		logger.Debug("component stopped", logger.Fields("component", s.c.Name()))
	}
	return errors.Join(errs...)
}

// HealthAll reports every component in registration order.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	return collect(r, func(c Component) []Health { return []Health{c.Health(ctx)} })
}

// All returns the components in registration order.
func (r *Registry) All() []Component {
	return collect(r, func(c Component) []Component { return []Component{c} })
}

// Descriptions gathers the summaries of Describable components, naming
// any that leave Name empty after the component.
func (r *Registry) Descriptions() []Description {
	return collect(r, func(c Component) []Description {
		d, ok := c.(Describable)
		if !ok {
			return nil
		}
		desc := d.Describe()
		if desc.Name == "" {
			desc.Name = c.Name()
		}
		return []Description{desc}
	})
}

// Routes gathers the routes of RouteProvider components.
func (r *Registry) Routes() []Route {
	return collect(r, func(c Component) []Route {
		if rp, ok := c.(RouteProvider); ok {
			return rp.Routes()
		}
		return nil
	})
}

func collect[T any](r *Registry, f func(Component) []T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []T
	for _, s := range r.slots {
		out = append(out, f(s.c)...)
	}
	return out
}

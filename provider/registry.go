package provider

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps backend names to factories and remembers the last
// instance each factory built.
type Registry[T Provider, C any] struct {
	mu    sync.RWMutex
	kinds map[string]*kind[T, C]
}

type kind[T Provider, C any] struct {
	build Factory[T, C]
	built T
	ok    bool
}

func NewRegistry[T Provider, C any]() *Registry[T, C] {
	return &Registry[T, C]{kinds: map[string]*kind[T, C]{}}
}

// RegisterFactory adds or replaces the factory for name. Replacing a
// factory forgets the instance the old one built.
func (r *Registry[T, C]) RegisterFactory(name string, f Factory[T, C]) {
	r.mu.Lock()
	r.kinds[name] = &kind[T, C]{build: f}
	r.mu.Unlock()
}

// Create builds a fresh instance from cfg. Failed builds are not cached.
func (r *Registry[T, C]) Create(name string, cfg C) (T, error) {
	var zero T
	r.mu.RLock()
	k := r.kinds[name]
	r.mu.RUnlock()
	if k == nil {
		return zero, fmt.Errorf("provider factory %q not registered (have %v)", name, r.List())
	}
	inst, err := k.build(cfg)
	if err != nil {
		return zero, fmt.Errorf("create provider %q: %w", name, err)
	}
	r.mu.Lock()
	k.built, k.ok = inst, true
	r.mu.Unlock()
	return inst, nil
}

// Get returns the instance last built for name.
func (r *Registry[T, C]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k := r.kinds[name]; k != nil && k.ok {
		return k.built, true
	}
	var zero T
	return zero, false
}

// List returns the registered names in order.
func (r *Registry[T, C]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.kinds))
}

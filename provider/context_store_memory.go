package provider

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MemoryStore keeps ContextStore state in a map. Load hides expired
// entries; Sweep drops them. The artifact index falls back to it when no
// Redis address is configured.
type MemoryStore[C any] struct {
	mu    sync.RWMutex
	slots map[string]slot[C]
	now   func() time.Time
}

type slot[C any] struct {
	val      *C
	deadline time.Time
}

func (s slot[C]) live(at time.Time) bool {
	return s.deadline.IsZero() || at.Before(s.deadline)
}

func NewMemoryStore[C any]() *MemoryStore[C] {
	return &MemoryStore[C]{slots: map[string]slot[C]{}, now: time.Now}
}

// WithClock swaps the clock deadlines are measured against.
func (s *MemoryStore[C]) WithClock(now func() time.Time) *MemoryStore[C] {
	s.now = now
	return s
}

func (s *MemoryStore[C]) Load(_ context.Context, key string) (*C, error) {
	s.mu.RLock()
	e, ok := s.slots[key]
	s.mu.RUnlock()
	if ok && e.live(s.now()) {
		return e.val, nil
	}
	return nil, nil
}

func (s *MemoryStore[C]) Save(_ context.Context, key string, val *C, ttl time.Duration) error {
	e := slot[C]{val: val}
	if ttl > 0 {
		e.deadline = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.slots[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore[C]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
	return nil
}

// Sweep drops expired entries and reports which keys went.
func (s *MemoryStore[C]) Sweep() []string {
	at := s.now()
	var gone []string
	s.mu.Lock()
	maps.DeleteFunc(s.slots, func(key string, e slot[C]) bool {
		if e.live(at) {
			return false
		}
		gone = append(gone, key)
		return true
	})
	s.mu.Unlock()
	return gone
}

var _ ContextStore[any] = (*MemoryStore[any])(nil)

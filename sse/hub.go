package sse

import (
	"path"
	"sync"

	"github.com/kbukum/pilgi/logger"
)

const subscriberBuffer = 256

// Subscriber is one long-lived stream attached to a Hub.
type Subscriber struct {
	ID   string
	Meta map[string]string

	events chan Event
	closed sync.Once
}

// NewSubscriber returns a subscriber with a buffered event queue. meta is
// echoed in the connected event and may be nil.
func NewSubscriber(id string, meta map[string]string) *Subscriber {
	return &Subscriber{ID: id, Meta: meta, events: make(chan Event, subscriberBuffer)}
}

// Events is closed when the subscriber leaves the hub or the hub closes.
func (s *Subscriber) Events() <-chan Event { return s.events }

// offer queues ev without blocking. A subscriber that cannot keep up loses
// the event.
func (s *Subscriber) offer(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	default:
		logger.Warn("sse subscriber lagging, event dropped", logger.Fields("subscriber", s.ID, "event", ev.Name))
		return false
	}
}

func (s *Subscriber) close() {
	s.closed.Do(func() { close(s.events) })
}

// Hub fans events out to subscribers whose id matches a glob pattern such
// as "model:*". It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscriber
	closed bool
}

// NewHub returns an empty, open hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscriber)}
}

// Subscribe attaches s. A subscriber already holding the same id is closed
// and replaced. After Close, s is closed immediately.
func (h *Hub) Subscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.close()
		return
	}
	if prev, ok := h.subs[s.ID]; ok {
		prev.close()
	}
	h.subs[s.ID] = s
	logger.Debug("sse subscriber attached", logger.Fields("subscriber", s.ID, "subscribers", len(h.subs)))
}

// Unsubscribe detaches s and closes its queue. A stale subscriber that was
// replaced leaves its successor in place.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if h.subs[s.ID] == s {
		delete(h.subs, s.ID)
	}
	h.mu.Unlock()
	s.close()
}

// Publish offers ev to every subscriber matching pattern and returns how
// many accepted it. A malformed pattern matches nothing.
func (h *Hub) Publish(pattern string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, err := path.Match(pattern, ""); err != nil {
		logger.Error("sse publish pattern", logger.ErrorFields("publish", err))
		return 0
	}
	delivered := 0
	for id, s := range h.subs {
		if ok, _ := path.Match(pattern, id); ok && s.offer(ev) {
			delivered++
		}
	}
	return delivered
}

// Len returns the number of attached subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Lookup returns the subscriber attached under id, or nil.
func (h *Hub) Lookup(id string) *Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs[id]
}

// Close detaches and closes every subscriber. Later subscriptions are
// refused. Close is idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		s.close()
		delete(h.subs, id)
	}
}

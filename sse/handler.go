package sse

import (
	"net/http"
	"time"

	"github.com/kbukum/pilgi/logger"
)

// KeepAliveInterval is how often idle streams get a comment line. It stays
// below common proxy idle timeouts.
var KeepAliveInterval = 30 * time.Second

// ConnectedEvent opens every hub stream.
type ConnectedEvent struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta,omitempty"`
}

// ServeSSE subscribes the request to hub under id and streams until the
// client goes away or the hub closes. initial events follow the connected
// event and precede anything published.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, id string, initial []Event, meta map[string]string) {
	sw, err := NewWriter(w)
	if err != nil {
		logger.Error("sse unsupported", logger.Fields("subscriber", id))
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sub := NewSubscriber(id, meta)
	hub.Subscribe(sub)
	defer hub.Unsubscribe(sub)

	if err := sw.Send(EventTypeConnected, ConnectedEvent{ID: id, Meta: meta}); err != nil {
		return
	}
	for _, ev := range initial {
		if err := sw.Write(ev); err != nil {
			return
		}
	}

	tick := time.NewTicker(KeepAliveInterval)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := sw.Write(ev); err != nil {
				return
			}
		case <-tick.C:
			if err := sw.Comment("keepalive"); err != nil {
				return
			}
		}
	}
}

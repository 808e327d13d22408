package sse

import (
	"encoding/json"
	"fmt"
)

// Event names written on the "event:" line.
const (
	// EventTypeConnected is sent when a client successfully connects.
	EventTypeConnected = "connected"

	// EventTypeArtifact announces the download for a finished session.
	EventTypeArtifact = "artifact"

	// EventTypeModel carries a model load phase or status.
	EventTypeModel = "model"

	// EventTypeError is sent when the stream ends on a failure outside the
	// session itself.
	EventTypeError = "error"
)

// Event is one server-sent event.
type Event struct {
	ID   string
	Name string
	Data []byte
}

// NewEvent marshals v as the JSON payload of a named event.
func NewEvent(name string, v any) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("sse: encode %s event: %w", name, err)
	}
	return Event{Name: name, Data: data}, nil
}

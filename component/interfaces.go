package component

import "context"

// HealthStatus is a component's health. Unhealthy outranks degraded, which
// outranks healthy.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

var severity = map[HealthStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}

// Worst returns the most severe status in hs, healthy when hs is empty.
func Worst(hs []Health) HealthStatus {
	worst := StatusHealthy
	for _, h := range hs {
		if severity[h.Status] > severity[worst] {
			worst = h.Status
		}
	}
	return worst
}

// Health is one component's entry in /health.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed part of the process such as the HTTP
// server, the storage backend, the model registry or the event hub.
// Names are unique within a Registry.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Health must not block on work in progress; it is served on /health.
	Health(ctx context.Context) Health
}

// Description is a line in the startup summary.
type Description struct {
	// Name defaults to the component's Name.
	Name string
	// Type groups the line: "server", "storage", "redis", "model".
	Type string
	// Details is free text, e.g. "whispercpp ggml-base.en lazy".
	Details string
	// Port is 0 when not applicable.
	Port int
}

// Describable components appear in the startup summary.
type Describable interface {
	Describe() Description
}

// Route is one HTTP route in the startup summary.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// RouteProvider components report their HTTP routes.
type RouteProvider interface {
	Routes() []Route
}

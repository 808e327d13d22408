package provider

import "context"

// Closeable is optionally implemented by providers that hold resources
// requiring explicit cleanup (a sidecar model slot, temp directories).
type Closeable interface {
	Close(ctx context.Context) error
}

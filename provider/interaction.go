package provider

import "context"

// RequestResponse represents a provider that takes one input and returns one output.
// Recognition engines, sidecar HTTP calls and subprocess runs all fit this shape.
type RequestResponse[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (O, error)
}

// Func adapts a plain function into a RequestResponse provider.
type Func[I, O any] struct {
	ProviderName string
	Available    func(ctx context.Context) bool
	Fn           func(ctx context.Context, input I) (O, error)
}

// Name returns the provider name.
func (f *Func[I, O]) Name() string { return f.ProviderName }

// IsAvailable reports availability; a nil Available means always available.
func (f *Func[I, O]) IsAvailable(ctx context.Context) bool {
	if f.Available == nil {
		return true
	}
	return f.Available(ctx)
}

// Execute calls Fn.
func (f *Func[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return f.Fn(ctx, input)
}

// Package provider holds the small generic contracts pilgi builds its
// swappable parts on.
//
//   - Provider: a named backend with an availability check
//   - Registry[T, C]: named factories turning a typed config into a provider
//   - RequestResponse[I, O]: one input, one output (the recognition call)
//   - Iterator[T]: pull-based streams (transcription progress events)
//   - ContextStore[C]: typed TTL state (the artifact index), with an
//     in-memory implementation here and a Redis one in package redis
//
// # Middleware
//
// Middleware[I, O] wraps a RequestResponse. Chain composes them with the
// first one outermost:
//
//	wrapped := provider.Chain(
//	    provider.WithLogging[transcription.Request, *transcription.Result](log),
//	    provider.WithMetrics[transcription.Request, *transcription.Result](metrics),
//	    provider.WithTracing[transcription.Request, *transcription.Result]("pilgi"),
//	)(engineProvider)
package provider

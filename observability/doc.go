// Package observability wires OpenTelemetry tracing and metrics.
//
// Setup installs OTLP/HTTP exporters when enabled and always returns usable
// instruments:
//
//	providers, err := observability.Setup(ctx, cfg.Observability, "pilgi", version.Version, "production")
//	defer providers.Shutdown(ctx)
//
// A transcription session is one traced operation:
//
//	ctx, op := observability.BeginOperation(ctx, observability.SpanSession, "pilgi", requestID, sessionID, providers.Metrics)
//	defer op.End(ctx, "completed", nil)
package observability

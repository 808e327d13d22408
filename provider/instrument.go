package provider

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/observability"
)

type aroundFunc[I, O any] func(ctx context.Context, inner RequestResponse[I, O], in I) (O, error)

// around hands Execute to fn and forwards Name and IsAvailable.
type around[I, O any] struct {
	RequestResponse[I, O]
	fn aroundFunc[I, O]
}

func (a *around[I, O]) Execute(ctx context.Context, in I) (O, error) {
	return a.fn(ctx, a.RequestResponse, in)
}

func wrap[I, O any](fn aroundFunc[I, O]) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &around[I, O]{RequestResponse: inner, fn: fn}
	}
}

// WithLogging logs every call with its provider and duration: failures at
// error, successes at debug. Ids carried by ctx join the entry.
func WithLogging[I, O any](log *logger.Logger) Middleware[I, O] {
	return wrap(func(ctx context.Context, inner RequestResponse[I, O], in I) (O, error) {
		began := time.Now()
		out, err := inner.Execute(ctx, in)
		fields := logger.MergeWithDuration(logger.Fields("provider", inner.Name()), time.Since(began))
		if err != nil {
			log.WithContext(ctx).Error("provider execute failed", logger.MergeWithError(fields, err))
		} else {
			log.WithContext(ctx).Debug("provider execute ok", fields)
		}
		return out, err
	})
}

// WithMetrics counts calls by status and records their latency. A failed
// call also counts as an "execute" error of the provider.
func WithMetrics[I, O any](metrics *observability.Metrics) Middleware[I, O] {
	return wrap(func(ctx context.Context, inner RequestResponse[I, O], in I) (O, error) {
		began := time.Now()
		out, err := inner.Execute(ctx, in)
		status := "ok"
		if err != nil {
			status = "error"
			metrics.RecordError(ctx, "execute", inner.Name())
		}
		metrics.RecordOperation(ctx, inner.Name(), "execute", status, time.Since(began))
		return out, err
	})
}

// WithTracing runs every call in a span named "<service>.<provider>" and
// marks the span failed when the call errors.
func WithTracing[I, O any](service string) Middleware[I, O] {
	return wrap(func(ctx context.Context, inner RequestResponse[I, O], in I) (O, error) {
		ctx, span := observability.StartSpan(ctx, service+"."+inner.Name())
		defer span.End()
		span.SetAttributes(
			attribute.String(observability.AttrServiceName, service),
			attribute.String(observability.AttrOperationName, inner.Name()),
		)
		out, err := inner.Execute(ctx, in)
		if err != nil {
			observability.SetSpanError(ctx, err)
		}
		return out, err
	})
}

package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	apperrors "github.com/kbukum/pilgi/errors"
)

// RetryConfig shapes a retry loop. Zero fields take the defaults noted.
type RetryConfig struct {
	// MaxAttempts counts the first call. Default 3.
	MaxAttempts int
	// InitialBackoff precedes the second attempt. Default 100ms.
	InitialBackoff time.Duration
	// MaxBackoff caps any single delay. Default 10s.
	MaxBackoff time.Duration
	// BackoffFactor grows the delay per attempt. Default 2.
	BackoffFactor float64
	// Jitter spreads each delay by up to this fraction either way.
	Jitter float64
	// RetryIf picks the errors worth another attempt. Default DefaultRetryIf.
	RetryIf func(error) bool
	// OnRetry runs before each delay.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryIf gives up on context errors and on application errors not
// marked retryable. Anything else is taken as transient.
func DefaultRetryIf(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Retryable
	}
	return true
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	return c
}

// delay returns the pause after the given failed attempt (1-based).
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	for range attempt - 1 {
		d *= c.BackoffFactor
		if d >= float64(c.MaxBackoff) {
			break
		}
	}
	if c.Jitter > 0 {
		d *= 1 + c.Jitter*(2*rand.Float64()-1)
	}
	return time.Duration(min(d, float64(c.MaxBackoff)))
}

// Retry calls fn until it succeeds, fails with an error RetryIf rejects or
// runs out of attempts. The last error is returned. Cancelling ctx ends
// the loop at the next delay.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.RetryIf(err) {
			return zero, err
		}

		d := cfg.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, d)
		}
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}

// RetryFunc is Retry for calls without a result.
func RetryFunc(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	_, err := Retry(ctx, cfg, func(ctx context.Context) (struct{}, error) { return struct{}{}, fn(ctx) })
	return err
}

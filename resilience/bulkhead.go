package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrBulkheadFull turns a caller away without queueing (MaxWait < 0).
	ErrBulkheadFull = errors.New("bulkhead is full")
	// ErrBulkheadTimeout ends a bounded wait (MaxWait > 0).
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
)

// IsRejected reports whether the bulkhead itself refused the caller, as
// opposed to the caller's context ending.
func IsRejected(err error) bool {
	return errors.Is(err, ErrBulkheadFull) || errors.Is(err, ErrBulkheadTimeout)
}

// BulkheadConfig sizes a Bulkhead.
type BulkheadConfig struct {
	Name          string
	MaxConcurrent int
	// MaxWait is the admission policy once every slot is taken:
	// negative rejects, zero queues until the caller's context ends and
	// positive queues for at most that long.
	MaxWait time.Duration

	OnReject  func(name string, err error)
	OnAcquire func(name string, waited time.Duration)
	OnRelease func(name string)
}

// DefaultBulkheadConfig admits one caller and queues the rest. A loaded
// model is one instance that is not safe for concurrent calls.
func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{Name: name, MaxConcurrent: 1}
}

// BulkheadStats is a point-in-time view of a Bulkhead.
type BulkheadStats struct {
	Capacity int `json:"capacity"`
	InUse    int `json:"in_use"`
	Queued   int `json:"queued"`
}

// Bulkhead caps concurrent callers of a guarded section.
type Bulkhead struct {
	cfg    BulkheadConfig
	slots  chan struct{}
	queued atomic.Int32
}

// NewBulkhead returns a bulkhead with at least one slot.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	cfg.MaxConcurrent = max(cfg.MaxConcurrent, 1)
	return &Bulkhead{cfg: cfg, slots: make(chan struct{}, cfg.MaxConcurrent)}
}

func (b *Bulkhead) Name() string { return b.cfg.Name }

func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{Capacity: cap(b.slots), InUse: len(b.slots), Queued: int(b.queued.Load())}
}

// Acquire holds a slot until the returned release is called. Release may
// be called any number of times. Streaming callers use Acquire directly
// because their work outlives one function call.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	began := time.Now()
	if err := b.wait(ctx); err != nil {
		if b.cfg.OnReject != nil {
			b.cfg.OnReject(b.cfg.Name, err)
		}
		return nil, err
	}
	if b.cfg.OnAcquire != nil {
		b.cfg.OnAcquire(b.cfg.Name, time.Since(began))
	}
	return sync.OnceFunc(func() {
		<-b.slots
		if b.cfg.OnRelease != nil {
			b.cfg.OnRelease(b.cfg.Name)
		}
	}), nil
}

func (b *Bulkhead) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}
	if b.cfg.MaxWait < 0 {
		return ErrBulkheadFull
	}

	b.queued.Add(1)
	defer b.queued.Add(-1)
	if b.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, b.cfg.MaxWait, ErrBulkheadTimeout)
		defer cancel()
	}
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Execute runs fn while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	_, err := Call(ctx, b, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// Call runs fn while holding a slot of b and passes its result through.
func Call[T any](ctx context.Context, b *Bulkhead, fn func() (T, error)) (T, error) {
	release, err := b.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer release()
	return fn()
}

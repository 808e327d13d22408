package component

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/pilgi/logger"
)

// ErrLazyClosed is returned to callers of a load that Close abandoned.
var ErrLazyClosed = errors.New("lazy value closed during load")

// LazyState is the observable state of a Lazy value.
type LazyState int32

const (
	LazyIdle LazyState = iota
	LazyLoading
	LazyReady
	LazyFailed
)

func (s LazyState) String() string {
	switch s {
	case LazyIdle:
		return "idle"
	case LazyLoading:
		return "loading"
	case LazyReady:
		return "ready"
	case LazyFailed:
		return "failed"
	default:
		return fmt.Sprintf("LazyState(%d)", int32(s))
	}
}

// Lazy defers an expensive initialization until the first Get and shares a
// single in-flight attempt between concurrent callers. State never blocks.
//
// A failed attempt is not retried on its own: every caller that joined it
// receives the same error, and the next Get starts a fresh attempt.
type Lazy[T any] struct {
	name   string
	init   func(ctx context.Context) (T, error)
	closer func(T) error

	state atomic.Int32

	mu       sync.Mutex
	value    T
	err      error
	loadedAt time.Time
	inflight *lazyCall[T]
}

type lazyCall[T any] struct {
	done      chan struct{}
	value     T
	err       error
	abandoned bool
}

// NewLazy creates a lazy value with the given initializer.
func NewLazy[T any](name string, init func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{name: name, init: init}
}

// WithCloser sets the function Close uses to release a loaded value.
func (l *Lazy[T]) WithCloser(fn func(T) error) *Lazy[T] {
	l.closer = fn
	return l
}

// Name returns the lazy value's name.
func (l *Lazy[T]) Name() string { return l.name }

// State reports the current state without waiting on an in-flight load.
func (l *Lazy[T]) State() LazyState { return LazyState(l.state.Load()) }

// Get returns the loaded value, initializing it if needed. Callers arriving
// while a load is in flight wait for that load instead of starting another.
// The load itself runs detached from ctx; a caller whose ctx ends returns
// ctx.Err() and the load carries on for the others.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	if l.State() == LazyReady {
		l.mu.Lock()
		v := l.value
		l.mu.Unlock()
		return v, nil
	}

	l.mu.Lock()
	if l.State() == LazyReady {
		v := l.value
		l.mu.Unlock()
		return v, nil
	}
	call := l.inflight
	if call == nil {
		if l.init == nil {
			l.mu.Unlock()
			var zero T
			return zero, fmt.Errorf("no initializer for %s", l.name)
		}
		call = &lazyCall[T]{done: make(chan struct{})}
		l.inflight = call
		l.state.Store(int32(LazyLoading))
		go l.run(context.WithoutCancel(ctx), call)
	}
	l.mu.Unlock()

	select {
	case <-call.done:
		return call.value, call.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (l *Lazy[T]) run(ctx context.Context, call *lazyCall[T]) {
	logger.Debug("Initializing lazy component", map[string]interface{}{
		logger.FieldComponent: l.name,
	})
	start := time.Now()

	value, err := l.safeInit(ctx)

	l.mu.Lock()
	if call.abandoned {
		if l.inflight == call {
			l.inflight = nil
		}
		l.mu.Unlock()
		if err == nil && l.closer != nil {
			if cerr := l.closer(value); cerr != nil {
				logger.Warn("Releasing abandoned lazy value failed", map[string]interface{}{
					logger.FieldComponent: l.name,
					logger.FieldError:     cerr.Error(),
				})
			}
		}
		if err == nil {
			err = ErrLazyClosed
		}
		call.err = err
		close(call.done)
		return
	}
	call.value, call.err = value, err
	l.inflight = nil
	if err != nil {
		l.err = err
		l.state.Store(int32(LazyFailed))
	} else {
		l.value = value
		l.err = nil
		l.loadedAt = time.Now()
		l.state.Store(int32(LazyReady))
	}
	l.mu.Unlock()
	close(call.done)

	if err != nil {
		logger.Warn("Lazy component initialization failed", map[string]interface{}{
			logger.FieldComponent: l.name,
			logger.FieldError:     err.Error(),
		})
		return
	}
	logger.Debug("Lazy component initialized", logger.MergeWithDuration(map[string]interface{}{
		logger.FieldComponent: l.name,
	}, time.Since(start)))
}

func (l *Lazy[T]) safeInit(ctx context.Context) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("initializing %s panicked: %v", l.name, r)
		}
	}()
	return l.init(ctx)
}

// Value returns the loaded value and whether it is ready.
func (l *Lazy[T]) Value() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.State() != LazyReady {
		var zero T
		return zero, false
	}
	return l.value, true
}

// Err returns the error of the last failed attempt, if the value is in the failed state.
func (l *Lazy[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.State() != LazyFailed {
		return nil
	}
	return l.err
}

// LoadedAt returns when the current value finished loading.
func (l *Lazy[T]) LoadedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadedAt
}

// Close releases a loaded value and returns to the idle state. A load still
// in flight is abandoned: its waiters get ErrLazyClosed and the value it
// produces is released as soon as it arrives.
func (l *Lazy[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if call := l.inflight; call != nil {
		call.abandoned = true
		l.inflight = nil
		l.state.Store(int32(LazyIdle))
		return nil
	}
	if l.State() != LazyReady {
		return nil
	}
	var err error
	if l.closer != nil {
		err = l.closer(l.value)
	}
	var zero T
	l.value = zero
	l.loadedAt = time.Time{}
	l.state.Store(int32(LazyIdle))
	return err
}

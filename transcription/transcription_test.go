package transcription

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/pilgi/logger"
)

const testModel = "distil-whisper/distil-large-v3"

// fakeEngine returns a canned result, error or panic.
type fakeEngine struct {
	text     string
	language string
	err      error
	panicVal any
	block    bool
	delay    time.Duration

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
	closed atomic.Bool
	ctxErr chan error
}

func (e *fakeEngine) Name() string                       { return "fake" }
func (e *fakeEngine) IsAvailable(_ context.Context) bool { return true }

func (e *fakeEngine) Transcribe(ctx context.Context, _ Request) (*Result, error) {
	e.calls.Add(1)
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		peak := e.maxActive.Load()
		if n <= peak || e.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.block {
		<-ctx.Done()
		if e.ctxErr != nil {
			e.ctxErr <- ctx.Err()
		}
		return nil, ctx.Err()
	}
	if e.panicVal != nil {
		panic(e.panicVal)
	}
	if e.err != nil {
		return nil, e.err
	}
	return &Result{Text: e.text, Language: e.language}, nil
}

func (e *fakeEngine) Close(_ context.Context) error {
	e.closed.Store(true)
	return nil
}

// fakeBackend loads a fakeEngine, optionally waiting on gate first.
type fakeBackend struct {
	engine   *fakeEngine
	gate     chan struct{}
	panicVal any

	mu    sync.Mutex
	err   error
	loads atomic.Int32
}

func (b *fakeBackend) Name() string                       { return "fake" }
func (b *fakeBackend) IsAvailable(_ context.Context) bool { return true }

func (b *fakeBackend) setErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *fakeBackend) Load(_ context.Context, report ReportFunc) (Engine, error) {
	b.loads.Add(1)
	report(LoadFetching, "fetching weights")
	if b.gate != nil {
		<-b.gate
	}
	if b.panicVal != nil {
		panic(b.panicVal)
	}
	b.mu.Lock()
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	report(LoadInitializing, "initializing")
	return b.engine, nil
}

var errDecode = errors.New("invalid data found when processing input")

func newTestHandle(e *fakeEngine, opts ...HandleOption) *EngineHandle {
	return NewEngineHandle(testModel, e, opts...)
}

func quietSession(h *EngineHandle, req Request, opts ...SessionOption) *Stream {
	base := []SessionOption{WithPacing(0), WithSessionLogger(logger.NewNop())}
	return NewSession(h, req, append(base, opts...)...)
}

// stepClock returns the given instants in order, repeating the last one.
func stepClock(times ...time.Time) func() time.Time {
	var mu sync.Mutex
	i := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
}

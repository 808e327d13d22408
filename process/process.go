// Package process runs engine binaries such as ffmpeg and whisper-cli as
// subprocesses with cancellation that reaches the whole process group.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/pilgi/provider"
)

// ErrBinaryNotFound means the executable is not on PATH or not a file.
var ErrBinaryNotFound = errors.New("process: binary not found")

const (
	defaultGrace = 5 * time.Second
	// stderrLimit bounds captured stderr. Engines log progress there and
	// only the end matters for diagnostics.
	stderrLimit = 64 << 10
)

// Command is one invocation.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	// Env is appended to the parent environment. Nil inherits it as is.
	Env   []string
	Stdin io.Reader
	// GracePeriod is the wait between SIGTERM and SIGKILL after the
	// context ends. Zero uses the runner default.
	GracePeriod time.Duration
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Binary}, c.Args...), " ")
}

// Result is what a finished process left behind.
type Result struct {
	Stdout []byte
	// Stderr holds at most the last 64 KiB written.
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// StderrTail returns the last n non-blank stderr lines.
func (r *Result) StderrTail(n int) string {
	if r == nil || n <= 0 {
		return ""
	}
	lines := strings.FieldsFunc(string(r.Stderr), func(c rune) bool { return c == '\n' })
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept[max(0, len(kept)-n):], "\n")
}

// ExitError reports a process that ran and exited non-zero.
type ExitError struct {
	Binary   string
	ExitCode int
	// Stderr is the last few lines of output, where engines print the
	// actual failure.
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("process: %s exited %d", e.Binary, e.ExitCode)
	if e.Stderr != "" {
		return msg + ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner runs commands. Engine backends take a Runner so tests can script
// subprocess behavior.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Config holds runner defaults.
type Config struct {
	Name        string        `yaml:"name,omitempty" mapstructure:"name"`
	GracePeriod time.Duration `yaml:"grace_period,omitempty" mapstructure:"grace_period"`
	// Timeout bounds every run. Zero leaves it to the caller's context.
	Timeout time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

var (
	_ Runner                                     = (*Adapter)(nil)
	_ provider.RequestResponse[Command, *Result] = (*Adapter)(nil)
)

// Adapter is the real Runner. It also satisfies provider.RequestResponse
// so it can sit behind the provider middleware.
type Adapter struct {
	cfg Config
}

// NewAdapter returns a runner with cfg's defaults.
func NewAdapter(cfg Config) *Adapter {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = defaultGrace
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// IsAvailable is always true. A missing binary is reported per command.
func (a *Adapter) IsAvailable(context.Context) bool { return true }

func (a *Adapter) Execute(ctx context.Context, cmd Command) (*Result, error) {
	return a.Run(ctx, cmd)
}

// Run starts cmd in its own process group and waits for it. When ctx ends
// the group gets SIGTERM, then SIGKILL once the grace period passes.
func (a *Adapter) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("process: binary is required")
	}
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	grace := cmd.GracePeriod
	if grace <= 0 {
		grace = a.cfg.GracePeriod
	}

	var stdout bytes.Buffer
	stderr := &tail{limit: stderrLimit}
	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // binaries come from config
	c.Dir, c.Stdin, c.Stdout, c.Stderr = cmd.Dir, cmd.Stdin, &stdout, stderr
	if cmd.Env != nil {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error { return syscall.Kill(-c.Process.Pid, syscall.SIGTERM) }
	c.WaitDelay = grace

	began := time.Now()
	err := c.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.buf, ExitCode: c.ProcessState.ExitCode(), Duration: time.Since(began)}
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("process: %s stopped: %w", cmd.Binary, ctx.Err())
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return res, fmt.Errorf("%w: %s", ErrBinaryNotFound, cmd.Binary)
	}
	return res, &ExitError{Binary: cmd.Binary, ExitCode: res.ExitCode, Stderr: res.StderrTail(3), Err: err}
}

// Run executes cmd with the default runner.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	return NewAdapter(Config{}).Run(ctx, cmd)
}

// LookPath resolves binary on PATH.
func LookPath(binary string) (string, error) {
	p, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, binary)
	}
	return p, nil
}

// tail keeps the last limit bytes written to it.
type tail struct {
	limit int
	buf   []byte
}

func (t *tail) Write(p []byte) (int, error) {
	n := len(p)
	if n >= t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		return n, nil
	}
	if over := len(t.buf) + n - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

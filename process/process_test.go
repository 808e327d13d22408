package process

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		cmd    Command
		stdout string
		stderr string
	}{
		{"args", Command{Binary: "echo", Args: []string{"hello", "world"}}, "hello world", ""},
		{"stdin", Command{Binary: "cat", Stdin: strings.NewReader("from stdin")}, "from stdin", ""},
		{"env", Command{Binary: "sh", Args: []string{"-c", "echo $PILGI_TEST_VAR"}, Env: []string{"PILGI_TEST_VAR=hello123"}}, "hello123", ""},
		{"stderr", Command{Binary: "sh", Args: []string{"-c", "echo oops >&2"}}, "", "oops"},
		{"dir", Command{Binary: "pwd", Dir: "/"}, "/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(context.Background(), tt.cmd)
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(string(res.Stdout)); got != tt.stdout {
				t.Errorf("stdout = %q, want %q", got, tt.stdout)
			}
			if got := strings.TrimSpace(string(res.Stderr)); got != tt.stderr {
				t.Errorf("stderr = %q, want %q", got, tt.stderr)
			}
			if res.ExitCode != 0 {
				t.Errorf("exit code %d", res.ExitCode)
			}
		})
	}
}

func TestNonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), Command{
		Binary: "sh",
		Args:   []string{"-c", "echo loading model >&2; echo 'failed to open audio' >&2; exit 3"},
	})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 || res.ExitCode != 3 {
		t.Errorf("exit code %d / %d, want 3", exitErr.ExitCode, res.ExitCode)
	}
	if !strings.HasSuffix(exitErr.Error(), "failed to open audio") {
		t.Errorf("error does not end with the stderr tail: %q", exitErr.Error())
	}
}

func TestMissingBinary(t *testing.T) {
	if _, err := Run(context.Background(), Command{Binary: "pilgi-no-such-binary"}); !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("Run: %v", err)
	}
	if _, err := LookPath("pilgi-no-such-binary"); !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("LookPath: %v", err)
	}
	if _, err := LookPath("sh"); err != nil {
		t.Errorf("LookPath(sh): %v", err)
	}
	if _, err := Run(context.Background(), Command{}); err == nil {
		t.Error("empty binary accepted")
	}
}

func TestCancelStopsProcessGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The child sleep would keep the pipes open if only sh were signalled.
	res, err := Run(ctx, Command{Binary: "sh", Args: []string{"-c", "sleep 10 & wait"}, GracePeriod: 500 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if res.Duration > 3*time.Second {
		t.Errorf("took %v to stop", res.Duration)
	}
}

func TestAdapterTimeout(t *testing.T) {
	a := NewAdapter(Config{Name: "ffmpeg", Timeout: 100 * time.Millisecond, GracePeriod: 200 * time.Millisecond})
	if a.Name() != "ffmpeg" || !a.IsAvailable(context.Background()) {
		t.Fatal("unexpected adapter identity")
	}
	began := time.Now()
	if _, err := a.Execute(context.Background(), Command{Binary: "sleep", Args: []string{"10"}}); err == nil {
		t.Fatal("expected timeout")
	}
	if d := time.Since(began); d > 3*time.Second {
		t.Errorf("timeout not applied, took %v", d)
	}
}

func TestStderrTail(t *testing.T) {
	r := &Result{Stderr: []byte("a\n\nb\nc\n  \nd\n")}
	if got := r.StderrTail(2); got != "c\nd" {
		t.Errorf("StderrTail(2) = %q", got)
	}
	if got := r.StderrTail(10); got != "a\nb\nc\nd" {
		t.Errorf("StderrTail(10) = %q", got)
	}
	var none *Result
	if none.StderrTail(1) != "" {
		t.Error("nil result has a tail")
	}
}

func TestTailKeepsLastBytes(t *testing.T) {
	tl := &tail{limit: 8}
	for _, chunk := range []string{"abc", "defgh", "ij"} {
		if n, _ := tl.Write([]byte(chunk)); n != len(chunk) {
			t.Fatalf("short write %d", n)
		}
	}
	if string(tl.buf) != "cdefghij" {
		t.Errorf("buf = %q", tl.buf)
	}
	tl.Write([]byte("0123456789"))
	if string(tl.buf) != "23456789" {
		t.Errorf("oversized write kept %q", tl.buf)
	}
}

func TestCommandString(t *testing.T) {
	cmd := Command{Binary: "ffmpeg", Args: []string{"-i", "in.mp3", "out.wav"}}
	if got := cmd.String(); got != "ffmpeg -i in.mp3 out.wav" {
		t.Errorf("String() = %q", got)
	}
}

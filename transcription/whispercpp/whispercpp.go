// Package whispercpp is a transcription backend that drives the whisper.cpp
// command line tool.
//
// Loading downloads the ggml weights into the model directory when they are
// not cached yet and checks that the binary runs. Each transcription converts
// the input to 16 kHz mono WAV with ffmpeg and reads the CLI's JSON output.
package whispercpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/pilgi/process"
	"github.com/kbukum/pilgi/provider"
	"github.com/kbukum/pilgi/resilience"
	"github.com/kbukum/pilgi/transcription"
	"github.com/kbukum/pilgi/version"
)

const (
	// ProviderName is the registered name for the whisper.cpp backend.
	ProviderName = "whispercpp"

	defaultBinary           = "whisper-cli"
	defaultFFmpeg           = "ffmpeg"
	defaultModelDir         = "models"
	defaultModelURL         = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/%s"
	defaultDownloadTimeout  = 30 * time.Minute
	defaultDownloadAttempts = 3
)

var (
	_ transcription.Backend = (*Backend)(nil)
	_ transcription.Engine  = (*Engine)(nil)
)

// Config holds configuration for the whisper.cpp backend.
type Config struct {
	Binary   string `yaml:"binary" mapstructure:"binary"`
	FFmpeg   string `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	ModelDir string `yaml:"model_dir" mapstructure:"model_dir"`
	// ModelURL is a format string taking the ggml file name.
	ModelURL         string        `yaml:"model_url" mapstructure:"model_url"`
	Threads          int           `yaml:"threads" mapstructure:"threads" validate:"gte=0"`
	DownloadTimeout  time.Duration `yaml:"download_timeout" mapstructure:"download_timeout"`
	DownloadAttempts int           `yaml:"download_attempts" mapstructure:"download_attempts"`
}

// ApplyDefaults fills in unset settings.
func (c *Config) ApplyDefaults() {
	if c.Binary == "" {
		c.Binary = defaultBinary
	}
	if c.FFmpeg == "" {
		c.FFmpeg = defaultFFmpeg
	}
	if c.ModelDir == "" {
		c.ModelDir = defaultModelDir
	}
	if c.ModelURL == "" {
		c.ModelURL = defaultModelURL
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = defaultDownloadTimeout
	}
	if c.DownloadAttempts <= 0 {
		c.DownloadAttempts = defaultDownloadAttempts
	}
}

// ModelFile maps a model id to its ggml file name:
// "openai/whisper-base.en" and "base.en" both become "ggml-base.en.bin".
func ModelFile(model string) string {
	name := transcription.ShortName(model)
	name = strings.TrimPrefix(name, "whisper-")
	if strings.HasPrefix(name, "ggml-") && strings.HasSuffix(name, ".bin") {
		return name
	}
	return "ggml-" + name + ".bin"
}

// Option configures a Backend.
type Option func(*Backend)

// WithRunner replaces the subprocess runner.
func WithRunner(r process.Runner) Option {
	return func(b *Backend) { b.runner = r }
}

// WithHTTPClient replaces the client used to download weights.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.http = c }
}

// Backend loads whisper.cpp models.
type Backend struct {
	cfg    Config
	model  string
	runner process.Runner
	http   *http.Client
}

// New creates a backend for the given model id.
func New(cfg Config, model string, opts ...Option) *Backend {
	cfg.ApplyDefaults()
	b := &Backend{
		cfg:    cfg,
		model:  model,
		runner: process.NewAdapter(process.Config{Name: ProviderName}),
		http:   &http.Client{Timeout: cfg.DownloadTimeout},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Factory returns a provider.Factory that creates whisper.cpp backends for
// the configured model.
func Factory(cfg Config, opts ...Option) provider.Factory[transcription.Backend, transcription.ModelConfig] {
	return func(mc transcription.ModelConfig) (transcription.Backend, error) {
		return New(cfg, mc.Name, opts...), nil
	}
}

// Name returns the provider name.
func (b *Backend) Name() string { return ProviderName }

// IsAvailable reports whether the binary is on PATH.
func (b *Backend) IsAvailable(_ context.Context) bool {
	_, err := process.LookPath(b.cfg.Binary)
	return err == nil
}

// ModelPath returns where the ggml weights are cached.
func (b *Backend) ModelPath() string {
	return filepath.Join(b.cfg.ModelDir, ModelFile(b.model))
}

// Load fetches the weights if needed and checks the binary.
func (b *Backend) Load(ctx context.Context, report transcription.ReportFunc) (transcription.Engine, error) {
	path := b.ModelPath()
	if _, err := os.Stat(path); err == nil {
		report(transcription.LoadFetching, fmt.Sprintf("Using cached %s", filepath.Base(path)))
	} else {
		report(transcription.LoadFetching, fmt.Sprintf("Downloading %s", filepath.Base(path)))
		if err := b.download(ctx, path); err != nil {
			return nil, err
		}
	}

	report(transcription.LoadInitializing, fmt.Sprintf("Checking %s", b.cfg.Binary))
	if _, err := b.runner.Run(ctx, process.Command{Binary: b.cfg.Binary, Args: []string{"--help"}}); err != nil {
		return nil, fmt.Errorf("whisper.cpp binary: %w", err)
	}

	return &Engine{cfg: b.cfg, modelPath: path, runner: b.runner}, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

func (b *Backend) download(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	url := fmt.Sprintf(b.cfg.ModelURL, filepath.Base(path))
	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
		MaxAttempts:    b.cfg.DownloadAttempts,
		InitialBackoff: time.Second,
		RetryIf: func(err error) bool {
			var se *statusError
			return !errors.As(err, &se) || se.code >= 500
		},
	}, func(ctx context.Context) error {
		return b.fetch(ctx, url, path)
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	return nil
}

// fetch streams url into a temp file next to path and renames it into place
// so a partial download is never mistaken for cached weights.
func (b *Backend) fetch(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Engine runs whisper.cpp against a cached model.
type Engine struct {
	cfg       Config
	modelPath string
	runner    process.Runner
}

// Name returns the provider name.
func (e *Engine) Name() string { return ProviderName }

// IsAvailable reports whether the cached model is still present.
func (e *Engine) IsAvailable(_ context.Context) bool {
	_, err := os.Stat(e.modelPath)
	return err == nil
}

// Transcribe converts the input and runs the CLI on it.
func (e *Engine) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	if _, err := os.Stat(req.AudioPath); err != nil {
		return nil, transcription.NewFault(transcription.CategoryInput, fmt.Errorf("open audio file: %w", err))
	}

	dir, err := os.MkdirTemp("", "pilgi-whispercpp-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wav := filepath.Join(dir, "input.wav")
	_, err = e.runner.Run(ctx, process.Command{
		Binary: e.cfg.FFmpeg,
		Args:   []string{"-nostdin", "-y", "-i", req.AudioPath, "-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le", wav},
	})
	if err != nil {
		return nil, classify(ctx, err, transcription.CategoryDecode)
	}

	out := filepath.Join(dir, "output")
	args := []string{"-m", e.modelPath, "-f", wav, "-l", req.LanguageOrAuto(), "-oj", "-of", out, "-np"}
	if e.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.cfg.Threads))
	}
	if _, err := e.runner.Run(ctx, process.Command{Binary: e.cfg.Binary, Args: args}); err != nil {
		return nil, classify(ctx, err, transcription.CategoryEngine)
	}

	data, err := os.ReadFile(out + ".json")
	if err != nil {
		return nil, transcription.NewFault(transcription.CategoryEngine, fmt.Errorf("read whisper.cpp output: %w", err))
	}
	var doc cliOutput
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, transcription.NewFault(transcription.CategoryEngine, fmt.Errorf("parse whisper.cpp output: %w", err))
	}
	return doc.toResult(), nil
}

// classify maps a subprocess failure; onExit is the category for a
// non-zero exit.
func classify(ctx context.Context, err error, onExit string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, process.ErrBinaryNotFound) {
		return transcription.NewFault(transcription.CategoryUnavailable, err)
	}
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		return transcription.NewFault(onExit, err)
	}
	return transcription.NewFault(transcription.CategoryEngine, err)
}

// --- whisper.cpp -oj output ---

type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []cliSegment `json:"transcription"`
}

type cliSegment struct {
	Offsets struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	} `json:"offsets"`
	Text string `json:"text"`
}

func (o *cliOutput) toResult() *transcription.Result {
	segments := make([]transcription.Segment, len(o.Transcription))
	var text strings.Builder
	for i, seg := range o.Transcription {
		segments[i] = transcription.Segment{
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  seg.Text,
		}
		text.WriteString(seg.Text)
	}
	var duration float64
	if n := len(segments); n > 0 {
		duration = segments[n-1].End
	}
	return &transcription.Result{
		Text:     text.String(),
		Segments: segments,
		Duration: duration,
		Language: o.Result.Language,
	}
}

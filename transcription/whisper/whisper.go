// Package whisper is a transcription backend for a faster-whisper HTTP
// sidecar.
//
// The sidecar exposes GET /health, POST /load and POST /transcribe. Loading
// waits for the sidecar to come up, then asks it to load the model; the
// first load on a fresh host downloads the weights and can take minutes.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kbukum/pilgi/httpclient"
	"github.com/kbukum/pilgi/provider"
	"github.com/kbukum/pilgi/resilience"
	"github.com/kbukum/pilgi/transcription"
)

const (
	// ProviderName is the registered name for the Whisper backend.
	ProviderName = "whisper"

	defaultURL               = "http://localhost:8387"
	defaultTimeout           = 10 * time.Second
	defaultTranscribeTimeout = 30 * time.Minute
	defaultLoadTimeout       = 30 * time.Minute
	defaultStartupAttempts   = 30
	defaultStartupBackoff    = time.Second
)

var (
	_ transcription.Backend = (*Backend)(nil)
	_ transcription.Engine  = (*Engine)(nil)
)

// Config holds configuration for the Whisper sidecar.
type Config struct {
	URL               string        `yaml:"url" mapstructure:"url"`
	Device            string        `yaml:"device" mapstructure:"device"`
	ComputeType       string        `yaml:"compute_type" mapstructure:"compute_type"`
	ChunkLength       int           `yaml:"chunk_length" mapstructure:"chunk_length" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout" mapstructure:"transcribe_timeout"`
	LoadTimeout       time.Duration `yaml:"load_timeout" mapstructure:"load_timeout"`
	StartupAttempts   int           `yaml:"startup_attempts" mapstructure:"startup_attempts"`
	StartupBackoff    time.Duration `yaml:"startup_backoff" mapstructure:"startup_backoff"`
}

// ApplyDefaults fills in unset sidecar settings.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = defaultTranscribeTimeout
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = defaultLoadTimeout
	}
	if c.StartupAttempts <= 0 {
		c.StartupAttempts = defaultStartupAttempts
	}
	if c.StartupBackoff <= 0 {
		c.StartupBackoff = defaultStartupBackoff
	}
}

// Backend loads models into the sidecar.
type Backend struct {
	cfg    Config
	model  string
	client *httpclient.Client
}

// New creates a backend for the given model id.
func New(cfg Config, model string) (*Backend, error) {
	cfg.ApplyDefaults()
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.URL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Backend{cfg: cfg, model: model, client: client}, nil
}

// Factory returns a provider.Factory that creates Whisper backends for the
// configured model.
func Factory(cfg Config) provider.Factory[transcription.Backend, transcription.ModelConfig] {
	return func(mc transcription.ModelConfig) (transcription.Backend, error) {
		return New(cfg, mc.Name)
	}
}

// Name returns the provider name.
func (b *Backend) Name() string { return ProviderName }

// IsAvailable checks if the Whisper sidecar is reachable.
func (b *Backend) IsAvailable(ctx context.Context) bool {
	return b.health(ctx) == nil
}

func (b *Backend) health(ctx context.Context) error {
	_, err := b.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err
}

type loadRequest struct {
	Model       string `json:"model"`
	Device      string `json:"device,omitempty"`
	ComputeType string `json:"compute_type,omitempty"`
}

// Load waits for the sidecar and has it load the model.
func (b *Backend) Load(ctx context.Context, report transcription.ReportFunc) (transcription.Engine, error) {
	report(transcription.LoadFetching, fmt.Sprintf("Waiting for whisper sidecar at %s", b.cfg.URL))
	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
		MaxAttempts:    b.cfg.StartupAttempts,
		InitialBackoff: b.cfg.StartupBackoff,
		MaxBackoff:     5 * b.cfg.StartupBackoff,
		BackoffFactor:  1.5,
		RetryIf:        httpclient.IsRetryable,
	}, b.health)
	if err != nil {
		return nil, httpclient.ToAppError("whisper sidecar", err)
	}

	report(transcription.LoadInitializing, fmt.Sprintf("Loading %s (first run downloads the weights)", b.model))
	_, err = b.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    "/load",
		JSON:    loadRequest{Model: b.model, Device: b.cfg.Device, ComputeType: b.cfg.ComputeType},
		Timeout: b.cfg.LoadTimeout,
	})
	if err != nil && httpclient.KindOf(err) != httpclient.KindNotFound {
		return nil, httpclient.ToAppError("whisper sidecar", err)
	}

	return &Engine{cfg: b.cfg, model: b.model, client: b.client}, nil
}

// Engine sends transcription requests to a sidecar with a loaded model.
type Engine struct {
	cfg    Config
	model  string
	client *httpclient.Client
}

// Name returns the provider name.
func (e *Engine) Name() string { return ProviderName }

// IsAvailable checks if the Whisper sidecar is reachable.
func (e *Engine) IsAvailable(ctx context.Context) bool {
	_, err := e.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil
}

// Transcribe uploads the audio file to the sidecar.
func (e *Engine) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, transcription.NewFault(transcription.CategoryInput, fmt.Errorf("open audio file: %w", err))
	}
	defer f.Close()

	form := httpclient.NewForm().Set("model", e.model)
	if lang := req.LanguageOrAuto(); lang != transcription.LanguageAuto {
		form.Set("language", lang)
	}
	chunk := e.cfg.ChunkLength
	if req.ChunkLength > 0 {
		chunk = req.ChunkLength
	}
	if chunk > 0 {
		form.Set("chunk_length", strconv.Itoa(chunk))
	}
	form.Attach("audio", filepath.Base(req.AudioPath), f)

	var out whisperResponse
	err = e.client.DoJSON(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    "/transcribe",
		Form:    form,
		Timeout: e.cfg.TranscribeTimeout,
	}, &out)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(err)
	}

	return out.toResult(), nil
}

// classify turns a sidecar error into a categorized engine fault. Rejected
// requests mean the sidecar could not decode the input.
func classify(err error) error {
	category := transcription.CategoryDecode
	switch httpclient.KindOf(err) {
	case httpclient.KindTimeout:
		category = transcription.CategoryTimeout
	case httpclient.KindUnreachable:
		category = transcription.CategoryUnavailable
	case httpclient.KindServer, httpclient.KindBusy:
		category = transcription.CategoryEngine
	}
	var he *httpclient.Error
	if errors.As(err, &he) && he.Detail() != "" {
		return transcription.NewFault(category, fmt.Errorf("whisper: %s", he.Detail()))
	}
	return transcription.NewFault(category, err)
}

// --- internal Whisper API response types ---

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

type whisperSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r *whisperResponse) toResult() *transcription.Result {
	segments := make([]transcription.Segment, len(r.Segments))
	for i, seg := range r.Segments {
		segments[i] = transcription.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}
	}

	duration := r.Duration
	if duration == 0 && len(r.Segments) > 0 {
		duration = r.Segments[len(r.Segments)-1].End
	}

	return &transcription.Result{
		Text:     r.Text,
		Segments: segments,
		Duration: duration,
		Language: r.Language,
	}
}

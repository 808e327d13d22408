package transcription

import (
	"time"

	"github.com/kbukum/pilgi/errors"
)

// LanguageAuto asks the engine to detect the spoken language.
const LanguageAuto = "auto"

// Request holds parameters for a transcription call.
type Request struct {
	// AudioPath is the path to the audio or video file to transcribe.
	AudioPath string `json:"audio_path"`
	// Language is the expected language (e.g. "en"). Empty means auto-detect.
	Language string `json:"language,omitempty"`
	// ChunkLength is the recognition window in seconds for backends that
	// chunk long audio. Zero leaves the backend default.
	ChunkLength int `json:"chunk_length,omitempty"`
}

// LanguageOrAuto returns the language hint with the auto-detect default applied.
func (r Request) LanguageOrAuto() string {
	if r.Language == "" {
		return LanguageAuto
	}
	return r.Language
}

// Result is the engine's one-shot output.
type Result struct {
	// Text is the full transcription text, possibly empty.
	Text string `json:"text"`
	// Segments contains time-aligned transcript segments.
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// Language is the detected or specified language.
	Language string `json:"language,omitempty"`
}

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	// Start is the segment start time in seconds.
	Start float64 `json:"start"`
	// End is the segment end time in seconds.
	End float64 `json:"end"`
	// Text is the transcribed text for this segment.
	Text string `json:"text"`
}

// Kind classifies a ProgressEvent.
type Kind string

const (
	KindProgress Kind = "progress"
	KindToken    Kind = "token"
	KindSuccess  Kind = "success"
	KindEmpty    Kind = "empty"
	KindError    Kind = "error"
)

// Phase labels shown next to the progress indicator.
const (
	PhaseValidation = "Waiting for input"
	PhaseNotReady   = "Model not ready"
	PhaseStarting   = "Preparing transcription..."
	PhaseAnalyzing  = "Analyzing audio..."
	PhaseConverting = "Converting to text..."
	PhaseWriting    = "Writing output..."
	PhaseDone       = "Done!"
	PhaseFailed     = "Failed"
)

// ProgressEvent is one item of a session's output stream.
type ProgressEvent struct {
	// Fraction is in [0,1] and never decreases within a session.
	Fraction float64 `json:"fraction"`
	// Phase is a human-readable label for the current step.
	Phase string `json:"phase"`
	// Text is the full text the UI should display for this event.
	Text string `json:"text"`
	// Kind classifies the event.
	Kind Kind `json:"kind"`
	// Terminal is set on the last event of a session.
	Terminal bool `json:"terminal"`
	// Summary is set on a terminal success.
	Summary *Summary `json:"summary,omitempty"`
	// Err is set on a terminal error.
	Err *errors.AppError `json:"error,omitempty"`
}

// Summary describes a finished transcription.
type Summary struct {
	// Model is the short model name shown in the footer.
	Model string `json:"model"`
	// ModelID is the full model identifier.
	ModelID string `json:"model_id"`
	// Language is the language reported by the engine.
	Language string `json:"language,omitempty"`
	// Tokens is the number of rendered tokens.
	Tokens int `json:"tokens"`
	// Elapsed is the wall time from invocation start to the terminal event.
	Elapsed time.Duration `json:"-"`
	// ElapsedSeconds is Elapsed rounded for display.
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// Status is the registry's lifecycle state.
type Status string

const (
	StatusUnloaded Status = "unloaded"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Policy selects when the model is loaded.
type Policy string

const (
	// PolicyEager loads during start-up; a failure aborts the process.
	PolicyEager Policy = "eager"
	// PolicyLazy waits for an explicit prepare.
	PolicyLazy Policy = "lazy"
)

// LoadPhase is a coarse step of a model load.
type LoadPhase string

const (
	LoadStarting     LoadPhase = "starting"
	LoadFetching     LoadPhase = "fetching"
	LoadInitializing LoadPhase = "initializing"
	LoadReady        LoadPhase = "ready"
	LoadFailed       LoadPhase = "failed"
)

// Terminal reports whether the phase ends a load attempt.
func (p LoadPhase) Terminal() bool {
	return p == LoadReady || p == LoadFailed
}

// LoadEvent is published to load observers for every phase change.
type LoadEvent struct {
	Model   string    `json:"model"`
	Phase   LoadPhase `json:"phase"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

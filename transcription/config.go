package transcription

import "time"

// SessionConfig is the transcription section of the application config.
// It holds per-session settings shared by the HTTP and CLI hosts.
type SessionConfig struct {
	// Pacing is the delay between rendered tokens; 0 renders at once.
	Pacing time.Duration `yaml:"pacing" mapstructure:"pacing" validate:"gte=0"`
	// Timeout bounds a whole session; 0 means no limit.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	// FirstRunHint adds the download notice to the starting text.
	FirstRunHint bool `yaml:"first_run_hint" mapstructure:"first_run_hint"`
	// ChunkLength is forwarded to backends that chunk long audio.
	ChunkLength int `yaml:"chunk_length" mapstructure:"chunk_length" validate:"gte=0"`
	// DefaultLanguage applies when a request leaves the language empty.
	DefaultLanguage string `yaml:"default_language" mapstructure:"default_language" validate:"omitempty,language"`
}

// ApplyDefaults fills in unset session settings. A negative pacing is the
// explicit way to ask for none.
func (c *SessionConfig) ApplyDefaults() {
	if c.Pacing == 0 {
		c.Pacing = DefaultPacing
	}
	if c.Pacing < 0 {
		c.Pacing = 0
	}
}

// Request builds an engine request for audioPath with the configured
// defaults applied.
func (c SessionConfig) Request(audioPath, language string) Request {
	if language == "" {
		language = c.DefaultLanguage
	}
	return Request{
		AudioPath:   audioPath,
		Language:    language,
		ChunkLength: c.ChunkLength,
	}
}

// Options returns the session options the config implies.
func (c SessionConfig) Options() []SessionOption {
	return []SessionOption{
		WithPacing(c.Pacing),
		WithFirstRunHint(c.FirstRunHint),
	}
}

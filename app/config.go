package app

import (
	"fmt"
	"os"

	"github.com/kbukum/pilgi/artifact"
	"github.com/kbukum/pilgi/config"
	"github.com/kbukum/pilgi/observability"
	"github.com/kbukum/pilgi/redis"
	"github.com/kbukum/pilgi/server"
	"github.com/kbukum/pilgi/storage"
	"github.com/kbukum/pilgi/transcription"
	"github.com/kbukum/pilgi/transcription/whisper"
	"github.com/kbukum/pilgi/transcription/whispercpp"
	"github.com/kbukum/pilgi/validation"
)

// ServiceName names the process in logs, config lookup and telemetry.
const ServiceName = "pilgi"

// EnvPrefix scopes environment overrides: PILGI_MODEL_POLICY sets
// model.policy.
const EnvPrefix = "PILGI"

// Config is the complete pilgi configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config               `yaml:"server" mapstructure:"server"`
	Model         transcription.ModelConfig   `yaml:"model" mapstructure:"model"`
	Transcription transcription.SessionConfig `yaml:"transcription" mapstructure:"transcription"`
	Whisper       whisper.Config              `yaml:"whisper" mapstructure:"whisper"`
	WhisperCPP    whispercpp.Config           `yaml:"whispercpp" mapstructure:"whispercpp"`
	Storage       storage.Config              `yaml:"storage" mapstructure:"storage"`
	Redis         redis.Config                `yaml:"redis" mapstructure:"redis"`
	Artifacts     artifact.Config             `yaml:"artifacts" mapstructure:"artifacts"`
	Observability observability.Config        `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Model.ApplyDefaults()
	c.Transcription.ApplyDefaults()
	c.Whisper.ApplyDefaults()
	c.WhisperCPP.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Artifacts.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks the struct tags of every section and the server rules
// that tags cannot express.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads config.yml, .env and PILGI_* variables into a Config. path,
// when set, names the config file explicitly. Defaults are applied by
// bootstrap.NewApp.
func Load(path string) (*Config, error) {
	opts := []config.Option{config.WithEnvPrefix(EnvPrefix)}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		opts = append(opts, config.WithConfigFile(path))
	}
	var cfg Config
	if err := config.LoadConfig(ServiceName, &cfg, opts...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

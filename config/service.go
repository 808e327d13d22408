package config

import (
	"cmp"
	"fmt"
	"time"

	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/validation"
)

// ServiceConfig is the part of the config every pilgi process shares.
// Embed it squashed so its keys sit at the top level:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Model transcription.ModelConfig `yaml:"model" mapstructure:"model"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name" validate:"required"`
	Environment string        `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
	// StopTimeout bounds how long stop hooks and components get on exit.
	StopTimeout time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout" validate:"gte=0"`
}

// GetServiceConfig is promoted to embedding structs, which is how they
// satisfy bootstrap.Config.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig { return c }

// ApplyDefaults names the service pilgi and runs it in development. A
// development environment turns on debug, and debug lowers the default
// log level.
func (c *ServiceConfig) ApplyDefaults() {
	c.Name = cmp.Or(c.Name, "pilgi")
	c.Environment = cmp.Or(c.Environment, "development")
	c.Debug = c.Debug || c.Environment == "development"
	if c.Debug {
		c.Logging.Level = cmp.Or(c.Logging.Level, "debug")
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 20 * time.Second
	}
	c.Logging.ApplyDefaults()
}

func (c *ServiceConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

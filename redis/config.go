package redis

import (
	"time"

	"github.com/kbukum/pilgi/validation"
)

// Config configures the Redis connection behind the artifact index.
type Config struct {
	// Enabled switches the artifact index from memory to Redis.
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr     string `yaml:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `yaml:"password" mapstructure:"password" json:"-"`
	DB       int    `yaml:"db" mapstructure:"db" validate:"gte=0"`

	PoolSize   int `yaml:"pool_size" mapstructure:"pool_size" validate:"gte=0"`
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" validate:"gte=0"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gte=0"`
}

// ApplyDefaults fills in unset pool and timeout settings. The index does a
// handful of single-key commands per session, so the pool stays small.
func (c *Config) ApplyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 4
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// Validate checks the struct tags. A disabled section only needs sane
// numbers.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

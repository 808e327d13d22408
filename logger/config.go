package logger

import (
	"cmp"
	"fmt"
	"slices"
)

// Config is the logging section.
type Config struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"`
	Output    string `yaml:"output" mapstructure:"output"` // stdout | stderr
	NoColor   bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller    bool   `yaml:"caller" mapstructure:"caller"`
}

// ApplyDefaults logs info and up to stderr in console format, always
// timestamped.
func (c *Config) ApplyDefaults() {
	c.Level = cmp.Or(c.Level, "info")
	c.Format = cmp.Or(c.Format, FormatConsole)
	c.Output = cmp.Or(c.Output, "stderr")
	c.Timestamp = true
}

var allowed = []struct {
	key    string
	get    func(*Config) string
	values []string
}{
	{"level", func(c *Config) string { return c.Level }, []string{"trace", "debug", "info", "warn", "error", "fatal"}},
	{"format", func(c *Config) string { return c.Format }, []string{FormatJSON, FormatConsole, FormatPretty, "text"}},
	{"output", func(c *Config) string { return c.Output }, []string{"stdout", "stderr"}},
}

// Validate reports the first key holding a value outside its set.
func (c *Config) Validate() error {
	for _, a := range allowed {
		if v := a.get(c); !slices.Contains(a.values, v) {
			return fmt.Errorf("logging.%s must be one of %v (got: %s)", a.key, a.values, v)
		}
	}
	return nil
}

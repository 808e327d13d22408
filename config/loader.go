package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/pilgi/logger"
)

// Option adjusts how LoadConfig finds and layers configuration.
type Option func(*loadOptions)

type loadOptions struct {
	configFile string
	envFile    string
	envPrefix  string
	defaults   map[string]any
	exists     func(path string) bool
}

// WithConfigFile names the YAML file instead of searching for one.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile names the .env file instead of searching for one.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// WithEnvPrefix makes only PREFIX_* variables count, so with "PILGI"
// PILGI_MODEL_MAX_CONCURRENT sets model.max_concurrent.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = strings.ToUpper(strings.TrimSuffix(prefix, "_")) }
}

// WithDefaults sets values that both the file and the environment override.
// Keys are dotted paths such as "model.policy".
func WithDefaults(defaults map[string]any) Option {
	return func(o *loadOptions) { o.defaults = defaults }
}

// LoadConfig fills cfg, a pointer to a mapstructure-tagged struct, from
// defaults, then the YAML file, then the environment. A .env file is
// loaded into the environment first without overriding variables already
// set. Missing files are not an error.
func LoadConfig(service string, cfg any, opts ...Option) error {
	o := loadOptions{exists: fileExists}
	for _, opt := range opts {
		opt(&o)
	}
	if o.configFile == "" {
		o.configFile = firstExisting(o.exists, configCandidates(service))
	}
	if o.envFile == "" {
		o.envFile = firstExisting(o.exists, envCandidates(service))
	}

	v := viper.New()
	for key, value := range o.defaults {
		v.SetDefault(key, value)
	}

	if o.configFile != "" && o.exists(o.configFile) {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", o.configFile, err)
		}
		logger.Debug("config file loaded", logger.Fields("file", o.configFile))
	}
	if o.envFile != "" && o.exists(o.envFile) {
		if err := godotenv.Load(o.envFile); err != nil {
			logger.Warn("env file ignored", logger.Fields("file", o.envFile, logger.FieldError, err.Error()))
		}
	}

	for key, env := range envBindings(reflect.TypeOf(cfg), o.envPrefix) {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode %s config: %w", service, err)
	}
	return nil
}

// configCandidates lists config.yml locations from most to least specific.
func configCandidates(service string) []string {
	paths := []string{
		filepath.Join("cmd", service, "config.yml"),
		filepath.Join("config", "config.yml"),
		"config.yml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, service, "config.yml"))
	}
	return paths
}

func envCandidates(service string) []string {
	return []string{".env." + service, filepath.Join("config", ".env"), ".env"}
}

func firstExisting(exists func(string) bool, paths []string) string {
	for _, p := range paths {
		if exists(p) {
			return p
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// envBindings walks the mapstructure tags of t and maps every leaf key to
// its environment variable: model.max_concurrent becomes
// PREFIX_MODEL_MAX_CONCURRENT. Squashed embedded structs contribute their
// keys at the parent level.
func envBindings(t reflect.Type, prefix string) map[string]string {
	out := make(map[string]string)
	var walk func(t reflect.Type, path []string)
	walk = func(t reflect.Type, path []string) {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			key := strings.Join(path, ".")
			env := strings.ToUpper(strings.Join(path, "_"))
			if prefix != "" {
				env = prefix + "_" + env
			}
			out[key] = env
			return
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, squash := mapstructureName(f)
			if name == "-" {
				continue
			}
			if squash {
				walk(f.Type, path)
				continue
			}
			walk(f.Type, append(append([]string(nil), path...), name))
		}
	}
	walk(t, nil)
	return out
}

// mapstructureName returns the key a field decodes from and whether it is
// squashed into its parent.
func mapstructureName(f reflect.StructField) (string, bool) {
	name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
	squash := strings.Contains(opts, "squash") || (f.Anonymous && name == "")
	if name == "" {
		name = strings.ToLower(f.Name)
	}
	return name, squash
}

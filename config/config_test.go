package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty config gets name and development", func(t *testing.T) {
		cfg := ServiceConfig{}
		cfg.ApplyDefaults()
		if cfg.Name != "pilgi" {
			t.Errorf("expected name 'pilgi', got %q", cfg.Name)
		}
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func() ServiceConfig {
		c := ServiceConfig{Name: "svc", Environment: "staging"}
		c.Logging.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*ServiceConfig)
		wantErr string
	}{
		{"valid", func(*ServiceConfig) {}, ""},
		{"missing name", func(c *ServiceConfig) { c.Name = "" }, "name: is required"},
		{"invalid environment", func(c *ServiceConfig) { c.Environment = "qa" }, "environment: must be one of: development staging production"},
		{"negative stop timeout", func(c *ServiceConfig) { c.StopTimeout = -time.Second }, "stop_timeout: must be at least 0"},
		{"invalid logging", func(c *ServiceConfig) { c.Logging.Format = "xml" }, "logging:"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Model         struct {
		Policy        string        `mapstructure:"policy"`
		MaxConcurrent int           `mapstructure:"max_concurrent"`
		Pacing        time.Duration `mapstructure:"pacing"`
	} `mapstructure:"model"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigWithYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", `
name: pilgi
environment: staging
model:
  policy: eager
  max_concurrent: 2
  pacing: 30ms
`)

	var cfg testConfig
	if err := LoadConfig("pilgi", &cfg, WithConfigFile(path), WithEnvFile("/nonexistent/.env"), WithEnvPrefix("PILGI_TEST_YAML")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "pilgi" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config: %+v", cfg.ServiceConfig)
	}
	if cfg.Model.Policy != "eager" || cfg.Model.MaxConcurrent != 2 {
		t.Errorf("unexpected model config: %+v", cfg.Model)
	}
	if cfg.Model.Pacing != 30*time.Millisecond {
		t.Errorf("expected pacing 30ms, got %v", cfg.Model.Pacing)
	}
}

func TestLoadConfigEnvPrefixOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", "model:\n  policy: eager\n")
	t.Setenv("PILGI_MODEL_POLICY", "lazy")
	t.Setenv("PILGI_MODEL_MAX_CONCURRENT", "3")
	t.Setenv("MODEL_PACING", "1s") // no prefix, ignored

	var cfg testConfig
	err := LoadConfig("pilgi", &cfg, WithConfigFile(path), WithEnvFile("/nonexistent/.env"), WithEnvPrefix("PILGI_"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Model.Policy != "lazy" {
		t.Errorf("expected env override 'lazy', got %q", cfg.Model.Policy)
	}
	if cfg.Model.MaxConcurrent != 3 {
		t.Errorf("expected max_concurrent 3, got %d", cfg.Model.MaxConcurrent)
	}
	if cfg.Model.Pacing != 0 {
		t.Errorf("expected unprefixed env var to be ignored, got %v", cfg.Model.Pacing)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("pilgi", &cfg,
		WithConfigFile("/nonexistent/config.yml"),
		WithEnvFile("/nonexistent/.env"),
		WithEnvPrefix("PILGI_TEST_DEFAULTS"),
		WithDefaults(map[string]any{"model.policy": "lazy"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Model.Policy != "lazy" {
		t.Errorf("expected default 'lazy', got %q", cfg.Model.Policy)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", "model: [unterminated\n")
	var cfg testConfig
	if err := LoadConfig("pilgi", &cfg, WithConfigFile(path), WithEnvPrefix("PILGI_TEST_BAD")); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvPrefix("PILGI_TEST_MISSING"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestCandidateOrder(t *testing.T) {
	present := map[string]bool{}
	for _, p := range []string{filepath.Join("cmd", "pilgi", "config.yml"), "config.yml", filepath.Join("config", ".env")} {
		present[p] = true
	}
	exists := func(p string) bool { return present[p] }

	if got := firstExisting(exists, configCandidates("pilgi")); got != filepath.Join("cmd", "pilgi", "config.yml") {
		t.Errorf("config file = %q", got)
	}
	if got := firstExisting(exists, envCandidates("pilgi")); got != filepath.Join("config", ".env") {
		t.Errorf("env file = %q", got)
	}
	if got := firstExisting(exists, nil); got != "" {
		t.Errorf("no candidates resolved to %q", got)
	}
}

func TestEnvBindings(t *testing.T) {
	got := envBindings(reflect.TypeOf(&testConfig{}), "PILGI")
	want := map[string]string{
		"name":                 "PILGI_NAME",
		"logging.level":        "PILGI_LOGGING_LEVEL",
		"stop_timeout":         "PILGI_STOP_TIMEOUT",
		"model.max_concurrent": "PILGI_MODEL_MAX_CONCURRENT",
		"model.pacing":         "PILGI_MODEL_PACING",
	}
	for key, env := range want {
		if got[key] != env {
			t.Errorf("%s bound to %q, want %q", key, got[key], env)
		}
	}
	if _, ok := got["serviceconfig.name"]; ok {
		t.Error("squashed struct leaked its own key")
	}

	bare := envBindings(reflect.TypeOf(testConfig{}), "")
	if bare["model.policy"] != "MODEL_POLICY" {
		t.Errorf("unprefixed binding = %q", bare["model.policy"])
	}
}

func TestEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yml", "model:\n  policy: eager\n")
	envPath := writeFile(t, dir, ".env", "PILGI_TEST_DOTENV_MODEL_POLICY=lazy\nPILGI_TEST_DOTENV_MODEL_MAX_CONCURRENT=4\n")
	t.Setenv("PILGI_TEST_DOTENV_MODEL_MAX_CONCURRENT", "2")
	t.Cleanup(func() { os.Unsetenv("PILGI_TEST_DOTENV_MODEL_POLICY") })

	var cfg testConfig
	if err := LoadConfig("pilgi", &cfg, WithConfigFile(cfgPath), WithEnvFile(envPath), WithEnvPrefix("PILGI_TEST_DOTENV")); err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Policy != "lazy" {
		t.Errorf("policy = %q, want .env value", cfg.Model.Policy)
	}
	if cfg.Model.MaxConcurrent != 2 {
		t.Errorf("max_concurrent = %d, want the process value", cfg.Model.MaxConcurrent)
	}
}

func TestWithEnvPrefixNormalizes(t *testing.T) {
	var o loadOptions
	WithEnvPrefix("pilgi_")(&o)
	if o.envPrefix != "PILGI" {
		t.Errorf("prefix = %q", o.envPrefix)
	}
}

// Package config loads service configuration with Viper.
//
// LoadConfig layers defaults, a config.yml and the environment, in that
// order. Without WithConfigFile it looks in ./cmd/<service>, ./config, the
// working directory and the user config directory. A .env file, when
// found, feeds the environment. Every mapstructure key of the target
// struct is bound to an environment variable, so with
// WithEnvPrefix("PILGI") the variable PILGI_MODEL_POLICY=lazy sets
// model.policy.
//
//	var cfg app.Config
//	err := config.LoadConfig("pilgi", &cfg, config.WithEnvPrefix("PILGI"))
package config

// Package validation checks configuration and request input.
//
// Struct tags cover configuration sections:
//
//	type ModelConfig struct {
//	    Policy        string `mapstructure:"policy" validate:"oneof=eager lazy"`
//	    MaxConcurrent int    `mapstructure:"max_concurrent" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// The builder collects errors for values that arrive one by one, such as
// form fields on an upload:
//
//	v := validation.New()
//	v.Language("language", form.Language)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation

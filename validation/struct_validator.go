package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	structs     *validator.Validate
	structsOnce sync.Once
)

// engine returns the shared go-playground validator. Fields are named by
// their config key so messages read like the YAML the operator wrote.
func engine() *validator.Validate {
	structsOnce.Do(func() {
		structs = validator.New(validator.WithRequiredStructEnabled())
		structs.RegisterTagNameFunc(keyName)
		_ = structs.RegisterValidation("language", func(fl validator.FieldLevel) bool {
			return languagePattern.MatchString(fl.Field().String())
		})
	})
	return structs
}

func keyName(f reflect.StructField) string {
	for _, tag := range []string{"mapstructure", "json"} {
		if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
			return name
		}
	}
	return toSnakeCase(f.Name)
}

// Validate checks s against its `validate` tags. Failures come back as one
// VALIDATION AppError naming every offending key, e.g. "model.policy".
// Besides the stock tags, "language" accepts a language code or "auto".
func Validate(s any) error {
	err := engine().Struct(s)
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	v := New()
	for _, fe := range fields {
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		v.Fail(path, describe(fe))
	}
	return v.Validate()
}

var bounds = map[string]string{
	"gt": "more than", "gte": "at least", "min": "at least",
	"lt": "less than", "lte": "at most", "max": "at most",
}

func describe(fe validator.FieldError) string {
	if word, ok := bounds[fe.Tag()]; ok {
		msg := "must be " + word + " " + fe.Param()
		if fe.Kind() == reflect.String {
			msg += " characters"
		}
		return msg
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "hostname_port":
		return "must be host:port"
	case "language":
		return languageHint
	}
	return "is invalid"
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if 'A' <= r && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate reports fields by their koanf keys so messages name the
// setting as it appears in YAML.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	v.RegisterStructValidation(validateRetry, RetryConfig{})
	v.RegisterStructValidation(validateSync, SyncConfig{})

	return v
}

func validateRetry(sl validator.StructLevel) {
	r, _ := sl.Current().Interface().(RetryConfig)

	if r.InitialInterval > 0 && r.MaxInterval > 0 && r.MaxInterval < r.InitialInterval {
		sl.ReportError(r.MaxInterval, "max_interval", "MaxInterval", "gtefield", "initial_interval")
	}
}

// validateSync keeps a cycle's deadline inside its interval so cycles
// never overlap.
func validateSync(sl validator.StructLevel) {
	s, _ := sl.Current().Interface().(SyncConfig)

	if s.Enabled && s.Interval > 0 && s.Timeout > s.Interval {
		sl.ReportError(s.Timeout, "timeout", "Timeout", "ltefield", "interval")
	}
}

// Validate checks c and reports every invalid setting at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

func describe(fe validator.FieldError) string {
	key := keyPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", key, strings.ToLower(fe.Param()))
	case "required_unless":
		return fmt.Sprintf("%s is required unless %s", key, strings.ToLower(fe.Param()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	case "url":
		return key + " must be a valid URL"
	case "gtefield":
		return fmt.Sprintf("%s must not be less than %s", key, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", key, fe.Tag())
	}
}

// keyPath drops the root type from a validator namespace:
// "Config.client.retry.max_attempts" becomes "client.retry.max_attempts".
func keyPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}

	return rest
}

// Package config defines the on-disk/CLI-flag configuration surface for
// jobflowd: supervisor defaults, repository DSN, and the health server bind
// address. Structs are unmarshalled by viper from TOML + flags and checked
// with go-playground/validator, one file per concern with mapstructure,
// validate, and flag struct tags.
package config

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validatable is implemented by every config section.
type Validatable interface {
	Validate() error
}

func validateConfig(v any) error {
	return validate.Struct(v)
}

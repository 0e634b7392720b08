// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

type loadOptions struct {
	optional bool
	lenient  bool
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// Optional makes a missing file leave target untouched instead of failing.
// target is still validated.
func Optional() LoadOption {
	return func(o *loadOptions) { o.optional = true }
}

// AllowUnknownFields accepts keys that have no matching field in target.
func AllowUnknownFields() LoadOption {
	return func(o *loadOptions) { o.lenient = true }
}

// Load reads a YAML file into target, which should hold the defaults.
// ${VAR} references are expanded from the environment before parsing, and
// unknown keys are rejected unless AllowUnknownFields is given. If target
// implements Validator it is validated last.
func Load[T any](filename string, target *T, opts ...LoadOption) error {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist) && o.optional:
		return validate(target)
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(!o.lenient)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return validate(target)
}

func validate[T any](target *T) error {
	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// MustLoad loads configuration and panics on failure.
func MustLoad[T any](filename string, target *T, opts ...LoadOption) {
	if err := Load(filename, target, opts...); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
}

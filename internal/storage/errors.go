// Package storage holds configuration plumbing shared by the contract store
// backends.
package storage

import "fmt"

// ConfigError reports an invalid or unusable backend setting.
type ConfigError struct {
	Backend string
	Field   string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	case e.Value == "":
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Field, e.Message)
	default:
		return fmt.Sprintf("%s: %s=%q: %s", e.Backend, e.Field, e.Value, e.Message)
	}
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// NewConfigError reports a problem with a field.
func NewConfigError(backend, field, message string) *ConfigError {
	return &ConfigError{Backend: backend, Field: field, Message: message}
}

// WithValue records the offending value.
func (e *ConfigError) WithValue(v string) *ConfigError {
	e.Value = v
	return e
}

// WithCause records the underlying error.
func (e *ConfigError) WithCause(err error) *ConfigError {
	e.Cause = err
	return e
}

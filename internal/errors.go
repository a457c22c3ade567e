package internal

import (
	"errors"
	"fmt"
)

// ConfigError reports a configuration setting or rule that cannot be used. The
// collector must not process any job when it sees one.
type ConfigError struct {
	Setting string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Setting, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// MissingAttributeError reports an attribute a rule needs that the scheduler did not provide.
type MissingAttributeError struct {
	Key string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("attribute %q not found in job info", e.Key)
}

// AmountParseError reports an attribute value that is not a non-negative integer.
type AmountParseError struct {
	Key   string
	Value string
	Err   error
}

func (e *AmountParseError) Error() string {
	return fmt.Sprintf("cannot parse attribute %q (value: %q) into an amount: %v", e.Key, e.Value, e.Err)
}

func (e *AmountParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a record field that is not acceptable after sanitization.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsConfigError reports whether err stems from the rule configuration.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsJobDataError reports whether err stems from the scheduler's job data or a
// record field, as opposed to configuration or storage.
func IsJobDataError(err error) bool {
	var (
		missing *MissingAttributeError
		parse   *AmountParseError
		invalid *ValidationError
	)
	return errors.As(err, &missing) || errors.As(err, &parse) || errors.As(err, &invalid)
}

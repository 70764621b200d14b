package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a field that failed validation and the safe
// default it was reset to. It is a warning: the config stays usable.
type ValidationError struct {
	Field   string // The JSON field name (e.g., "maxFileSize")
	Value   any    // The invalid value
	Default any    // The value substituted
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v, using: %v)", e.Field, e.Message, e.Value, e.Default)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// fieldRule maps a struct field to its JSON name, the message reported when
// it fails, and how to reset it.
type fieldRule struct {
	json    string
	message string
	reset   func(c *LogConfig) any
}

var fieldRules = map[string]fieldRule{
	"Level": {
		json:    "level",
		message: "must be between 0 (TRACE) and 5 (FATAL)",
		reset:   func(c *LogConfig) any { c.Level = SafeLevel; return c.Level },
	},
	"LogDir": {
		json:    "logDir",
		message: "must not be empty",
		reset:   func(c *LogConfig) any { c.LogDir = FallbackLogDir(); return c.LogDir },
	},
	"MaxFileSize": {
		json:    "maxFileSize",
		message: "must be greater than zero and at most 1048576 MB",
		reset:   func(c *LogConfig) any { c.MaxFileSize = SafeMaxFileSize; return c.MaxFileSize },
	},
	"MaxFiles": {
		json:    "maxFiles",
		message: "must be greater than zero",
		reset:   func(c *LogConfig) any { c.MaxFiles = SafeMaxFiles; return c.MaxFiles },
	},
	"RetentionDays": {
		json:    "retentionDays",
		message: "must be between 1 and 36500 days",
		reset:   func(c *LogConfig) any { c.RetentionDays = SafeRetentionDays; return c.RetentionDays },
	},
	"BufferSize": {
		json:    "bufferSize",
		message: "must be greater than zero",
		reset:   func(c *LogConfig) any { c.BufferSize = SafeBufferSize; return c.BufferSize },
	},
	"FlushInterval": {
		json:    "flushInterval",
		message: "must be between 1 and 86400000 ms",
		reset:   func(c *LogConfig) any { c.FlushInterval = SafeFlushInterval; return c.FlushInterval },
	},
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the LogConfig and returns one ValidationError per invalid
// field. The receiver is not modified.
func (c LogConfig) Validate() []ValidationError {
	_, errs := Sanitize(c)
	return errs
}

// Sanitize returns c with every invalid field reset to its safe default,
// together with a ValidationError per reset field. A whitespace-only LogDir
// counts as empty.
func Sanitize(c LogConfig) (LogConfig, []ValidationError) {
	c.LogDir = strings.TrimSpace(c.LogDir)

	err := structValidator().Struct(c)
	if err == nil {
		return c, nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return c, nil
	}

	var result []ValidationError
	for _, fe := range fieldErrs {
		rule, ok := fieldRules[fe.StructField()]
		if !ok {
			continue
		}
		value := fe.Value()
		result = append(result, ValidationError{
			Field:   rule.json,
			Value:   value,
			Default: rule.reset(&c),
			Message: rule.message,
		})
	}
	return c, result
}

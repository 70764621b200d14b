// Package errors provides centralized error definitions and error handling utilities
// for logkeeper. It defines sentinel errors, typed errors carrying the context of
// the failed operation, and classification helpers.
//
// # Error Types
//
//   - IOError: a filesystem operation (read, write, rename, gzip, mkdir) failed
//   - WatcherError: a configuration watcher panicked while being notified
//   - NotFoundError: a log file or backup does not exist
//
// Configuration values that fail validation are not errors: they are clamped to
// a safe default and reported as config.ValidationError warnings.
//
// # Usage
//
//	err := errors.NewIOError("rename", path, cause)
//	if errors.Is(err, fs.ErrNotExist) { ... }
//
//	var ioErr *errors.IOError
//	if errors.As(err, &ioErr) { ... }
//
// # Propagation
//
// None of the public logging entry points let an error escape into the host
// application. Components log the error at the level returned by GetSeverity
// and continue.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfig indicates that a configuration document could not be parsed.
	ErrInvalidConfig = New("invalid configuration")
	// ErrBackupNotFound indicates that a configuration backup does not exist.
	ErrBackupNotFound = New("backup not found")
	// ErrLogFileNotFound indicates that a requested log file does not exist.
	ErrLogFileNotFound = New("log file not found")
	// ErrPathOutsideLogDir indicates a log file name that resolves outside the log directory.
	ErrPathOutsideLogDir = New("path escapes log directory")
	// ErrClosed indicates an operation on a manager that has been destroyed.
	ErrClosed = New("manager is closed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// LogkeeperError is the base interface for all typed errors in this module.
type LogkeeperError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity
}

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// -----------------------------------------------------------------------------
// IOError
// -----------------------------------------------------------------------------

// IOError represents a failed filesystem operation.
//
// Example:
//
//	err := errors.NewIOError("append", "/logs/2026-10-18/s.log", cause)
//	fmt.Println(err) // "io error [op=append, path=/logs/2026-10-18/s.log]: permission denied"
type IOError struct {
	baseError
	Op   string
	Path string
}

// NewIOError creates a new IOError for the given operation and path.
func NewIOError(op, path string, cause error) *IOError {
	return &IOError{
		baseError: baseError{
			message:  op + " failed",
			cause:    cause,
			severity: SeverityError,
		},
		Op:   op,
		Path: path,
	}
}

// WithSeverity sets the error severity.
func (e *IOError) WithSeverity(s Severity) *IOError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *IOError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "io error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("io error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *IOError) Is(target error) bool {
	if _, ok := target.(*IOError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// WatcherError
// -----------------------------------------------------------------------------

// WatcherError represents a configuration watcher that panicked during
// notification. The panic value is kept for diagnostics.
type WatcherError struct {
	baseError
	Index int
	Value any
}

// NewWatcherError creates a WatcherError for the watcher registered at index.
func NewWatcherError(index int, value any) *WatcherError {
	var cause error
	if err, ok := value.(error); ok {
		cause = err
	}
	return &WatcherError{
		baseError: baseError{
			message:  "config watcher panicked",
			cause:    cause,
			severity: SeverityWarning,
		},
		Index: index,
		Value: value,
	}
}

// Error returns the formatted error message.
func (e *WatcherError) Error() string {
	return fmt.Sprintf("watcher error [index=%d]: %s: %v", e.Index, e.message, e.Value)
}

// -----------------------------------------------------------------------------
// NotFoundError
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("log file", "2026-10-18/s.log", errors.ErrLogFileNotFound)
//	fmt.Println(err) // "log file '2026-10-18/s.log' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError. The sentinel is matched by errors.Is.
func NewNotFoundError(resourceType, resourceID string, sentinel error) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			cause:    sentinel,
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement LogkeeperError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var typed LogkeeperError
	if As(err, &typed) {
		return typed.Severity()
	}

	return SeverityError
}

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to persist config")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

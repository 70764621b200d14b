package logging

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// EntryOption sets an optional field of an entry.
type EntryOption func(*Entry)

// WithData attaches structured data. Repeated calls merge, later keys win.
func WithData(data map[string]any) EntryOption {
	return func(e *Entry) {
		if len(data) == 0 {
			return
		}
		if e.Data == nil {
			e.Data = make(map[string]any, len(data))
		}
		for k, v := range data {
			e.Data[k] = v
		}
	}
}

// WithField attaches a single data key.
func WithField(key string, value any) EntryOption {
	return WithData(map[string]any{key: value})
}

// WithError attaches err's type name and message.
func WithError(err error) EntryOption {
	return func(e *Entry) {
		if info := NewErrorInfo(err); info != nil {
			if e.Error != nil && e.Error.Stack != "" {
				info.Stack = e.Error.Stack
			}
			e.Error = info
		}
	}
}

// WithStack records a stack trace on the entry's error. It has no effect
// unless an error is attached.
func WithStack(stack string) EntryOption {
	return func(e *Entry) {
		if e.Error != nil {
			e.Error.Stack = stack
		}
	}
}

// WithTransaction tags the entry with a transaction id.
func WithTransaction(id string) EntryOption {
	return func(e *Entry) { e.TransactionID = id }
}

// WithUser tags the entry with a user id.
func WithUser(id string) EntryOption {
	return func(e *Entry) { e.UserID = id }
}

// WithSession tags the entry with a session id.
func WithSession(id string) EntryOption {
	return func(e *Entry) { e.SessionID = id }
}

// WithThread records a thread id in the process info.
func WithThread(tid int) EntryOption {
	return func(e *Entry) { e.Process.TID = tid }
}

// NewTransactionID returns a fresh id for correlating related entries.
func NewTransactionID() string {
	return uuid.NewString()
}

// Logger builds entries for one source and hands them to the Service.
// Child loggers created with With share the Service.
type Logger struct {
	svc      *Service
	source   Source
	pid      int
	defaults []EntryOption
}

func newLogger(svc *Service, source Source) *Logger {
	return &Logger{svc: svc, source: source, pid: os.Getpid()}
}

// Source returns the source this logger stamps on entries.
func (l *Logger) Source() Source {
	return l.source
}

// With returns a child logger that applies opts to every entry before the
// per-call options.
func (l *Logger) With(opts ...EntryOption) *Logger {
	child := *l
	child.defaults = append(append([]EntryOption(nil), l.defaults...), opts...)
	return &child
}

// Log emits an entry at level.
func (l *Logger) Log(level Level, message string, category Category, filename string, opts ...EntryOption) {
	if !l.svc.Enabled(level) {
		return
	}
	e := Entry{
		Timestamp: Timestamp(l.svc.now()),
		Source:    l.source,
		Level:     level,
		Process:   ProcessInfo{Type: l.source.processType(), PID: l.pid},
		Module:    ModuleInfo{Category: category, Filename: filename},
		Message:   message,
	}
	for _, opt := range l.defaults {
		opt(&e)
	}
	for _, opt := range opts {
		opt(&e)
	}
	l.svc.Write(e)
}

// Trace logs at TRACE.
func (l *Logger) Trace(message string, category Category, filename string, opts ...EntryOption) {
	l.Log(LevelTrace, message, category, filename, opts...)
}

// Debug logs at DEBUG.
func (l *Logger) Debug(message string, category Category, filename string, opts ...EntryOption) {
	l.Log(LevelDebug, message, category, filename, opts...)
}

// Info logs at INFO.
func (l *Logger) Info(message string, category Category, filename string, opts ...EntryOption) {
	l.Log(LevelInfo, message, category, filename, opts...)
}

// Warn logs at WARN.
func (l *Logger) Warn(message string, category Category, filename string, opts ...EntryOption) {
	l.Log(LevelWarn, message, category, filename, opts...)
}

// Error logs at ERROR. The entry reaches disk before Error returns.
func (l *Logger) Error(message string, category Category, filename string, opts ...EntryOption) {
	l.Log(LevelError, message, category, filename, opts...)
}

// Fatal logs at FATAL. The entry reaches disk before Fatal returns. It does
// not exit the process.
func (l *Logger) Fatal(message string, category Category, filename string, opts ...EntryOption) {
	l.Log(LevelFatal, message, category, filename, opts...)
}

// AppStarted records a successful startup.
func (l *Logger) AppStarted(version string, startup time.Duration) {
	l.Info("Application started", CategoryApp, "main", WithData(map[string]any{
		"version":    version,
		"startup_ms": startup.Milliseconds(),
	}))
}

// AppStartFailed records a startup failure.
func (l *Logger) AppStartFailed(err error) {
	l.Fatal("Application failed to start", CategoryApp, "main", WithError(err))
}

// ConfigLoaded records that a configuration file was loaded.
func (l *Logger) ConfigLoaded(path string) {
	l.Info("Configuration loaded", CategoryConfig, "config", WithField("path", path))
}

// ConfigLoadFailed records a configuration load failure.
func (l *Logger) ConfigLoadFailed(path string, err error) {
	l.Error("Failed to load configuration", CategoryConfig, "config",
		WithField("path", path), WithError(err))
}

// UncaughtError records a panic or an error nothing handled, with the
// current goroutine's stack.
func (l *Logger) UncaughtError(err error) {
	l.Fatal("Uncaught error", CategorySystem, "process",
		WithError(err), WithStack(string(debug.Stack())))
}

// RecoverPanic logs a panic in progress as an uncaught error and re-panics.
// Use it as a deferred call.
func (l *Logger) RecoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	}
	l.UncaughtError(err)
	l.svc.Flush()
	panic(r)
}

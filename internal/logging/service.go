package logging

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Iron-Ham/logkeeper/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCleanupInterval is how often a Service sweeps expired log files.
const DefaultCleanupInterval = 24 * time.Hour

// Service composes the config manager, the file manager and the console
// sink, and hands out one Logger per source.
//
// Entries are buffered; call Flush or Close before the process exits.
type Service struct {
	config   *config.Manager
	src      ConfigSource
	files    *FileManager
	console  *ConsoleSink
	registry *prometheus.Registry
	logger   *slog.Logger
	now      func() time.Time

	unwatch func()

	mu      sync.Mutex
	loggers map[Source]*Logger

	closeOnce sync.Once
}

type serviceOptions struct {
	source      ConfigSource
	console     *ConsoleSink
	logger      *slog.Logger
	now         func() time.Time
	fileOptions []FileManagerOption
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

// WithConsole replaces the console sink (default: stdout and stderr).
func WithConsole(c *ConsoleSink) ServiceOption {
	return func(o *serviceOptions) { o.console = c }
}

// WithSource makes the service read its settings from src instead of the
// config manager, e.g. to apply a temporary override.
func WithSource(src ConfigSource) ServiceOption {
	return func(o *serviceOptions) { o.source = src }
}

// WithServiceLogger sets the logger for the service's own diagnostics. It is
// also passed to the file manager.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = logger }
}

// WithServiceClock overrides the time source for entry timestamps and file
// management.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) { o.now = now }
}

// WithFileOptions passes options through to the file manager.
func WithFileOptions(opts ...FileManagerOption) ServiceOption {
	return func(o *serviceOptions) { o.fileOptions = append(o.fileOptions, opts...) }
}

// NewService starts a logging service on top of cfg.
func NewService(cfg *config.Manager, opts ...ServiceOption) *Service {
	o := serviceOptions{
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.console == nil {
		o.console = NewConsoleSink(os.Stdout, os.Stderr)
	}
	if o.source == nil {
		o.source = cfg
	}

	registry := prometheus.NewRegistry()
	fileOpts := append([]FileManagerOption{
		WithLogger(o.logger),
		WithClock(o.now),
		WithMetrics(NewMetrics(registry)),
		WithCleanupInterval(DefaultCleanupInterval),
	}, o.fileOptions...)

	s := &Service{
		config:   cfg,
		src:      o.source,
		files:    NewFileManager(o.source, fileOpts...),
		console:  o.console,
		registry: registry,
		logger:   o.logger,
		now:      o.now,
		loggers:  make(map[Source]*Logger),
	}
	s.unwatch = cfg.Watch(s.onConfigChange)
	return s
}

// onConfigChange commits buffers written under the previous log directory
// so nothing is stranded when it changes.
func (s *Service) onConfigChange(cfg config.LogConfig) {
	s.files.Flush()
	s.logger.Debug("log config applied", "level", cfg.Level, "log_dir", cfg.LogDir)
}

// Logger returns the logger for source, creating it on first use.
func (s *Service) Logger(source Source) *Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loggers[source]
	if !ok {
		l = newLogger(s, source)
		s.loggers[source] = l
	}
	return l
}

// Enabled reports whether entries at level pass the configured threshold.
func (s *Service) Enabled(level Level) bool {
	return level >= Level(s.src.Current().Level)
}

// Write routes a complete entry to the console and the log file. Entries
// below the configured level are dropped before formatting.
func (s *Service) Write(e Entry) {
	cfg := s.src.Current()
	if e.Level < Level(cfg.Level) {
		return
	}
	if cfg.EnableConsole && s.console != nil {
		s.console.Write(e)
	}
	if cfg.EnableFile {
		s.files.WriteLog(e, Format(e, DefaultFormatOptions()))
	}
}

// Config returns the config manager.
func (s *Service) Config() *config.Manager {
	return s.config
}

// Files returns the file manager.
func (s *Service) Files() *FileManager {
	return s.files
}

// Registry returns the registry holding the file manager's metrics.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// ListFiles returns the available log files.
func (s *Service) ListFiles() []string {
	return s.files.GetLogFiles()
}

// ReadFile returns the content of a log file named as ListFiles reports it.
func (s *Service) ReadFile(name string) (string, error) {
	return s.files.ReadLogFile(name)
}

// Stats summarizes the available log files.
func (s *Service) Stats() LogStats {
	return s.files.GetLogStats()
}

// Flush commits every buffered line.
func (s *Service) Flush() {
	s.files.Flush()
}

// Close flushes and stops the file manager and detaches from the config
// manager. The config manager itself is left open.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.unwatch()
		s.files.Destroy()
	})
	return nil
}

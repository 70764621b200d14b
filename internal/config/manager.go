package config

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/logkeeper/internal/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Watcher receives the new configuration after every successful change.
type Watcher func(LogConfig)

type watcherEntry struct {
	id int
	fn Watcher
}

// Manager owns the logging config file. It loads the file at construction,
// validates and persists every change, and notifies watchers synchronously.
//
// Disk failures never escape: they are logged and the manager keeps
// operating on its in-memory copy.
type Manager struct {
	path   string
	fs     afero.Fs
	logger *slog.Logger
	now    func() time.Time

	// updateMu serializes merge -> validate -> persist -> notify.
	// Watchers run while it is held and must not call UpdateConfig.
	updateMu sync.Mutex

	mu          sync.RWMutex // protects the fields below
	cfg         LogConfig
	watchers    []watcherEntry
	nextID      int
	lastWritten []byte

	fileWatch *fileWatcher
}

// Option configures a Manager.
type Option func(*Manager)

// WithFs sets the filesystem the config file lives on (default: the OS filesystem).
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithLogger sets the logger used for warnings and I/O failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source used for backup names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager loads the config at path, merging it over defaults. When the
// file does not exist the sanitized defaults are written to it.
func NewManager(path string, defaults LogConfig, opts ...Option) *Manager {
	m := &Manager{
		path:   path,
		fs:     afero.NewOsFs(),
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	m.load(defaults)
	return m
}

// Path returns the config file path.
func (m *Manager) Path() string {
	return m.path
}

// Get returns a snapshot of the current configuration.
func (m *Manager) Get() LogConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Current implements the logging package's config source.
func (m *Manager) Current() LogConfig {
	return m.Get()
}

// load reads the file or persists defaults. The caller must hold updateMu.
func (m *Manager) load(defaults LogConfig) {
	base, warnings := Sanitize(defaults)
	m.reportWarnings("defaults", warnings)

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logFailure(errors.NewIOError("read config", m.path, err))
		}
		m.setConfig(base)
		m.persist(base)
		return
	}

	cfg, err := m.decode(data, base)
	if err != nil {
		m.logFailure(err)
		m.setConfig(base)
		return
	}

	cfg, warnings = Sanitize(cfg)
	m.reportWarnings("load", warnings)
	m.setConfig(cfg)
	m.mu.Lock()
	m.lastWritten = data
	m.mu.Unlock()
	if len(warnings) > 0 {
		m.persist(cfg)
	}
}

// decode merges a JSON document over base field by field. Unknown keys are
// ignored; a known key with the wrong type keeps the base value.
func (m *Manager) decode(data []byte, base LogConfig) (LogConfig, error) {
	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return base, errors.Wrapf(errors.ErrInvalidConfig, "parse %s: %v", m.path, err)
	}

	cfg := base
	mergeInt(v, "level", &cfg.Level, m.logger)
	mergeBool(v, "enableFile", &cfg.EnableFile, m.logger)
	mergeBool(v, "enableConsole", &cfg.EnableConsole, m.logger)
	mergeString(v, "logDir", &cfg.LogDir, m.logger)
	mergeFloat(v, "maxFileSize", &cfg.MaxFileSize, m.logger)
	mergeInt(v, "maxFiles", &cfg.MaxFiles, m.logger)
	mergeInt(v, "retentionDays", &cfg.RetentionDays, m.logger)
	mergeBool(v, "enableCompression", &cfg.EnableCompression, m.logger)
	mergeInt(v, "bufferSize", &cfg.BufferSize, m.logger)
	mergeInt(v, "flushInterval", &cfg.FlushInterval, m.logger)
	return cfg, nil
}

func mergeInt(v *viper.Viper, key string, dst *int, logger *slog.Logger) {
	if !v.IsSet(key) {
		return
	}
	switch n := v.Get(key).(type) {
	case float64:
		if n != float64(int(n)) {
			logger.Warn("config field is not an integer, keeping default", "field", key, "value", n)
			return
		}
		*dst = int(n)
	case int:
		*dst = n
	case int64:
		*dst = int(n)
	default:
		logger.Warn("config field has wrong type, keeping default", "field", key, "value", n)
	}
}

func mergeFloat(v *viper.Viper, key string, dst *float64, logger *slog.Logger) {
	if !v.IsSet(key) {
		return
	}
	switch n := v.Get(key).(type) {
	case float64:
		*dst = n
	case int:
		*dst = float64(n)
	case int64:
		*dst = float64(n)
	default:
		logger.Warn("config field has wrong type, keeping default", "field", key, "value", n)
	}
}

func mergeBool(v *viper.Viper, key string, dst *bool, logger *slog.Logger) {
	if !v.IsSet(key) {
		return
	}
	b, ok := v.Get(key).(bool)
	if !ok {
		logger.Warn("config field has wrong type, keeping default", "field", key, "value", v.Get(key))
		return
	}
	*dst = b
}

func mergeString(v *viper.Viper, key string, dst *string, logger *slog.Logger) {
	if !v.IsSet(key) {
		return
	}
	s, ok := v.Get(key).(string)
	if !ok {
		logger.Warn("config field has wrong type, keeping default", "field", key, "value", v.Get(key))
		return
	}
	*dst = s
}

// UpdateConfig applies patch, validates, persists and notifies watchers.
// It returns the configuration now in effect.
func (m *Manager) UpdateConfig(patch Patch) LogConfig {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	cfg, warnings := Sanitize(patch.Apply(m.Get()))
	m.reportWarnings("update", warnings)
	m.setConfig(cfg)
	m.persist(cfg)
	m.notify(cfg)
	return cfg
}

// ResetToDefault replaces the whole configuration with defaults.
func (m *Manager) ResetToDefault(defaults LogConfig) LogConfig {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	cfg, warnings := Sanitize(defaults)
	m.reportWarnings("reset", warnings)
	m.setConfig(cfg)
	m.persist(cfg)
	m.notify(cfg)
	return cfg
}

// Watch registers fn to be called after every change. The returned function
// unregisters it.
func (m *Manager) Watch(fn Watcher) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers = append(m.watchers, watcherEntry{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, w := range m.watchers {
				if w.id == id {
					m.watchers = append(m.watchers[:i:i], m.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// notify calls every watcher with cfg. A panicking watcher is logged and
// does not prevent delivery to the others.
func (m *Manager) notify(cfg LogConfig) {
	m.mu.RLock()
	watchers := make([]watcherEntry, len(m.watchers))
	copy(watchers, m.watchers)
	m.mu.RUnlock()

	for i, w := range watchers {
		m.callWatcher(i, w.fn, cfg)
	}
}

func (m *Manager) callWatcher(index int, fn Watcher, cfg LogConfig) {
	defer func() {
		if r := recover(); r != nil {
			m.logFailure(errors.NewWatcherError(index, r))
		}
	}()
	fn(cfg)
}

func (m *Manager) setConfig(cfg LogConfig) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// persist writes cfg as indented JSON through a temp file and rename.
// Failures are logged; the in-memory config stays authoritative.
func (m *Manager) persist(cfg LogConfig) {
	data, err := marshalConfig(cfg)
	if err != nil {
		m.logFailure(errors.NewIOError("encode config", m.path, err))
		return
	}
	if err := writeFileAtomic(m.fs, m.path, data); err != nil {
		m.logFailure(err)
		return
	}
	m.mu.Lock()
	m.lastWritten = data
	m.mu.Unlock()
}

func marshalConfig(cfg LogConfig) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewIOError("mkdir", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0644); err != nil {
		return errors.NewIOError("write", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return errors.NewIOError("rename", path, err)
	}
	return nil
}

func (m *Manager) reportWarnings(stage string, warnings []ValidationError) {
	for _, w := range warnings {
		m.logger.Warn("invalid log config value reset to default",
			"stage", stage,
			"field", w.Field,
			"value", w.Value,
			"default", w.Default,
			"reason", w.Message)
	}
}

func (m *Manager) logFailure(err error) {
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug, errors.SeverityInfo:
		m.logger.Info("config manager", "error", err)
	case errors.SeverityWarning:
		m.logger.Warn("config manager", "error", err)
	default:
		m.logger.Error("config manager", "error", err)
	}
}

// Close stops the file watch, if running.
func (m *Manager) Close() error {
	m.mu.Lock()
	fw := m.fileWatch
	m.fileWatch = nil
	m.mu.Unlock()

	if fw != nil {
		return fw.stop()
	}
	return nil
}

// ExportConfig returns the current configuration as indented JSON.
func (m *Manager) ExportConfig() string {
	data, err := marshalConfig(m.Get())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// WriteTo writes the exported configuration to w.
func (m *Manager) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, m.ExportConfig())
	return int64(n), err
}

// ListBackups returns the backup files next to the config file, oldest first.
func (m *Manager) ListBackups() []string {
	matches, err := afero.Glob(m.fs, m.backupPattern())
	if err != nil {
		m.logFailure(errors.NewIOError("list backups", m.path, err))
		return nil
	}
	sort.Strings(matches)
	return matches
}

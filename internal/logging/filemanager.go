package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Iron-Ham/logkeeper/internal/config"
	"github.com/Iron-Ham/logkeeper/internal/errors"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"
)

// ConfigSource supplies the configuration in effect. The FileManager asks
// for it on every decision so updates apply without a restart.
type ConfigSource interface {
	Current() config.LogConfig
}

// Layouts for the session id and the date folder.
const (
	sessionIDLayout = "2006-01-02-15-04-05"
	dateDirLayout   = "2006-01-02"
)

// maxCompressWorkers bounds concurrent gzip jobs.
const maxCompressWorkers = 2

// FileManager buffers formatted lines per log file and commits them to disk
// on a timer, when a buffer fills, or immediately for ERROR and FATAL
// entries. It rotates files that reach the size limit, compresses rotated
// files and deletes files past the retention window.
//
// File system failures are logged and never returned from the write path.
// FileManager is safe for concurrent use.
type FileManager struct {
	src     ConfigSource
	fs      afero.Fs
	logger  *slog.Logger
	now     func() time.Time
	metrics *Metrics

	sessionID string
	startedAt time.Time

	mu          sync.Mutex // protects lanes, closed and compressing
	lanes       map[string]*lane
	closed      bool
	compressing map[string]struct{} // rotated files with a gzip job in flight

	pruneMu sync.Mutex // serializes pruneRotated

	// compressMu orders pool.Go calls before pool.Wait in Destroy.
	compressMu     sync.RWMutex
	compressClosed bool
	compressors    *pool.Pool

	cleanupInterval time.Duration
	stopCh          chan struct{}
	done            chan struct{}
	destroyOnce     sync.Once
}

// FileManagerOption configures a FileManager.
type FileManagerOption func(*FileManager)

// WithFs sets the filesystem log files are written to (default: the OS filesystem).
func WithFs(fs afero.Fs) FileManagerOption {
	return func(f *FileManager) { f.fs = fs }
}

// WithLogger sets the logger for the manager's own diagnostics.
func WithLogger(logger *slog.Logger) FileManagerOption {
	return func(f *FileManager) { f.logger = logger }
}

// WithClock overrides the time source for session ids, rotation names and
// retention checks.
func WithClock(now func() time.Time) FileManagerOption {
	return func(f *FileManager) { f.now = now }
}

// WithMetrics sets the collectors the manager reports to.
func WithMetrics(m *Metrics) FileManagerOption {
	return func(f *FileManager) { f.metrics = m }
}

// WithCleanupInterval runs CleanupOldLogs at startup and then every d.
// Zero disables periodic cleanup.
func WithCleanupInterval(d time.Duration) FileManagerOption {
	return func(f *FileManager) { f.cleanupInterval = d }
}

// NewFileManager creates a FileManager and starts its flush timer. Call
// Destroy to stop it and commit buffered lines.
func NewFileManager(src ConfigSource, opts ...FileManagerOption) *FileManager {
	f := &FileManager{
		src:         src,
		fs:          afero.NewOsFs(),
		logger:      slog.New(slog.NewTextHandler(os.Stderr, nil)),
		now:         time.Now,
		lanes:       make(map[string]*lane),
		compressing: make(map[string]struct{}),
		compressors: pool.New().WithMaxGoroutines(maxCompressWorkers),
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.metrics == nil {
		f.metrics = NewMetrics(nil)
	}

	f.startedAt = f.now()
	f.sessionID = f.startedAt.Format(sessionIDLayout)

	go f.run()
	return f
}

// SessionID identifies this process run. It names the live log file.
func (f *FileManager) SessionID() string {
	return f.sessionID
}

// LogFilename returns the live log file for cfg:
// <logDir>/<YYYY-MM-DD>/<sessionId>.log, dated by the session start.
func (f *FileManager) LogFilename(cfg config.LogConfig) string {
	return filepath.Join(cfg.LogDir, f.startedAt.Format(dateDirLayout), f.sessionID+".log")
}

// CurrentLogFile returns the live log file under the current config.
func (f *FileManager) CurrentLogFile() string {
	return f.LogFilename(f.src.Current())
}

// WriteLog buffers one formatted line for the live log file. It rotates the
// file first when it has reached the size limit, and flushes when the entry
// is ERROR or FATAL or the buffer is full. It does nothing when file logging
// is disabled.
func (f *FileManager) WriteLog(entry Entry, formatted string) {
	cfg := f.src.Current()
	if !cfg.EnableFile {
		return
	}

	ln := f.lane(f.LogFilename(cfg))
	ln.mu.Lock()
	defer ln.mu.Unlock()

	// Checked under the lane lock so a write racing Destroy is flushed by
	// one side or the other.
	closed := f.isClosed()

	f.loadSize(ln)
	if limit := cfg.MaxFileSizeBytes(); limit > 0 && ln.size+ln.pending >= limit {
		_ = f.rotateLocked(ln, cfg)
	}

	ln.buffer(formatted + "\n")
	f.metrics.EntriesBuffered.WithLabelValues(entry.Level.String()).Inc()

	if closed || entry.Level >= LevelError || len(ln.lines) >= cfg.BufferSize {
		_ = f.flushLocked(ln)
	}
}

// Flush commits every buffered line to disk.
func (f *FileManager) Flush() {
	for _, ln := range f.snapshotLanes() {
		ln.mu.Lock()
		_ = f.flushLocked(ln)
		ln.mu.Unlock()
	}
}

// flushPath commits the buffer of path, if it has one.
func (f *FileManager) flushPath(path string) {
	f.mu.Lock()
	ln, ok := f.lanes[filepath.Clean(path)]
	f.mu.Unlock()
	if !ok {
		return
	}
	ln.mu.Lock()
	_ = f.flushLocked(ln)
	ln.mu.Unlock()
}

func (f *FileManager) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FileManager) flushInterval() time.Duration {
	ms := f.src.Current().FlushInterval
	switch {
	case ms <= 0:
		ms = config.SafeFlushInterval
	case ms > config.FlushIntervalLimit:
		ms = config.FlushIntervalLimit
	}
	return time.Duration(ms) * time.Millisecond
}

// run drives the flush timer and periodic cleanup until Destroy.
func (f *FileManager) run() {
	defer close(f.done)

	flushTimer := time.NewTimer(f.flushInterval())
	defer flushTimer.Stop()

	var cleanupC <-chan time.Time
	if f.cleanupInterval > 0 {
		ticker := time.NewTicker(f.cleanupInterval)
		defer ticker.Stop()
		cleanupC = ticker.C
		f.CleanupOldLogs()
	}

	for {
		select {
		case <-f.stopCh:
			return
		case <-flushTimer.C:
			f.Flush()
			// Re-read the interval so config updates take effect.
			flushTimer.Reset(f.flushInterval())
		case <-cleanupC:
			f.CleanupOldLogs()
		}
	}
}

// Destroy stops the timers, flushes every buffer and waits for pending
// compressions. Writes after Destroy go straight to disk. It is safe to
// call more than once.
func (f *FileManager) Destroy() {
	f.destroyOnce.Do(func() {
		close(f.stopCh)
		<-f.done

		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		f.Flush()

		f.compressMu.Lock()
		f.compressClosed = true
		f.compressMu.Unlock()
		f.compressors.Wait()

		f.logger.Debug("file manager stopped", "session", f.sessionID)
	})
}

func (f *FileManager) logFailure(err error) {
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug, errors.SeverityInfo:
		f.logger.Info("log file manager", "error", err)
	case errors.SeverityWarning:
		f.logger.Warn("log file manager", "error", err)
	default:
		f.logger.Error("log file manager", "error", err)
	}
}

// NopLogger returns a diagnostics logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

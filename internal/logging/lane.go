package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Iron-Ham/logkeeper/internal/errors"
	"github.com/spf13/afero"
)

// maxRetainedLines bounds a buffer that keeps failing to flush. The oldest
// lines are dropped beyond it.
const maxRetainedLines = 10000

// lane is the write state of one log file path. Its mutex serializes
// buffering, flushing and rotation of that path.
type lane struct {
	mu      sync.Mutex
	path    string
	lines   []string
	pending int64 // bytes held in lines
	size    int64 // bytes on disk
	sized   bool
}

// lane returns the lane for path, creating it on first use.
func (f *FileManager) lane(path string) *lane {
	f.mu.Lock()
	defer f.mu.Unlock()
	ln, ok := f.lanes[path]
	if !ok {
		ln = &lane{path: path}
		f.lanes[path] = ln
	}
	return ln
}

// snapshotLanes returns the current lanes without holding f.mu afterwards.
func (f *FileManager) snapshotLanes() []*lane {
	f.mu.Lock()
	defer f.mu.Unlock()
	lanes := make([]*lane, 0, len(f.lanes))
	for _, ln := range f.lanes {
		lanes = append(lanes, ln)
	}
	return lanes
}

// isLivePath reports whether path belongs to a lane of this manager.
func (f *FileManager) isLivePath(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.lanes[filepath.Clean(path)]
	return ok
}

// loadSize reads the on-disk size the first time the lane is used.
// The caller must hold ln.mu.
func (f *FileManager) loadSize(ln *lane) {
	if ln.sized {
		return
	}
	if info, err := f.fs.Stat(ln.path); err == nil {
		ln.size = info.Size()
	}
	ln.sized = true
}

// buffer appends one line. The caller must hold ln.mu.
func (ln *lane) buffer(line string) {
	ln.lines = append(ln.lines, line)
	ln.pending += int64(len(line))
}

// flushLocked appends the buffered lines to the file. On failure the lines
// stay buffered for the next attempt. The caller must hold ln.mu.
func (f *FileManager) flushLocked(ln *lane) error {
	if len(ln.lines) == 0 {
		return nil
	}

	data := strings.Join(ln.lines, "")
	if err := appendFile(f.fs, ln.path, data); err != nil {
		f.metrics.IOErrors.WithLabelValues("flush").Inc()
		f.logFailure(err)
		f.trimRetained(ln)
		return err
	}

	ln.size += int64(len(data))
	ln.lines = ln.lines[:0]
	ln.pending = 0
	f.metrics.Flushes.Inc()
	f.metrics.FlushedBytes.Add(float64(len(data)))
	return nil
}

// trimRetained drops the oldest lines of a buffer that has grown past
// maxRetainedLines. The caller must hold ln.mu.
func (f *FileManager) trimRetained(ln *lane) {
	excess := len(ln.lines) - maxRetainedLines
	if excess <= 0 {
		return
	}
	for _, line := range ln.lines[:excess] {
		ln.pending -= int64(len(line))
	}
	ln.lines = append(ln.lines[:0], ln.lines[excess:]...)
	f.metrics.DroppedLines.Add(float64(excess))
	f.logger.Warn("dropped buffered log lines after repeated flush failures",
		"path", ln.path,
		"dropped", excess)
}

// appendFile appends data to path, creating parent directories as needed.
func appendFile(fs afero.Fs, path, data string) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.NewIOError("mkdir", dir, err)
	}
	file, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.NewIOError("open", path, err)
	}
	if _, err := file.WriteString(data); err != nil {
		_ = file.Close()
		return errors.NewIOError("append", path, err)
	}
	if err := file.Close(); err != nil {
		return errors.NewIOError("close", path, err)
	}
	return nil
}

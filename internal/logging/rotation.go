package logging

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Iron-Ham/logkeeper/internal/config"
	"github.com/Iron-Ham/logkeeper/internal/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// rotatedMarker separates the base name from the rotation timestamp.
const rotatedMarker = "-rotated-"

// rotatedTimeLayout is ISO-8601 with the separators replaced by dashes.
const rotatedTimeLayout = "2006-01-02T15-04-05-000Z"

// RotateLog flushes path's buffer and renames the file to
// <base>-rotated-<timestamp>.log in the same folder. The rotated file is
// compressed in the background when compression is enabled. It returns
// ErrClosed after Destroy.
func (f *FileManager) RotateLog(path string) error {
	if f.isClosed() {
		return errors.ErrClosed
	}
	ln := f.lane(filepath.Clean(path))
	ln.mu.Lock()
	defer ln.mu.Unlock()
	f.loadSize(ln)
	return f.rotateLocked(ln, f.src.Current())
}

// rotateLocked performs a rotation. The caller must hold ln.mu.
func (f *FileManager) rotateLocked(ln *lane, cfg config.LogConfig) error {
	// A failed flush keeps its lines; they go to the new file.
	_ = f.flushLocked(ln)

	if _, err := f.fs.Stat(ln.path); err != nil {
		ln.size = 0
		if os.IsNotExist(err) {
			return nil
		}
		ioErr := errors.NewIOError("stat", ln.path, err)
		f.logFailure(ioErr)
		return ioErr
	}

	rotated := f.rotatedName(ln.path)
	if err := f.fs.Rename(ln.path, rotated); err != nil {
		ioErr := errors.NewIOError("rotate", ln.path, err)
		f.metrics.IOErrors.WithLabelValues("rotate").Inc()
		f.logFailure(ioErr)
		return ioErr
	}
	ln.size = 0
	f.metrics.Rotations.Inc()
	f.logger.Info("log file rotated", "path", ln.path, "rotated", rotated)

	if cfg.EnableCompression {
		f.scheduleCompression(rotated)
	}
	f.pruneRotated(ln.path, cfg.MaxFiles)
	return nil
}

// rotatedName picks an unused rotation name for path.
func (f *FileManager) rotatedName(path string) string {
	base := strings.TrimSuffix(path, ".log")
	stamp := f.now().UTC().Format(rotatedTimeLayout)
	name := base + rotatedMarker + stamp + ".log"
	for i := 1; f.exists(name) || f.exists(name+".gz"); i++ {
		name = base + rotatedMarker + stamp + "-" + strconv.Itoa(i) + ".log"
	}
	return name
}

func (f *FileManager) exists(path string) bool {
	_, err := f.fs.Stat(path)
	return err == nil
}

// scheduleCompression compresses path on the worker pool, or inline once
// the manager is being destroyed. Pruning and cleanup leave path alone
// until the job is done.
func (f *FileManager) scheduleCompression(path string) {
	f.beginCompression(path)
	f.compressMu.RLock()
	defer f.compressMu.RUnlock()
	if f.compressClosed {
		f.compressAndPrune(path)
		return
	}
	f.compressors.Go(func() {
		f.compressAndPrune(path)
	})
}

// compressAndPrune compresses a rotated file, then prunes its siblings,
// which may have been skipped while the job was in flight.
func (f *FileManager) compressAndPrune(path string) {
	_ = f.CompressLog(path)
	f.endCompression(path)
	if live, ok := liveNameOf(path); ok {
		f.pruneRotated(live, f.src.Current().MaxFiles)
	}
}

func (f *FileManager) beginCompression(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compressing[filepath.Clean(path)] = struct{}{}
}

func (f *FileManager) endCompression(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.compressing, filepath.Clean(path))
}

// isCompressing reports whether path, or the .log it is the .gz of, has a
// gzip job in flight.
func (f *FileManager) isCompressing(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.compressing[strings.TrimSuffix(filepath.Clean(path), ".gz")]
	return ok
}

// liveNameOf returns the live file a rotated file was renamed from.
func liveNameOf(rotated string) (string, bool) {
	base := filepath.Base(rotated)
	i := strings.Index(base, rotatedMarker)
	if i <= 0 {
		return "", false
	}
	return filepath.Join(filepath.Dir(rotated), base[:i]+".log"), true
}

// CompressLog gzips path to path.gz and removes path once the compressed
// file is complete. A partial .gz file is removed on failure.
func (f *FileManager) CompressLog(path string) error {
	err := f.compress(path)
	if err != nil {
		f.metrics.IOErrors.WithLabelValues("compress").Inc()
		f.logFailure(err)
		return err
	}
	f.metrics.Compressions.Inc()
	f.logger.Debug("log file compressed", "path", path)
	return nil
}

func (f *FileManager) compress(path string) error {
	src, err := f.fs.Open(path)
	if err != nil {
		return errors.NewIOError("open", path, err)
	}
	defer func() { _ = src.Close() }()

	gzPath := path + ".gz"
	dst, err := f.fs.Create(gzPath)
	if err != nil {
		return errors.NewIOError("create", gzPath, err)
	}

	gzWriter := gzip.NewWriter(dst)
	if _, err := io.Copy(gzWriter, src); err != nil {
		_ = dst.Close()
		_ = f.fs.Remove(gzPath)
		return errors.NewIOError("compress", path, err)
	}
	if err := gzWriter.Close(); err != nil {
		_ = dst.Close()
		_ = f.fs.Remove(gzPath)
		return errors.NewIOError("compress", path, err)
	}
	if err := dst.Close(); err != nil {
		_ = f.fs.Remove(gzPath)
		return errors.NewIOError("close", gzPath, err)
	}

	_ = src.Close()
	if err := f.fs.Remove(path); err != nil {
		return errors.NewIOError("remove", path, err).WithSeverity(errors.SeverityWarning)
	}
	return nil
}

// pruneRotated keeps the newest maxFiles rotations of livePath and deletes
// the rest. A rotation and its .gz count once. Rotations still being
// compressed are kept; the job prunes again when it finishes.
func (f *FileManager) pruneRotated(livePath string, maxFiles int) {
	if maxFiles <= 0 {
		return
	}
	f.pruneMu.Lock()
	defer f.pruneMu.Unlock()
	dir := filepath.Dir(livePath)
	prefix := strings.TrimSuffix(filepath.Base(livePath), ".log") + rotatedMarker

	infos, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		f.logFailure(errors.NewIOError("list", dir, err))
		return
	}

	groups := make(map[string][]string)
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		key := strings.TrimSuffix(name, ".gz")
		if !strings.HasSuffix(key, ".log") {
			continue
		}
		groups[key] = append(groups[key], name)
	}
	if len(groups) <= maxFiles {
		return
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	// Timestamps in the names sort chronologically.
	sort.Strings(keys)
	for _, key := range keys[:len(keys)-maxFiles] {
		if f.isCompressing(filepath.Join(dir, key)) {
			continue
		}
		for _, name := range groups[key] {
			p := filepath.Join(dir, name)
			if err := f.fs.Remove(p); err != nil {
				if !os.IsNotExist(err) {
					f.logFailure(errors.NewIOError("remove", p, err))
				}
				continue
			}
			f.metrics.FilesDeleted.Inc()
			f.logger.Debug("pruned rotated log file", "path", p)
		}
	}
}

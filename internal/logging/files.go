package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Iron-Ham/logkeeper/internal/errors"
	"github.com/gobwas/glob"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
)

// archiveDir is the folder under logDir that retention cleanup also sweeps.
const archiveDir = "archives"

// LogStats summarizes the files GetLogFiles reports.
type LogStats struct {
	TotalFiles int       `json:"totalFiles"`
	TotalSize  int64     `json:"totalSize"`
	OldestFile time.Time `json:"oldestFile"`
	NewestFile time.Time `json:"newestFile"`
}

func isDateDir(name string) bool {
	_, err := time.Parse(dateDirLayout, name)
	return err == nil
}

func isLogFile(name string) bool {
	return strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".log.gz")
}

// CleanupOldLogs deletes log files whose modification time is older than
// the retention window, from the date folders and from archives/. The live
// file is never deleted and emptied date folders are removed. It returns
// the number of files deleted.
func (f *FileManager) CleanupOldLogs() int {
	cfg := f.src.Current()
	cutoff := f.now().AddDate(0, 0, -cfg.RetentionDays)
	live := f.LogFilename(cfg)

	deleted := f.deleteOlder(filepath.Join(cfg.LogDir, archiveDir), cutoff, live)

	infos, err := afero.ReadDir(f.fs, cfg.LogDir)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logFailure(errors.NewIOError("list", cfg.LogDir, err))
		}
		return deleted
	}
	for _, info := range infos {
		if !info.IsDir() || !isDateDir(info.Name()) {
			continue
		}
		dir := filepath.Join(cfg.LogDir, info.Name())
		deleted += f.deleteOlder(dir, cutoff, live)
		if dir != filepath.Dir(live) {
			f.removeIfEmpty(dir)
		}
	}

	if deleted > 0 {
		f.metrics.FilesDeleted.Add(float64(deleted))
		f.logger.Info("cleaned up old log files", "deleted", deleted, "retention_days", cfg.RetentionDays)
	}
	return deleted
}

// deleteOlder removes the regular files in dir modified before cutoff,
// except live files and rotations still being compressed.
func (f *FileManager) deleteOlder(dir string, cutoff time.Time, live string) int {
	infos, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logFailure(errors.NewIOError("list", dir, err))
		}
		return 0
	}

	deleted := 0
	for _, info := range infos {
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		p := filepath.Join(dir, info.Name())
		if p == live || f.isLivePath(p) || f.isCompressing(p) {
			continue
		}
		if err := f.fs.Remove(p); err != nil {
			if !os.IsNotExist(err) {
				f.metrics.IOErrors.WithLabelValues("cleanup").Inc()
				f.logFailure(errors.NewIOError("remove", p, err))
			}
			continue
		}
		deleted++
	}
	return deleted
}

func (f *FileManager) removeIfEmpty(dir string) {
	empty, err := afero.IsEmpty(f.fs, dir)
	if err != nil || !empty {
		return
	}
	if err := f.fs.Remove(dir); err != nil && !os.IsNotExist(err) {
		f.logFailure(errors.NewIOError("remove", dir, err))
	}
}

// GetLogFiles returns the log files under the date folders as
// "<date>/<name>" paths, sorted. Rotated and compressed files are included.
func (f *FileManager) GetLogFiles() []string {
	root := f.src.Current().LogDir
	infos, err := afero.ReadDir(f.fs, root)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logFailure(errors.NewIOError("list", root, err))
		}
		return []string{}
	}

	files := []string{}
	for _, info := range infos {
		if !info.IsDir() || !isDateDir(info.Name()) {
			continue
		}
		entries, err := afero.ReadDir(f.fs, filepath.Join(root, info.Name()))
		if err != nil {
			f.logFailure(errors.NewIOError("list", filepath.Join(root, info.Name()), err))
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !isLogFile(e.Name()) {
				continue
			}
			files = append(files, info.Name()+"/"+e.Name())
		}
	}
	sort.Strings(files)
	return files
}

// MatchLogFiles returns the GetLogFiles entries matching a glob pattern
// such as "2026-10-*/*.gz". The '/' separator is not matched by '*'.
func (f *FileManager) MatchLogFiles(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	matched := []string{}
	for _, name := range f.GetLogFiles() {
		if g.Match(name) {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

// resolve maps a name relative to logDir onto a path, rejecting names that
// escape it.
func (f *FileManager) resolve(name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", errors.Wrapf(errors.ErrPathOutsideLogDir, "%q", name)
	}
	return filepath.Join(f.src.Current().LogDir, rel), nil
}

// ReadLogFile returns the content of a file named as GetLogFiles reports
// it. Compressed files are decompressed. Buffered lines of the live file
// are flushed first.
func (f *FileManager) ReadLogFile(name string) (string, error) {
	path, err := f.resolve(name)
	if err != nil {
		return "", err
	}
	f.flushPath(path)

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFoundError("log file", name, errors.ErrLogFileNotFound)
		}
		return "", errors.NewIOError("read", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return string(data), nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", errors.NewIOError("gunzip", path, err)
	}
	defer func() { _ = zr.Close() }()
	plain, err := io.ReadAll(zr)
	if err != nil {
		return "", errors.NewIOError("gunzip", path, err)
	}
	return string(plain), nil
}

// LogDir returns the log directory in effect.
func (f *FileManager) LogDir() string {
	return f.src.Current().LogDir
}

// Stat describes a file named as GetLogFiles reports it.
func (f *FileManager) Stat(name string) (os.FileInfo, error) {
	path, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	info, err := f.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("log file", name, errors.ErrLogFileNotFound)
		}
		return nil, errors.NewIOError("stat", path, err)
	}
	return info, nil
}

// GetLogStats totals the files GetLogFiles reports. Oldest and newest are
// by modification time.
func (f *FileManager) GetLogStats() LogStats {
	var stats LogStats
	for _, name := range f.GetLogFiles() {
		info, err := f.Stat(name)
		if err != nil {
			continue
		}
		stats.TotalFiles++
		stats.TotalSize += info.Size()
		mod := info.ModTime()
		if stats.OldestFile.IsZero() || mod.Before(stats.OldestFile) {
			stats.OldestFile = mod
		}
		if mod.After(stats.NewestFile) {
			stats.NewestFile = mod
		}
	}
	return stats
}

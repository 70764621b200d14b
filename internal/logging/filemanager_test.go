package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/logkeeper/internal/config"
	"github.com/Iron-Ham/logkeeper/internal/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
)

var testStart = time.Date(2026, 10, 18, 9, 30, 0, 0, time.Local)

type staticConfig struct {
	mu  sync.Mutex
	cfg config.LogConfig
}

func (s *staticConfig) Current() config.LogConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *staticConfig) set(fn func(*config.LogConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, mutate func(*config.LogConfig), opts ...FileManagerOption) (*FileManager, *staticConfig, *Metrics) {
	t.Helper()
	cfg := config.Default()
	cfg.LogDir = t.TempDir()
	cfg.FlushInterval = 60000
	cfg.EnableCompression = false
	if mutate != nil {
		mutate(&cfg)
	}
	src := &staticConfig{cfg: cfg}
	metrics := NewMetrics(prometheus.NewRegistry())

	clock := &testClock{now: testStart}
	opts = append([]FileManagerOption{
		WithLogger(NopLogger()),
		WithClock(clock.Now),
		WithMetrics(metrics),
	}, opts...)
	f := NewFileManager(src, opts...)
	t.Cleanup(f.Destroy)
	return f, src, metrics
}

func entryAt(level Level) Entry {
	e := sampleEntry()
	e.Level = level
	return e
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("failed to read %s: %v", path, err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if !mtime.IsZero() {
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFileManager_LogFilename(t *testing.T) {
	f, src, _ := newTestManager(t, nil)

	if f.SessionID() != "2026-10-18-09-30-00" {
		t.Errorf("SessionID() = %q, want 2026-10-18-09-30-00", f.SessionID())
	}
	want := filepath.Join(src.Current().LogDir, "2026-10-18", "2026-10-18-09-30-00.log")
	if got := f.CurrentLogFile(); got != want {
		t.Errorf("CurrentLogFile() = %q, want %q", got, want)
	}
}

func TestWriteLog_DisabledIsNoop(t *testing.T) {
	f, _, metrics := newTestManager(t, func(c *config.LogConfig) { c.EnableFile = false })

	f.WriteLog(entryAt(LevelFatal), "fatal line")
	f.Flush()

	if _, err := os.Stat(f.CurrentLogFile()); !os.IsNotExist(err) {
		t.Errorf("log file should not exist, stat err = %v", err)
	}
	if got := testutil.ToFloat64(metrics.Flushes); got != 0 {
		t.Errorf("flushes = %v, want 0", got)
	}
}

func TestWriteLog_ErrorFlushesImmediately(t *testing.T) {
	f, _, metrics := newTestManager(t, func(c *config.LogConfig) { c.BufferSize = 3 })

	for i := 0; i < 3; i++ {
		f.WriteLog(entryAt(LevelError), fmt.Sprintf("error %d", i))
		if lines := readLines(t, f.CurrentLogFile()); len(lines) != i+1 {
			t.Fatalf("after error %d file has %d lines, want %d", i, len(lines), i+1)
		}
	}
	if got := testutil.ToFloat64(metrics.Flushes); got != 3 {
		t.Errorf("flushes = %v, want 3", got)
	}
}

func TestWriteLog_FatalFlushesImmediately(t *testing.T) {
	f, _, _ := newTestManager(t, nil)

	f.WriteLog(entryAt(LevelInfo), "info")
	f.WriteLog(entryAt(LevelFatal), "fatal")

	lines := readLines(t, f.CurrentLogFile())
	if len(lines) != 2 || lines[0] != "info" || lines[1] != "fatal" {
		t.Errorf("lines = %q, want [info fatal]", lines)
	}
}

func TestWriteLog_BufferFullFlushes(t *testing.T) {
	f, _, metrics := newTestManager(t, func(c *config.LogConfig) { c.BufferSize = 3 })

	f.WriteLog(entryAt(LevelInfo), "one")
	f.WriteLog(entryAt(LevelInfo), "two")
	if lines := readLines(t, f.CurrentLogFile()); len(lines) != 0 {
		t.Fatalf("lines flushed before buffer filled: %q", lines)
	}
	f.WriteLog(entryAt(LevelInfo), "three")
	if lines := readLines(t, f.CurrentLogFile()); len(lines) != 3 {
		t.Errorf("lines = %q, want 3 after buffer filled", lines)
	}
	if got := testutil.ToFloat64(metrics.Flushes); got != 1 {
		t.Errorf("flushes = %v, want 1", got)
	}
}

func TestWriteLog_TimedFlush(t *testing.T) {
	f, _, metrics := newTestManager(t, func(c *config.LogConfig) {
		c.BufferSize = 5
		c.FlushInterval = 200
	})

	for i := 0; i < 4; i++ {
		f.WriteLog(entryAt(LevelInfo), fmt.Sprintf("info %d", i))
	}
	if lines := readLines(t, f.CurrentLogFile()); len(lines) != 0 {
		t.Fatalf("lines flushed before the timer: %q", lines)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(readLines(t, f.CurrentLogFile())) < 4 {
		if time.Now().After(deadline) {
			t.Fatal("timed flush did not happen")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if got := testutil.ToFloat64(metrics.Flushes); got != 1 {
		t.Errorf("flushes = %v, want exactly 1", got)
	}
	if got := testutil.ToFloat64(metrics.EntriesBuffered.WithLabelValues("INFO")); got != 4 {
		t.Errorf("entries buffered = %v, want 4", got)
	}
}

func TestWriteLog_RotatesExactlyOnce(t *testing.T) {
	// 0.001 MB is 1048 bytes; each line below is 100 bytes with its newline.
	f, _, metrics := newTestManager(t, func(c *config.LogConfig) { c.MaxFileSize = 0.001 })

	var want []string
	for i := 0; i < 15; i++ {
		line := fmt.Sprintf("%03d", i) + strings.Repeat("x", 96)
		want = append(want, line)
		f.WriteLog(entryAt(LevelInfo), line)
	}
	f.Flush()

	if got := testutil.ToFloat64(metrics.Rotations); got != 1 {
		t.Fatalf("rotations = %v, want 1", got)
	}

	dir := filepath.Dir(f.CurrentLogFile())
	rotated, err := filepath.Glob(filepath.Join(dir, "*-rotated-*.log"))
	if err != nil || len(rotated) != 1 {
		t.Fatalf("rotated files = %v (%v), want exactly one", rotated, err)
	}
	if !strings.HasPrefix(filepath.Base(rotated[0]), f.SessionID()+"-rotated-") {
		t.Errorf("rotated name = %q", filepath.Base(rotated[0]))
	}

	got := append(readLines(t, rotated[0]), readLines(t, f.CurrentLogFile())...)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("lines across rotation = %d, want %d in order without loss or duplication", len(got), len(want))
	}
	if n := len(readLines(t, rotated[0])); n != 11 {
		t.Errorf("rotated file has %d lines, want 11", n)
	}
}

func TestRotateLog_MissingFileIsNoop(t *testing.T) {
	f, _, metrics := newTestManager(t, nil)

	if err := f.RotateLog(f.CurrentLogFile()); err != nil {
		t.Errorf("RotateLog() on missing file = %v, want nil", err)
	}
	if got := testutil.ToFloat64(metrics.Rotations); got != 0 {
		t.Errorf("rotations = %v, want 0", got)
	}
}

func TestRotateLog_CompressesWhenEnabled(t *testing.T) {
	f, _, metrics := newTestManager(t, func(c *config.LogConfig) { c.EnableCompression = true })

	f.WriteLog(entryAt(LevelInfo), "before rotation")
	if err := f.RotateLog(f.CurrentLogFile()); err != nil {
		t.Fatalf("RotateLog() error = %v", err)
	}
	f.Destroy()

	dir := filepath.Dir(f.CurrentLogFile())
	if plain, _ := filepath.Glob(filepath.Join(dir, "*-rotated-*.log")); len(plain) != 0 {
		t.Errorf("uncompressed rotated files remain: %v", plain)
	}
	gz, _ := filepath.Glob(filepath.Join(dir, "*-rotated-*.log.gz"))
	if len(gz) != 1 {
		t.Fatalf("compressed rotated files = %v, want 1", gz)
	}
	if got := testutil.ToFloat64(metrics.Compressions); got != 1 {
		t.Errorf("compressions = %v, want 1", got)
	}

	content, err := f.ReadLogFile(filepath.Base(dir) + "/" + filepath.Base(gz[0]))
	if err != nil {
		t.Fatalf("ReadLogFile() error = %v", err)
	}
	if content != "before rotation\n" {
		t.Errorf("content = %q", content)
	}
}

func TestRotateLog_PrunesBeyondMaxFiles(t *testing.T) {
	clock := &testClock{now: testStart}
	f, _, _ := newTestManager(t, func(c *config.LogConfig) { c.MaxFiles = 2 }, WithClock(clock.Now))

	for i := 0; i < 4; i++ {
		f.WriteLog(entryAt(LevelError), fmt.Sprintf("generation %d", i))
		clock.Advance(time.Second)
		if err := f.RotateLog(f.CurrentLogFile()); err != nil {
			t.Fatalf("RotateLog() #%d error = %v", i, err)
		}
	}

	dir := filepath.Dir(f.CurrentLogFile())
	rotated, _ := filepath.Glob(filepath.Join(dir, "*-rotated-*.log"))
	sort.Strings(rotated)
	if len(rotated) != 2 {
		t.Fatalf("rotated files = %v, want the newest 2", rotated)
	}
	if lines := readLines(t, rotated[0]); len(lines) != 1 || lines[0] != "generation 2" {
		t.Errorf("oldest kept rotation = %q, want generation 2", lines)
	}
	if lines := readLines(t, rotated[1]); len(lines) != 1 || lines[0] != "generation 3" {
		t.Errorf("newest rotation = %q, want generation 3", lines)
	}
}

func TestCompressLog_RoundTrip(t *testing.T) {
	f, src, _ := newTestManager(t, nil)

	original := "first line\nsecond, line with \"quotes\"\n" + strings.Repeat("payload ", 500) + "\n"
	path := filepath.Join(src.Current().LogDir, "2026-10-17", "old-rotated-2026-10-17T10-00-00-000Z.log")
	writeFile(t, path, original, time.Time{})

	if err := f.CompressLog(path); err != nil {
		t.Fatalf("CompressLog() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("uncompressed file still exists (stat err = %v)", err)
	}

	got, err := f.ReadLogFile("2026-10-17/old-rotated-2026-10-17T10-00-00-000Z.log.gz")
	if err != nil {
		t.Fatalf("ReadLogFile() error = %v", err)
	}
	if got != original {
		t.Errorf("decompressed content differs: got %d bytes, want %d", len(got), len(original))
	}

	// The archive must be readable by any gzip implementation.
	raw, err := os.ReadFile(path + ".gz")
	if err != nil {
		t.Fatal(err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	plain, _ := io.ReadAll(zr)
	if string(plain) != original {
		t.Error("gzip stream content differs")
	}
}

func TestCompressLog_MissingFile(t *testing.T) {
	f, src, metrics := newTestManager(t, nil)

	path := filepath.Join(src.Current().LogDir, "2026-10-18", "gone.log")
	err := f.CompressLog(path)
	if err == nil {
		t.Fatal("CompressLog() on missing file should fail")
	}
	var ioErr *errors.IOError
	if !errors.As(err, &ioErr) || ioErr.Path != path {
		t.Errorf("error = %v, want IOError for %s", err, path)
	}
	if _, statErr := os.Stat(path + ".gz"); !os.IsNotExist(statErr) {
		t.Error("no .gz file should be left behind")
	}
	if got := testutil.ToFloat64(metrics.IOErrors.WithLabelValues("compress")); got != 1 {
		t.Errorf("compress io errors = %v, want 1", got)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	now := time.Now()
	clock := &testClock{now: now}
	f, src, _ := newTestManager(t, func(c *config.LogConfig) { c.RetentionDays = 7 }, WithClock(clock.Now))
	root := src.Current().LogDir

	old := now.Add(-10 * 24 * time.Hour)
	recent := now.Add(-24 * time.Hour)

	writeFile(t, filepath.Join(root, "2026-01-01", "a.log"), "a", old)
	writeFile(t, filepath.Join(root, "2026-01-01", "a-rotated-x.log.gz"), "a", old)
	writeFile(t, filepath.Join(root, "2026-01-02", "b.log"), "b", old)
	writeFile(t, filepath.Join(root, "2026-01-02", "c.log"), "c", recent)
	writeFile(t, filepath.Join(root, archiveDir, "export.csv"), "x", old)
	writeFile(t, filepath.Join(root, archiveDir, "keep.csv"), "x", recent)
	writeFile(t, filepath.Join(root, "notes", "ignored.log"), "n", old)
	writeFile(t, f.CurrentLogFile(), "live\n", old)

	if got := f.CleanupOldLogs(); got != 4 {
		t.Errorf("CleanupOldLogs() = %d, want 4", got)
	}

	for _, gone := range []string{"2026-01-01", filepath.Join("2026-01-02", "b.log"), filepath.Join(archiveDir, "export.csv")} {
		if _, err := os.Stat(filepath.Join(root, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	for _, kept := range []string{filepath.Join("2026-01-02", "c.log"), filepath.Join(archiveDir, "keep.csv"), filepath.Join("notes", "ignored.log")} {
		if _, err := os.Stat(filepath.Join(root, kept)); err != nil {
			t.Errorf("%s should have been kept: %v", kept, err)
		}
	}
	if _, err := os.Stat(f.CurrentLogFile()); err != nil {
		t.Errorf("live file must never be deleted: %v", err)
	}

	if got := f.CleanupOldLogs(); got != 0 {
		t.Errorf("second CleanupOldLogs() = %d, want 0", got)
	}
}

func TestCleanupOldLogs_MissingDir(t *testing.T) {
	f, src, _ := newTestManager(t, nil)
	src.set(func(c *config.LogConfig) { c.LogDir = filepath.Join(c.LogDir, "does-not-exist") })

	if got := f.CleanupOldLogs(); got != 0 {
		t.Errorf("CleanupOldLogs() = %d, want 0", got)
	}
}

func TestGetLogFiles(t *testing.T) {
	f, src, _ := newTestManager(t, nil)
	root := src.Current().LogDir

	writeFile(t, filepath.Join(root, "2026-10-18", "b.log.gz"), "b", time.Time{})
	writeFile(t, filepath.Join(root, "2026-10-17", "a.log"), "a", time.Time{})
	writeFile(t, filepath.Join(root, "2026-10-18", "notes.txt"), "n", time.Time{})
	writeFile(t, filepath.Join(root, "misc", "x.log"), "x", time.Time{})
	writeFile(t, filepath.Join(root, archiveDir, "old.log"), "o", time.Time{})

	got := f.GetLogFiles()
	want := []string{"2026-10-17/a.log", "2026-10-18/b.log.gz"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("GetLogFiles() = %v, want %v", got, want)
	}

	matched, err := f.MatchLogFiles("*/*.gz")
	if err != nil || len(matched) != 1 || matched[0] != "2026-10-18/b.log.gz" {
		t.Errorf("MatchLogFiles(*/*.gz) = %v, %v", matched, err)
	}
	if _, err := f.MatchLogFiles("[unterminated"); err == nil {
		t.Error("MatchLogFiles() with bad pattern should fail")
	}

	src.set(func(c *config.LogConfig) { c.LogDir = filepath.Join(root, "nope") })
	if files := f.GetLogFiles(); files == nil || len(files) != 0 {
		t.Errorf("GetLogFiles() on missing dir = %#v, want empty slice", files)
	}
}

func TestReadLogFile(t *testing.T) {
	f, src, _ := newTestManager(t, nil)
	root := src.Current().LogDir
	writeFile(t, filepath.Join(root, "2026-10-17", "a.log"), "hello\n", time.Time{})

	t.Run("plain file", func(t *testing.T) {
		got, err := f.ReadLogFile("2026-10-17/a.log")
		if err != nil || got != "hello\n" {
			t.Errorf("ReadLogFile() = %q, %v", got, err)
		}
	})

	t.Run("buffered live lines are flushed first", func(t *testing.T) {
		f.WriteLog(entryAt(LevelInfo), "pending")
		name := filepath.Base(filepath.Dir(f.CurrentLogFile())) + "/" + filepath.Base(f.CurrentLogFile())
		got, err := f.ReadLogFile(name)
		if err != nil || got != "pending\n" {
			t.Errorf("ReadLogFile(live) = %q, %v", got, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := f.ReadLogFile("2026-10-17/missing.log")
		if !errors.Is(err, errors.ErrLogFileNotFound) {
			t.Errorf("error = %v, want ErrLogFileNotFound", err)
		}
	})

	t.Run("paths outside the log dir", func(t *testing.T) {
		outside := filepath.Join(filepath.Dir(root), "secret.log")
		writeFile(t, outside, "secret", time.Time{})
		for _, name := range []string{"../secret.log", "2026-10-17/../../secret.log", outside, ""} {
			if _, err := f.ReadLogFile(name); !errors.Is(err, errors.ErrPathOutsideLogDir) {
				t.Errorf("ReadLogFile(%q) error = %v, want ErrPathOutsideLogDir", name, err)
			}
		}
	})
}

func TestGetLogStats(t *testing.T) {
	f, src, _ := newTestManager(t, nil)
	root := src.Current().LogDir

	oldest := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	newest := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	writeFile(t, filepath.Join(root, "2026-10-01", "a.log"), "12345", oldest)
	writeFile(t, filepath.Join(root, "2026-10-17", "b.log"), "123", newest)

	stats := f.GetLogStats()
	if stats.TotalFiles != 2 || stats.TotalSize != 8 {
		t.Errorf("stats = %+v, want 2 files of 8 bytes", stats)
	}
	if !stats.OldestFile.Equal(oldest) || !stats.NewestFile.Equal(newest) {
		t.Errorf("oldest/newest = %v/%v, want %v/%v", stats.OldestFile, stats.NewestFile, oldest, newest)
	}

	src.set(func(c *config.LogConfig) { c.LogDir = filepath.Join(root, "empty") })
	if stats := f.GetLogStats(); stats.TotalFiles != 0 || !stats.OldestFile.IsZero() {
		t.Errorf("stats on empty dir = %+v", stats)
	}
}

func TestFlush_FailureRetainsBuffer(t *testing.T) {
	f, _, metrics := newTestManager(t, nil)

	// A regular file where the date folder should be makes mkdir fail.
	dateDir := filepath.Dir(f.CurrentLogFile())
	writeFile(t, dateDir, "blocker", time.Time{})

	f.WriteLog(entryAt(LevelError), "survives")
	if got := testutil.ToFloat64(metrics.IOErrors.WithLabelValues("flush")); got != 1 {
		t.Errorf("flush io errors = %v, want 1", got)
	}

	if err := os.Remove(dateDir); err != nil {
		t.Fatal(err)
	}
	f.Flush()

	if lines := readLines(t, f.CurrentLogFile()); len(lines) != 1 || lines[0] != "survives" {
		t.Errorf("lines = %q, want the retained line", lines)
	}
}

func TestDestroy(t *testing.T) {
	f, _, _ := newTestManager(t, nil)

	f.WriteLog(entryAt(LevelInfo), "buffered")
	f.Destroy()
	f.Destroy()

	if lines := readLines(t, f.CurrentLogFile()); len(lines) != 1 || lines[0] != "buffered" {
		t.Errorf("lines after Destroy = %q", lines)
	}

	f.WriteLog(entryAt(LevelDebug), "late")
	if lines := readLines(t, f.CurrentLogFile()); len(lines) != 2 {
		t.Errorf("write after Destroy should reach disk, lines = %q", lines)
	}
}

func TestWriteLog_ConcurrentWriters(t *testing.T) {
	f, _, _ := newTestManager(t, func(c *config.LogConfig) { c.BufferSize = 7 })

	const writers, perWriter = 8, 100
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				f.WriteLog(entryAt(LevelInfo), fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	f.Destroy()

	lines := readLines(t, f.CurrentLogFile())
	if len(lines) != writers*perWriter {
		t.Fatalf("got %d lines, want %d", len(lines), writers*perWriter)
	}
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if seen[l] {
			t.Fatalf("duplicate line %q", l)
		}
		seen[l] = true
	}
}

func TestFileManager_MemMapFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, _, _ := newTestManager(t, func(c *config.LogConfig) { c.LogDir = "/logs" }, WithFs(fs))

	f.WriteLog(entryAt(LevelError), "in memory")

	if exists, _ := afero.Exists(fs, f.CurrentLogFile()); !exists {
		t.Fatal("log file should exist on the in-memory filesystem")
	}
	files := f.GetLogFiles()
	if len(files) != 1 {
		t.Fatalf("GetLogFiles() = %v", files)
	}
	got, err := f.ReadLogFile(files[0])
	if err != nil || got != "in memory\n" {
		t.Errorf("ReadLogFile() = %q, %v", got, err)
	}
}

func TestCleanupOldLogs_HugeRetentionKeepsFreshFiles(t *testing.T) {
	now := time.Now()
	clock := &testClock{now: now}
	f, src, _ := newTestManager(t, func(c *config.LogConfig) { c.RetentionDays = 1000000 }, WithClock(clock.Now))

	fresh := filepath.Join(src.Current().LogDir, "2026-10-17", "fresh.log")
	writeFile(t, fresh, "fresh\n", now.Add(-time.Hour))

	if got := f.CleanupOldLogs(); got != 0 {
		t.Errorf("CleanupOldLogs() = %d, want 0", got)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("file inside the retention window was deleted: %v", err)
	}
}

func TestFileManager_FlushInterval(t *testing.T) {
	tests := []struct {
		name string
		ms   int
		want time.Duration
	}{
		{"configured", 1500, 1500 * time.Millisecond},
		{"zero uses safe default", 0, config.SafeFlushInterval * time.Millisecond},
		{"negative uses safe default", -5, config.SafeFlushInterval * time.Millisecond},
		{"huge is capped", 10000000000000, config.FlushIntervalLimit * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, src, _ := newTestManager(t, nil)
			src.set(func(c *config.LogConfig) { c.FlushInterval = tt.ms })
			if got := f.flushInterval(); got != tt.want {
				t.Errorf("flushInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteLog_HugeMaxFileSizeIsCapped(t *testing.T) {
	f, src, _ := newTestManager(t, func(c *config.LogConfig) { c.MaxFileSize = 1e20 })
	if limit := src.Current().MaxFileSizeBytes(); limit <= 0 {
		t.Fatalf("MaxFileSizeBytes() = %d, want a positive cap", limit)
	}
	f.WriteLog(entryAt(LevelError), "kept")
	if lines := readLines(t, f.CurrentLogFile()); len(lines) != 1 {
		t.Errorf("lines = %q, want 1", lines)
	}
}

func TestWriteLog_RacingDestroyReachesDisk(t *testing.T) {
	for round := 0; round < 20; round++ {
		f, _, _ := newTestManager(t, func(c *config.LogConfig) { c.BufferSize = 1000 })

		const writers, perWriter = 4, 50
		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				<-start
				for i := 0; i < perWriter; i++ {
					f.WriteLog(entryAt(LevelInfo), fmt.Sprintf("r%d-w%d-%d", round, w, i))
				}
			}(w)
		}
		close(start)
		f.Destroy()
		wg.Wait()

		if lines := readLines(t, f.CurrentLogFile()); len(lines) != writers*perWriter {
			t.Fatalf("round %d: got %d lines on disk, want %d", round, len(lines), writers*perWriter)
		}
	}
}

func TestRotateLog_AfterDestroy(t *testing.T) {
	f, _, _ := newTestManager(t, nil)
	f.WriteLog(entryAt(LevelError), "line")
	f.Destroy()

	if err := f.RotateLog(f.CurrentLogFile()); !errors.Is(err, errors.ErrClosed) {
		t.Errorf("RotateLog() after Destroy = %v, want ErrClosed", err)
	}
	if lines := readLines(t, f.CurrentLogFile()); len(lines) != 1 {
		t.Errorf("live file should be untouched, lines = %q", lines)
	}
}

func TestPruneRotated_WaitsForCompression(t *testing.T) {
	f, _, _ := newTestManager(t, func(c *config.LogConfig) { c.MaxFiles = 2 })
	live := f.CurrentLogFile()
	base := strings.TrimSuffix(live, ".log")

	names := []string{
		base + "-rotated-2026-10-18T09-00-00-000Z.log",
		base + "-rotated-2026-10-18T09-01-00-000Z.log",
		base + "-rotated-2026-10-18T09-02-00-000Z.log",
	}
	for _, n := range names {
		writeFile(t, n, "rotated\n", time.Time{})
	}

	f.beginCompression(names[0])
	f.pruneRotated(live, 2)
	if _, err := os.Stat(names[0]); err != nil {
		t.Fatalf("rotation being compressed was pruned: %v", err)
	}

	f.compressAndPrune(names[0])
	for _, gone := range []string{names[0], names[0] + ".gz"} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s should be pruned once compression finished", filepath.Base(gone))
		}
	}
	for _, kept := range names[1:] {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("%s should be kept: %v", filepath.Base(kept), err)
		}
	}
}

func TestCleanupOldLogs_SkipsCompressionInFlight(t *testing.T) {
	now := time.Now()
	clock := &testClock{now: now}
	f, src, _ := newTestManager(t, func(c *config.LogConfig) { c.RetentionDays = 7 }, WithClock(clock.Now))

	old := filepath.Join(src.Current().LogDir, "2026-01-01", "s-rotated-2026-01-01T00-00-00-000Z.log")
	writeFile(t, old, "old\n", now.Add(-30*24*time.Hour))

	f.beginCompression(old)
	if got := f.CleanupOldLogs(); got != 0 {
		t.Errorf("CleanupOldLogs() during compression = %d, want 0", got)
	}
	f.endCompression(old)
	if got := f.CleanupOldLogs(); got != 1 {
		t.Errorf("CleanupOldLogs() after compression = %d, want 1", got)
	}
}

func TestLiveNameOf(t *testing.T) {
	dir := filepath.Join("logs", "2026-10-18")
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{filepath.Join(dir, "2026-10-18-09-30-00-rotated-2026-10-18T10-00-00-000Z.log"), filepath.Join(dir, "2026-10-18-09-30-00.log"), true},
		{filepath.Join(dir, "s-rotated-2026-10-18T10-00-00-000Z-1.log"), filepath.Join(dir, "s.log"), true},
		{filepath.Join(dir, "plain.log"), "", false},
	}
	for _, tt := range tests {
		got, ok := liveNameOf(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("liveNameOf(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

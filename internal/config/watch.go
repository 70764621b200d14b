package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Iron-Ham/logkeeper/internal/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// fileWatchDebounce collapses the burst of events editors emit for one save.
const fileWatchDebounce = 100 * time.Millisecond

type fileWatcher struct {
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WatchFile starts reloading the config file when it is changed on disk by
// another process. Reloaded values are validated, and watchers are notified
// when the effective config changes. Writes made by this manager are ignored.
//
// Only meaningful on the OS filesystem.
func (m *Manager) WatchFile() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fileWatch != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: editors and our own atomic writes replace the file.
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	fw := &fileWatcher{
		watcher: watcher,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	m.fileWatch = fw
	go m.watchLoop(fw)
	return nil
}

func (fw *fileWatcher) stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.stopCh)
		err = fw.watcher.Close()
		<-fw.done
	})
	return err
}

// watchLoop processes filesystem events for the config file
func (m *Manager) watchLoop(fw *fileWatcher) {
	defer close(fw.done)

	target := filepath.Base(m.path)
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	for {
		select {
		case <-fw.stopCh:
			debounceTimer.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounceTimer.Reset(fileWatchDebounce)

		case <-debounceTimer.C:
			m.reloadFromDisk()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config file watch error", "error", err)
		}
	}
}

// reloadFromDisk re-reads the config file after an external edit.
func (m *Manager) reloadFromDisk() {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		m.logFailure(errors.NewIOError("read config", m.path, err))
		return
	}

	m.mu.RLock()
	own := bytes.Equal(data, m.lastWritten)
	m.mu.RUnlock()
	if own {
		return
	}

	current := m.Get()
	cfg, err := m.decode(data, current)
	if err != nil {
		m.logFailure(err)
		return
	}
	cfg, warnings := Sanitize(cfg)
	m.reportWarnings("reload", warnings)

	m.mu.Lock()
	m.lastWritten = data
	m.mu.Unlock()
	if len(warnings) > 0 {
		m.persist(cfg)
	}
	if cfg == current {
		return
	}

	m.setConfig(cfg)
	m.logger.Info("config reloaded from disk", "path", m.path)
	m.notify(cfg)
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/logkeeper/internal/errors"
	"github.com/spf13/afero"
	"github.com/valyala/fastjson"
)

// backupTimeFormat is filesystem-portable (no colons).
const backupTimeFormat = "2006-01-02T15-04-05.000"

// ImportConfig parses an untrusted JSON document and applies the known
// fields through UpdateConfig. Unknown keys and fields with the wrong JSON
// type are ignored. It returns an error wrapping ErrInvalidConfig when the
// document is not a JSON object.
func (m *Manager) ImportConfig(data []byte) error {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidConfig, "import: %v", err)
	}
	obj, err := v.Object()
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidConfig, "import: %v", err)
	}

	var patch Patch
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if !applyImportField(&patch, string(key), val) {
			m.logger.Warn("ignoring imported config field", "field", string(key), "type", val.Type().String())
		}
	})

	m.UpdateConfig(patch)
	return nil
}

// applyImportField sets the patch field named key. It reports false for
// unknown keys and type mismatches.
func applyImportField(p *Patch, key string, val *fastjson.Value) bool {
	switch key {
	case "level":
		return importInt(val, &p.Level)
	case "maxFiles":
		return importInt(val, &p.MaxFiles)
	case "retentionDays":
		return importInt(val, &p.RetentionDays)
	case "bufferSize":
		return importInt(val, &p.BufferSize)
	case "flushInterval":
		return importInt(val, &p.FlushInterval)
	case "maxFileSize":
		f, err := val.Float64()
		if err != nil {
			return false
		}
		p.MaxFileSize = &f
		return true
	case "enableFile":
		return importBool(val, &p.EnableFile)
	case "enableConsole":
		return importBool(val, &p.EnableConsole)
	case "enableCompression":
		return importBool(val, &p.EnableCompression)
	case "logDir":
		b, err := val.StringBytes()
		if err != nil {
			return false
		}
		s := string(b)
		p.LogDir = &s
		return true
	default:
		return false
	}
}

func importInt(val *fastjson.Value, dst **int) bool {
	f, err := val.Float64()
	if err != nil || f != float64(int(f)) {
		return false
	}
	n := int(f)
	*dst = &n
	return true
}

func importBool(val *fastjson.Value, dst **bool) bool {
	b, err := val.Bool()
	if err != nil {
		return false
	}
	*dst = &b
	return true
}

// backupPattern matches the files produced by CreateBackup.
func (m *Manager) backupPattern() string {
	ext := filepath.Ext(m.path)
	stem := strings.TrimSuffix(m.path, ext)
	return stem + ".backup-*" + ext
}

// CreateBackup copies the config file to a timestamped sibling and returns
// its path. When the config file is missing the in-memory config is saved.
func (m *Manager) CreateBackup() (string, error) {
	ext := filepath.Ext(m.path)
	stem := strings.TrimSuffix(m.path, ext)
	backupPath := stem + ".backup-" + m.now().Format(backupTimeFormat) + ext

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			ioErr := errors.NewIOError("read config", m.path, err)
			m.logFailure(ioErr)
			return "", ioErr
		}
		data, err = marshalConfig(m.Get())
		if err != nil {
			return "", errors.NewIOError("encode config", m.path, err)
		}
	}

	if err := writeFileAtomic(m.fs, backupPath, data); err != nil {
		m.logFailure(err)
		return "", err
	}
	m.logger.Info("config backup created", "path", backupPath)
	return backupPath, nil
}

// RestoreFromBackup copies backupPath over the config file, reloads it and
// notifies watchers. A missing backup yields an error matching ErrBackupNotFound.
func (m *Manager) RestoreFromBackup(backupPath string) error {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	data, err := afero.ReadFile(m.fs, backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("backup", backupPath, errors.ErrBackupNotFound)
		}
		ioErr := errors.NewIOError("read backup", backupPath, err)
		m.logFailure(ioErr)
		return ioErr
	}

	cfg, err := m.decode(data, m.Get())
	if err != nil {
		m.logFailure(err)
		return err
	}
	cfg, warnings := Sanitize(cfg)
	m.reportWarnings("restore", warnings)

	if err := writeFileAtomic(m.fs, m.path, data); err != nil {
		m.logFailure(err)
	} else {
		m.mu.Lock()
		m.lastWritten = data
		m.mu.Unlock()
	}

	m.setConfig(cfg)
	if len(warnings) > 0 {
		m.persist(cfg)
	}
	m.notify(cfg)
	m.logger.Info("config restored from backup", "path", backupPath)
	return nil
}

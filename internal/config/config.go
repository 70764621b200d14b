package config

import (
	"os"
	"path/filepath"
)

// LogConfig is the persisted logging policy. The JSON field names are the
// on-disk format of the config file and must not change.
type LogConfig struct {
	// Level is the minimum level written (0=TRACE ... 5=FATAL, default: 2)
	Level int `json:"level" validate:"gte=0,lte=5"`
	// EnableFile controls whether entries are written to log files (default: true)
	EnableFile bool `json:"enableFile"`
	// EnableConsole controls whether entries are echoed to the console (default: true)
	EnableConsole bool `json:"enableConsole"`
	// LogDir is the root directory holding the date folders
	LogDir string `json:"logDir" validate:"required"`
	// MaxFileSize is the size in megabytes at which the live file is rotated (default: 10)
	MaxFileSize float64 `json:"maxFileSize" validate:"gt=0,lte=1048576"`
	// MaxFiles is the number of rotated files kept per date folder (default: 10)
	MaxFiles int `json:"maxFiles" validate:"gt=0"`
	// RetentionDays is the age after which old files are deleted (default: 30)
	RetentionDays int `json:"retentionDays" validate:"gt=0,lte=36500"`
	// EnableCompression gzips rotated files (default: true)
	EnableCompression bool `json:"enableCompression"`
	// BufferSize is the number of buffered lines that forces a flush (default: 50)
	BufferSize int `json:"bufferSize" validate:"gt=0"`
	// FlushInterval is the periodic flush cadence in milliseconds (default: 2000)
	FlushInterval int `json:"flushInterval" validate:"gt=0,lte=86400000"`
}

// Safe defaults substituted for invalid values during validation.
const (
	SafeLevel         = 2
	SafeMaxFileSize   = 10
	SafeMaxFiles      = 10
	SafeRetentionDays = 30
	SafeBufferSize    = 50
	SafeFlushInterval = 2000
)

// Upper bounds. Larger values overflow the duration and byte arithmetic.
const (
	MaxFileSizeLimit   = 1048576  // 1 TiB, in megabytes
	RetentionDaysLimit = 36500    // 100 years
	FlushIntervalLimit = 86400000 // one day, in milliseconds
)

// MaxFileSizeBytes returns MaxFileSize converted to bytes.
// Values above MaxFileSizeLimit are capped.
func (c LogConfig) MaxFileSizeBytes() int64 {
	mb := c.MaxFileSize
	if mb > MaxFileSizeLimit {
		mb = MaxFileSizeLimit
	}
	return int64(mb * 1024 * 1024)
}

// Default returns the configuration used when no config file exists yet.
func Default() LogConfig {
	return LogConfig{
		Level:             SafeLevel,
		EnableFile:        true,
		EnableConsole:     true,
		LogDir:            DefaultLogDir(),
		MaxFileSize:       SafeMaxFileSize,
		MaxFiles:          SafeMaxFiles,
		RetentionDays:     SafeRetentionDays,
		EnableCompression: true,
		BufferSize:        SafeBufferSize,
		FlushInterval:     SafeFlushInterval,
	}
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Level             *int     `json:"level,omitempty"`
	EnableFile        *bool    `json:"enableFile,omitempty"`
	EnableConsole     *bool    `json:"enableConsole,omitempty"`
	LogDir            *string  `json:"logDir,omitempty"`
	MaxFileSize       *float64 `json:"maxFileSize,omitempty"`
	MaxFiles          *int     `json:"maxFiles,omitempty"`
	RetentionDays     *int     `json:"retentionDays,omitempty"`
	EnableCompression *bool    `json:"enableCompression,omitempty"`
	BufferSize        *int     `json:"bufferSize,omitempty"`
	FlushInterval     *int     `json:"flushInterval,omitempty"`
}

// Ptr returns a pointer to v, for building a Patch inline.
func Ptr[T any](v T) *T {
	return &v
}

// Apply returns c with every non-nil field of p applied.
func (p Patch) Apply(c LogConfig) LogConfig {
	if p.Level != nil {
		c.Level = *p.Level
	}
	if p.EnableFile != nil {
		c.EnableFile = *p.EnableFile
	}
	if p.EnableConsole != nil {
		c.EnableConsole = *p.EnableConsole
	}
	if p.LogDir != nil {
		c.LogDir = *p.LogDir
	}
	if p.MaxFileSize != nil {
		c.MaxFileSize = *p.MaxFileSize
	}
	if p.MaxFiles != nil {
		c.MaxFiles = *p.MaxFiles
	}
	if p.RetentionDays != nil {
		c.RetentionDays = *p.RetentionDays
	}
	if p.EnableCompression != nil {
		c.EnableCompression = *p.EnableCompression
	}
	if p.BufferSize != nil {
		c.BufferSize = *p.BufferSize
	}
	if p.FlushInterval != nil {
		c.FlushInterval = *p.FlushInterval
	}
	return c
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "logkeeper")
	}
	// Fall back to ~/.config/logkeeper
	home, err := os.UserHomeDir()
	if err != nil {
		return ".logkeeper"
	}
	return filepath.Join(home, ".config", "logkeeper")
}

// ConfigFile returns the path to the logging config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "log-config.json")
}

// DefaultLogDir returns the default root directory for log files
func DefaultLogDir() string {
	return filepath.Join(ConfigDir(), "logs")
}

// FallbackLogDir returns <cwd>/logs, used when a configured logDir is empty.
func FallbackLogDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "logs"
	}
	return filepath.Join(cwd, "logs")
}

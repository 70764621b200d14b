package logging

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Level is the severity of an entry. Levels are ordered: an entry passes
// the gate when its level is at least the configured one.
type Level int

// Log levels, lowest first. The numeric values are the ones stored in the
// config file.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String returns the upper-case level name.
func (l Level) String() string {
	if l.Valid() {
		return levelNames[l]
	}
	return "LEVEL(" + strconv.Itoa(int(l)) + ")"
}

// Initial returns the one-letter level abbreviation used by the compact format.
func (l Level) Initial() string {
	return l.String()[:1]
}

// Valid reports whether l is one of the six defined levels.
func (l Level) Valid() bool {
	return l >= LevelTrace && l <= LevelFatal
}

// ValidLevels returns the level names, lowest first.
func ValidLevels() []string {
	return append([]string(nil), levelNames[:]...)
}

// ParseLevel accepts a level name (any case) or its numeric value.
func ParseLevel(s string) (Level, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range levelNames {
		if s == name {
			return Level(i), true
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Level(n).Valid() {
		return Level(n), true
	}
	return LevelInfo, false
}

// MarshalJSON encodes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts either a level name or a number.
func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		lvl, ok := ParseLevel(name)
		if !ok {
			return fmt.Errorf("unknown log level %q", name)
		}
		*l = lvl
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("log level must be a name or number: %w", err)
	}
	if !Level(n).Valid() {
		return fmt.Errorf("log level %d out of range", n)
	}
	*l = Level(n)
	return nil
}

// Source identifies which process kind produced an entry.
type Source string

// Entry sources.
const (
	SourceMain     Source = "MAIN"
	SourceRenderer Source = "RENDERER"
	SourcePreload  Source = "PRELOAD"
)

// processType is the lower-case process label recorded for a source.
func (s Source) processType() string {
	return strings.ToLower(string(s))
}

// Category is the functional area an entry belongs to.
type Category string

// Categories.
const (
	CategorySystem      Category = "SYSTEM"
	CategoryApp         Category = "APP"
	CategoryConfig      Category = "CONFIG"
	CategoryFile        Category = "FILE"
	CategoryDatabase    Category = "DATABASE"
	CategoryIPC         Category = "IPC"
	CategoryUI          Category = "UI"
	CategoryWindow      Category = "WINDOW"
	CategoryTray        Category = "TRAY"
	CategoryTheme       Category = "THEME"
	CategoryShortcut    Category = "SHORTCUT"
	CategoryPerformance Category = "PERFORMANCE"
	CategorySecurity    Category = "SECURITY"
	CategoryUser        Category = "USER"
)

// Categories returns every defined category.
func Categories() []Category {
	return []Category{
		CategorySystem, CategoryApp, CategoryConfig, CategoryFile,
		CategoryDatabase, CategoryIPC, CategoryUI, CategoryWindow,
		CategoryTray, CategoryTheme, CategoryShortcut, CategoryPerformance,
		CategorySecurity, CategoryUser,
	}
}

// ProcessInfo describes the process that emitted an entry. A zero TID means
// no thread id was recorded.
type ProcessInfo struct {
	Type string `json:"type"`
	PID  int    `json:"pid"`
	TID  int    `json:"tid,omitempty"`
}

// Label renders the process as TYPE:PID or TYPE:PID:TID.
func (p ProcessInfo) Label() string {
	label := strings.ToUpper(p.Type) + ":" + strconv.Itoa(p.PID)
	if p.TID != 0 {
		label += ":" + strconv.Itoa(p.TID)
	}
	return label
}

// ModuleInfo locates the code that emitted an entry.
type ModuleInfo struct {
	Category Category `json:"category"`
	Filename string   `json:"filename"`
}

// ErrorInfo is the serializable form of an error attached to an entry.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// NewErrorInfo captures err's concrete type name and message. It returns nil
// for a nil error.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	name := reflect.TypeOf(err).String()
	name = strings.TrimPrefix(name, "*")
	return &ErrorInfo{Name: name, Message: err.Error()}
}

// Entry is one structured log record.
type Entry struct {
	Timestamp     string         `json:"timestamp"`
	Source        Source         `json:"source"`
	Level         Level          `json:"level"`
	Process       ProcessInfo    `json:"process"`
	Module        ModuleInfo     `json:"module"`
	Message       string         `json:"message"`
	TransactionID string         `json:"transactionId,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Error         *ErrorInfo     `json:"error,omitempty"`
	UserID        string         `json:"userId,omitempty"`
	SessionID     string         `json:"sessionId,omitempty"`
}

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t the way entries record it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Time parses the entry timestamp.
func (e Entry) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

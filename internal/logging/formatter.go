package logging

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"
)

// FormatOptions controls the canonical text rendering.
type FormatOptions struct {
	// Colors wraps the whole line in an ANSI color keyed by level.
	Colors bool
	// IncludeStack appends the error stack when the entry carries one.
	IncludeStack bool
	// CompactJSON renders Data on one line instead of indented.
	CompactJSON bool
}

// DefaultFormatOptions is what log files are written with.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{IncludeStack: true, CompactJSON: true}
}

const colorReset = "\033[0m"

var levelColors = map[Level]string{
	LevelTrace: "\033[2m",
	LevelDebug: "\033[36m",
	LevelInfo:  "\033[32m",
	LevelWarn:  "\033[33m",
	LevelError: "\033[31m",
	LevelFatal: "\033[97;41m",
}

// displayLayout is the local-time layout used in text output.
const displayLayout = "2006-01-02 15:04:05.000"

// Format renders e as
//
//	[timestamp] [SOURCE] [LEVEL] [TYPE:PID(:TID)] (category:filename) - message
//
// followed by the optional transaction id, data, error and stack.
func Format(e Entry, opts FormatOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] [%s] [%s] (%s:%s) - %s",
		FormatTimestamp(e.Timestamp),
		e.Source,
		e.Level,
		e.Process.Label(),
		e.Module.Category,
		e.Module.Filename,
		e.Message)

	if e.TransactionID != "" {
		b.WriteString(" [TXN:")
		b.WriteString(e.TransactionID)
		b.WriteString("]")
	}
	if len(e.Data) > 0 {
		b.WriteString("\n  Data: ")
		b.WriteString(marshalData(e.Data, opts.CompactJSON))
	}
	if e.Error != nil {
		b.WriteString("\n  Error: ")
		b.WriteString(e.Error.Message)
		if opts.IncludeStack && e.Error.Stack != "" {
			b.WriteString("\n  Stack: ")
			b.WriteString(e.Error.Stack)
		}
	}

	if opts.Colors {
		return colorize(e.Level, b.String())
	}
	return b.String()
}

func colorize(level Level, s string) string {
	color, ok := levelColors[level]
	if !ok {
		return s
	}
	return color + s + colorReset
}

// FormatTimestamp renders an ISO-8601 timestamp in local time as
// YYYY-MM-DD HH:mm:ss.SSS. Unparsable input is returned unchanged.
func FormatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format(displayLayout)
}

// marshalData renders the data map as JSON. Values JSON cannot encode are
// replaced by their fmt representation.
func marshalData(data map[string]any, compact bool) string {
	encode := func(v any) ([]byte, error) {
		if compact {
			return json.Marshal(v)
		}
		return json.MarshalIndent(v, "  ", "  ")
	}
	out, err := encode(data)
	if err == nil {
		return string(out)
	}
	out, err = encode(stringifyData(data))
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(out)
}

func stringifyData(data map[string]any) map[string]any {
	safe := make(map[string]any, len(data))
	for k, v := range data {
		if _, err := json.Marshal(v); err != nil {
			safe[k] = fmt.Sprintf("%v", v)
			continue
		}
		safe[k] = v
	}
	return safe
}

// FormatAsJSON renders e as a single-line JSON object with the level by name.
func FormatAsJSON(e Entry) string {
	out, err := json.Marshal(e)
	if err != nil {
		e.Data = stringifyData(e.Data)
		if out, err = json.Marshal(e); err != nil {
			return fmt.Sprintf(`{"message":%q}`, e.Message)
		}
	}
	return string(out)
}

var csvColumns = []string{
	"Timestamp", "Source", "Level", "Process", "Category",
	"Filename", "Message", "Data", "Error",
}

// CSVHeader returns the header row matching FormatAsCSV.
func CSVHeader() string {
	return csvRow(csvColumns)
}

// FormatAsCSV renders e as one CSV row with every field quoted.
func FormatAsCSV(e Entry) string {
	var data, errMsg string
	if len(e.Data) > 0 {
		data = marshalData(e.Data, true)
	}
	if e.Error != nil {
		errMsg = e.Error.Message
	}
	return csvRow([]string{
		e.Timestamp,
		string(e.Source),
		e.Level.String(),
		e.Process.Label(),
		string(e.Module.Category),
		e.Module.Filename,
		e.Message,
		data,
		errMsg,
	})
}

// csvRow quotes every field and doubles embedded quotes. encoding/csv
// only quotes fields that need it.
func csvRow(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

// FormatCompact renders e as "HH:mm:ss.SSS L file: message".
func FormatCompact(e Entry) string {
	clock := e.Timestamp
	if t, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
		clock = t.Local().Format("15:04:05.000")
	}
	return fmt.Sprintf("%s %s %s: %s", clock, e.Level.Initial(), filenameStem(e.Module.Filename), e.Message)
}

func filenameStem(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// FormatDetailed renders the full format with indented data, the stack and
// the user and session ids.
func FormatDetailed(e Entry) string {
	s := Format(e, FormatOptions{IncludeStack: true})
	if e.UserID != "" {
		s += "\n  User: " + e.UserID
	}
	if e.SessionID != "" {
		s += "\n  Session: " + e.SessionID
	}
	return s
}

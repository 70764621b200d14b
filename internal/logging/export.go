package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Iron-Ham/logkeeper/internal/errors"
)

// ExportFormat selects how Export renders a batch of entries.
type ExportFormat string

// Export formats.
const (
	ExportText     ExportFormat = "text"
	ExportJSON     ExportFormat = "json"
	ExportCSV      ExportFormat = "csv"
	ExportCompact  ExportFormat = "compact"
	ExportDetailed ExportFormat = "detailed"
)

// ExportFormats lists the supported format names.
func ExportFormats() []string {
	return []string{string(ExportText), string(ExportJSON), string(ExportCSV), string(ExportCompact), string(ExportDetailed)}
}

// ParseExportFormat normalizes a user-supplied format name.
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case ExportText, ExportJSON, ExportCSV, ExportCompact, ExportDetailed:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s (supported: %s)", s, strings.Join(ExportFormats(), ", "))
	}
}

// Export writes entries to w. JSON is an indented array; CSV is the header
// followed by one row per entry; the other formats write one record per line.
func Export(w io.Writer, entries []Entry, format ExportFormat) error {
	if format == ExportJSON {
		return exportJSON(w, entries)
	}

	bw := bufio.NewWriter(w)
	var render func(Entry) string
	switch format {
	case ExportText:
		render = func(e Entry) string { return Format(e, DefaultFormatOptions()) }
	case ExportCSV:
		render = FormatAsCSV
		if _, err := bw.WriteString(CSVHeader() + "\n"); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	case ExportCompact:
		render = FormatCompact
	case ExportDetailed:
		render = FormatDetailed
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}

	for _, e := range entries {
		if _, err := bw.WriteString(render(e) + "\n"); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}
	return bw.Flush()
}

func exportJSON(w io.Writer, entries []Entry) error {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		if _, err := json.Marshal(e.Data); err != nil {
			e.Data = stringifyData(e.Data)
		}
		out[i] = e
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// ExportFile writes entries to outputPath in the given format.
func ExportFile(entries []Entry, outputPath string, format ExportFormat) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return errors.NewIOError("create", outputPath, err)
	}
	if err := Export(file, entries, format); err != nil {
		_ = file.Close()
		return errors.Wrap(err, "failed to export entries")
	}
	if err := file.Close(); err != nil {
		return errors.NewIOError("close", outputPath, err)
	}
	return nil
}

// Package util provides display helpers shared by the CLI commands.
package util

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateANSI truncates a string to maxWidth visual columns, adding "..." if truncated.
// ANSI escape codes and wide characters are measured correctly, so styled
// log lines can be cut to the terminal width.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate includes the tail in the final width calculation
	return ansi.Truncate(s, maxWidth, "...")
}

// PadRight pads s with spaces to width visual columns. Wider strings are
// returned unchanged.
func PadRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// FirstLine returns s up to its first newline. Multi-line log records are
// listed by their header line.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// FormatBytes renders a byte count with a binary unit, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateANSI(t *testing.T) {
	redStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	tests := []struct {
		name     string
		input    string
		maxWidth int
		check    func(t *testing.T, result string)
	}{
		{
			name:     "short plain string unchanged",
			input:    "hello",
			maxWidth: 10,
			check: func(t *testing.T, result string) {
				if result != "hello" {
					t.Errorf("expected 'hello', got %q", result)
				}
			},
		},
		{
			name:     "plain string truncated",
			input:    "[2026-10-18 09:30:00.000] [MAIN] [INFO]",
			maxWidth: 12,
			check: func(t *testing.T, result string) {
				if result != "[2026-10-..." {
					t.Errorf("expected '[2026-10-...', got %q", result)
				}
			},
		},
		{
			name:     "very small maxWidth returns ellipsis",
			input:    "hello",
			maxWidth: 3,
			check: func(t *testing.T, result string) {
				if result != "..." {
					t.Errorf("expected '...', got %q", result)
				}
			},
		},
		{
			name:     "styled string respects visual width",
			input:    redStyle.Render("ERROR disk full while flushing"),
			maxWidth: 10,
			check: func(t *testing.T, result string) {
				if width := lipgloss.Width(result); width > 10 {
					t.Errorf("result width %d exceeds maxWidth 10", width)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, TruncateANSI(tt.input, tt.maxWidth))
		})
	}
}

func TestPadRight(t *testing.T) {
	bold := lipgloss.NewStyle().Bold(true).Render("abc")

	if got := PadRight("abc", 6); got != "abc   " {
		t.Errorf("PadRight(abc, 6) = %q", got)
	}
	if got := PadRight("abcdef", 3); got != "abcdef" {
		t.Errorf("PadRight(abcdef, 3) = %q", got)
	}
	if got := lipgloss.Width(PadRight(bold, 6)); got != 6 {
		t.Errorf("styled PadRight width = %d, want 6", got)
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"single", "single"},
		{"header\n  Data: {}", "header"},
		{"", ""},
		{"\nleading", ""},
	}
	for _, tt := range tests {
		if got := FirstLine(tt.input); got != tt.expected {
			t.Errorf("FirstLine(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{10 * 1024 * 1024, "10.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.input); got != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

package logging

import (
	"io"
	"sync"

	"golang.org/x/term"
)

// ConsoleSink prints entries to a pair of streams: ERROR and FATAL go to
// the error stream, everything else to the output stream. Lines are colored
// when the stream is a terminal.
type ConsoleSink struct {
	mu       sync.Mutex
	out      io.Writer
	errOut   io.Writer
	outColor bool
	errColor bool
}

// NewConsoleSink creates a sink writing to out and errOut.
func NewConsoleSink(out, errOut io.Writer) *ConsoleSink {
	return &ConsoleSink{
		out:      out,
		errOut:   errOut,
		outColor: isTerminal(out),
		errColor: isTerminal(errOut),
	}
}

type fdWriter interface {
	Fd() uintptr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Write prints e with indented data and its stack.
func (c *ConsoleSink) Write(e Entry) {
	w, color := c.out, c.outColor
	if e.Level >= LevelError {
		w, color = c.errOut, c.errColor
	}
	if w == nil {
		return
	}
	line := Format(e, FormatOptions{Colors: color, IncludeStack: true})

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(w, line+"\n")
}

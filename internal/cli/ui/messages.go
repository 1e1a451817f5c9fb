package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Success prints a green check line
func Success(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen, color.Bold).Fprintf(w, "✓ "+format+"\n", args...)
}

// Info prints a cyan informational line
func Info(w io.Writer, format string, args ...any) {
	color.New(color.FgCyan).Fprintf(w, "ℹ "+format+"\n", args...)
}

// Warning prints a yellow warning line
func Warning(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow, color.Bold).Fprintf(w, "⚠ "+format+"\n", args...)
}

// Failure prints a red error line followed by indented hints
func Failure(w io.Writer, problem string, hints ...string) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "✗ %s\n", problem)
	if len(hints) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, hint := range hints {
		fmt.Fprintf(w, "  %s\n", hint)
	}
}

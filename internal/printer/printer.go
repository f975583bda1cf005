// Package printer formats CLI output: coloured status lines and the process table.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// NO_COLOR disables colour; otherwise force it even when not on a TTY.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Success prints a green line with a checkmark prefix.
func Success(w io.Writer, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprintln(w, msg)
}

// Warning prints a yellow line.
func Warning(w io.Writer, format string, a ...any) {
	yellow.Fprintln(w, "! "+fmt.Sprintf(format, a...))
}

// Step prints one step of a multi-step operation.
func Step(w io.Writer, format string, a ...any) {
	cyan.Fprintln(w, "→ "+fmt.Sprintf(format, a...))
}

// Info prints a plain line.
func Info(w io.Writer, format string, a ...any) {
	fmt.Fprintln(w, fmt.Sprintf(format, a...))
}

// Error prints a red title, an explanation, and suggestions to w and returns
// a plain error carrying the title for cobra.
func Error(w io.Writer, title, explanation string, suggestions ...string) error {
	red.Fprintf(w, "%s\n\n", title)
	if explanation != "" {
		fmt.Fprintf(w, "%s\n", explanation)
	}
	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(w, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(w, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}

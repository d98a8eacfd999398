// Package display prints colored progress lines for the operator.
package display

import (
	"os"

	"github.com/fatih/color"
)

var (
	action = color.New(color.FgCyan, color.Bold)
	done   = color.New(color.FgGreen, color.Bold)
	warn   = color.New(color.FgYellow, color.Bold)
	fail   = color.New(color.FgRed, color.Bold)
)

// Action announces the start of a setup step.
func Action(format string, a ...any) {
	action.Fprintf(os.Stderr, "> "+format+"\n", a...)
}

// Done reports a completed step.
func Done(format string, a ...any) {
	done.Fprintf(os.Stderr, "✓ "+format+"\n", a...)
}

// Warn reports a non-fatal condition.
func Warn(format string, a ...any) {
	warn.Fprintf(os.Stderr, "! "+format+"\n", a...)
}

// Error reports a fatal condition.
func Error(format string, a ...any) {
	fail.Fprintf(os.Stderr, "✗ "+format+"\n", a...)
}

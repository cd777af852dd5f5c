// Package ui styles CLI output with ANSI 256-color escapes.
package ui

import (
	"fmt"
	"sync/atomic"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorError  = 203 // red
)

var noColor atomic.Bool

func render(code int, s string) string {
	if noColor.Load() {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderError returns s in the error (red) color.
func RenderError(s string) string { return render(colorError, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor.Store(true)
}

// Configure disables color unless stdout should be colored and the caller
// did not ask for plain output.
func Configure(plain bool) {
	if plain || !ShouldUseColor() {
		ForceNoColor()
	}
}

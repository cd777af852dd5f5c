package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether stdout should get ANSI colors.
// NO_COLOR wins over CLICOLOR_FORCE, which wins over CLICOLOR=0, TERM=dumb
// and TTY detection.
func ShouldUseColor() bool {
	if use, ok := colorFromEnv(os.Getenv); ok {
		return use
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// colorFromEnv decides from the environment alone. ok is false when the
// environment expresses no preference.
func colorFromEnv(getenv func(string) string) (use, ok bool) {
	switch {
	case getenv("NO_COLOR") != "": // https://no-color.org
		return false, true
	case strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1":
		return true, true
	case strings.TrimSpace(getenv("CLICOLOR")) == "0", getenv("TERM") == "dumb":
		return false, true
	}
	return false, false
}

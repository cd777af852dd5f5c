package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/records/internal/ui"
	"github.com/spf13/cobra"
)

// Patterns used to colorize Cobra's default help output.
var (
	// Section headers: unindented line ending with ":" (e.g. "Records:", "Flags:").
	// Excludes "Usage:" which we leave unstyled.
	reGroupHeader = regexp.MustCompile(`(?m)^([A-Z][^\n]*:)\s*$`)

	// Command names: two-space indent, then a word, then two-or-more spaces
	// before the description.
	reCommand = regexp.MustCompile(`(?m)^(  )(\S+)(  )`)

	// Flag type annotations: e.g. "--url string", "--page int".
	reFlagType = regexp.MustCompile(`(--?\S+\s+)(stringToString|string|int|duration|bool)`)

	// Quoted or numeric defaults, e.g. (default "http://localhost:8080"), (default 10).
	reDefault = regexp.MustCompile(`\(default (?:"[^"]*"|\d+|\S+s)\)`)
)

// colorizedHelpFunc returns a Cobra help function that prints the command's
// long description and usage, styled with ANSI colors when stdout supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		orig := cmd.OutOrStdout()

		var buf bytes.Buffer
		if long := strings.TrimSpace(cmd.Long); long != "" {
			buf.WriteString(long + "\n\n")
		}
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(orig)

		if ui.ShouldUseColor() {
			fmt.Fprint(orig, colorizeHelpOutput(buf.String()))
			return
		}
		fmt.Fprint(orig, buf.String())
	}
}

// colorizeHelpOutput applies ANSI styling to Cobra's plain-text help.
func colorizeHelpOutput(s string) string {
	// 1. Color section headers.
	s = reGroupHeader.ReplaceAllStringFunc(s, func(match string) string {
		return ui.RenderAccent(strings.TrimSpace(match))
	})

	// 2. Color command names.
	s = reCommand.ReplaceAllStringFunc(s, func(match string) string {
		parts := reCommand.FindStringSubmatch(match)
		if len(parts) == 4 {
			return parts[1] + ui.RenderCommand(parts[2]) + parts[3]
		}
		return match
	})

	// 3. Color flag type annotations.
	s = reFlagType.ReplaceAllStringFunc(s, func(match string) string {
		parts := reFlagType.FindStringSubmatch(match)
		if len(parts) == 3 {
			return parts[1] + ui.RenderMuted(parts[2])
		}
		return match
	})

	// 4. Color default values.
	s = reDefault.ReplaceAllStringFunc(s, func(match string) string {
		return ui.RenderMuted(match)
	})

	return s
}

// Package util holds text helpers for terminal output.
package util

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "..."

// Truncate shortens s to at most maxWidth visual columns, ending in "..."
// when cut. Escape sequences and wide characters are measured correctly, so
// styled text keeps its styling.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= len(ellipsis) {
		return ellipsis
	}
	if ansi.StringWidth(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, ellipsis)
}

// OneLine collapses every run of whitespace, including newlines, to a single space.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Preview is a single-line excerpt of s that fits in maxWidth columns.
func Preview(s string, maxWidth int) string {
	return Truncate(OneLine(s), maxWidth)
}

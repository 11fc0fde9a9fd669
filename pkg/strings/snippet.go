// Package strings holds text helpers shared by the protocol and CLI layers.
package strings

import (
	"strings"
)

// BodySnippetLen bounds how much of an unparseable response body ends up in
// an error message.
const BodySnippetLen = 200

// minSnippetLen leaves room for one character plus the ellipsis.
const minSnippetLen = 4

// Snippet flattens s to a single line and shortens it to at most maxLen
// runes, marking a cut with "...". Server bodies and error texts can span
// many lines and would break log records and table cells otherwise.
func Snippet(s string, maxLen int) string {
	if maxLen < minSnippetLen {
		maxLen = minSnippetLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

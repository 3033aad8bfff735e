package translate

import (
	"strings"
	"unicode"
)

// terminalPunct is the set of trailing punctuation stripped before comparing
// literal and contextual translations. Covers ASCII and CJK full-width forms.
const terminalPunct = ".,!?;:。、，！？；：…"

// normalizeForCompare lowercases, trims, collapses internal whitespace runs to
// a single space, and strips terminal punctuation. Used only for the Differs
// comparison — never for display.
func normalizeForCompare(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return strings.ContainsRune(terminalPunct, r)
	})

	var sb strings.Builder
	sb.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		inSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// differs reports whether literal and contextual are meaningfully distinct.
// A missing side always compares equal, so a chunk with only one translation
// never carries a spurious flag.
func differs(literal, contextual string) bool {
	if literal == "" || contextual == "" {
		return false
	}
	return normalizeForCompare(literal) != normalizeForCompare(contextual)
}

package ui

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// Sanitize removes codepoints that tcell renders with the wrong width:
// skin tone modifiers, zero width joiners and variation selectors.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// Text prepares untrusted text for a dynamic-color view.
func Text(s string) string { return tview.Escape(Sanitize(s)) }

func isProblematicRune(r rune) bool {
	switch {
	// Skin tone modifiers.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	// Zero Width Joiner.
	case r == 0x200D:
		return true
	// Variation Selectors.
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	// Variation Selectors Supplement.
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return false
	}
}

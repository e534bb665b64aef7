package views

import (
	"strings"
	"unicode"

	"github.com/rivo/tview"
)

// displayText makes backend text safe to print in a dynamic-color view:
// control characters other than newline and tab are dropped, as are the
// emoji modifiers tcell cannot lay out, and color tags are escaped.
func displayText(s string) string {
	return tview.Escape(strings.Map(keepRune, s))
}

// cellText is displayText collapsed onto one line, for table cells.
func cellText(s string) string {
	return displayText(strings.Join(strings.Fields(s), " "))
}

func keepRune(r rune) rune {
	switch {
	case r == '\n' || r == '\t':
		return r
	case unicode.IsControl(r):
		return -1
	// Skin tone modifiers turn one glyph into two cells.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return -1
	// Zero width joiner.
	case r == 0x200D:
		return -1
	// Variation selectors and their supplement.
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return -1
	}
	return r
}

package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds the colors of the inbox TUI.
type Theme struct {
	BgColor     tcell.Color
	FgColor     tcell.Color
	DimColor    tcell.Color
	BorderColor tcell.Color
	TitleColor  tcell.Color

	TableHeaderFg tcell.Color
	TableHeaderBg tcell.Color
	TableCursorFg tcell.Color
	TableCursorBg tcell.Color

	CrumbActiveFg   tcell.Color
	CrumbActiveBg   tcell.Color
	CrumbInactiveFg tcell.Color
	CrumbInactiveBg tcell.Color

	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	CounterColor      tcell.Color
	PromptBorderColor tcell.Color

	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color

	// Conversation and message rendering.
	UnreadColor   tcell.Color
	OwnColor      tcell.Color
	PeerColor     tcell.Color
	PendingColor  tcell.Color
	ReadMarkColor tcell.Color
	GroupColor    tcell.Color

	// Daemon session states.
	StatusReadyColor tcell.Color
	StatusBusyColor  tcell.Color
	StatusWarnColor  tcell.Color
	StatusDownColor  tcell.Color
}

// DefaultTheme returns the dark theme used by inboxtui.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:     tcell.ColorBlack,
		FgColor:     tcell.ColorLightSlateGray,
		DimColor:    tcell.ColorDimGray,
		BorderColor: tcell.ColorTeal,
		TitleColor:  tcell.ColorGold,

		TableHeaderFg: tcell.ColorWhite,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: tcell.ColorMediumTurquoise,

		CrumbActiveFg:   tcell.ColorBlack,
		CrumbActiveBg:   tcell.ColorGold,
		CrumbInactiveFg: tcell.ColorBlack,
		CrumbInactiveBg: tcell.ColorMediumTurquoise,

		MenuKeyColor:      tcell.ColorMediumTurquoise,
		NumericKeyColor:   tcell.ColorHotPink,
		CounterColor:      tcell.ColorWheat,
		PromptBorderColor: tcell.ColorGold,

		FlashInfoColor: tcell.ColorWheat,
		FlashWarnColor: tcell.ColorOrange,
		FlashErrColor:  tcell.ColorOrangeRed,

		UnreadColor:   tcell.ColorHotPink,
		OwnColor:      tcell.ColorMediumTurquoise,
		PeerColor:     tcell.ColorGold,
		PendingColor:  tcell.ColorOrange,
		ReadMarkColor: tcell.ColorLimeGreen,
		GroupColor:    tcell.ColorMediumPurple,

		StatusReadyColor: tcell.ColorLimeGreen,
		StatusBusyColor:  tcell.ColorMediumTurquoise,
		StatusWarnColor:  tcell.ColorOrange,
		StatusDownColor:  tcell.ColorOrangeRed,
	}
}

// StatusColor maps a daemon session status to its display color.
func (t *Theme) StatusColor(status string) tcell.Color {
	switch status {
	case "READY":
		return t.StatusReadyColor
	case "BOOTING", "CONNECTING", "SYNCING":
		return t.StatusBusyColor
	case "DEGRADED", "AUTH_REQUIRED":
		return t.StatusWarnColor
	default:
		return t.StatusDownColor
	}
}

// Tag returns c as a tview color tag value.
func Tag(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// SessionData holds daemon information for display.
type SessionData struct {
	Profile       string
	Identity      string
	Status        string
	Conversations int
	Unread        int
	Polling       bool
	Uptime        time.Duration
}

// SessionInfo displays daemon metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}

	fgColor := Tag(si.theme.FgColor)
	counterColor := Tag(si.theme.CounterColor)

	identity := data.Identity
	if identity == "" {
		identity = "-"
	}
	polling := "off"
	if data.Polling {
		polling = "on"
	}
	unreadColor := counterColor
	if data.Unread > 0 {
		unreadColor = Tag(si.theme.UnreadColor)
	}

	_, _ = fmt.Fprintf(si,
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]  [%s]%s[-]\n"+
			"[%s::b]Chats:[-:-:-]   [%s]%d[-]\n"+
			"[%s::b]Unread:[-:-:-]  [%s]%d[-]\n"+
			"[%s::b]Polling:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fgColor, counterColor, data.Profile,
		fgColor, counterColor, tview.Escape(identity),
		fgColor, Tag(si.theme.StatusColor(data.Status)), data.Status,
		fgColor, counterColor, data.Conversations,
		fgColor, unreadColor, data.Unread,
		fgColor, counterColor, polling,
		fgColor, counterColor, formatDuration(data.Uptime),
	)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

package views

import (
	"fmt"

	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/tui/model"
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements ui.Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements ui.Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(c *remote.Conversation, selfID string) {
	ci.Clear()
	if c == nil {
		return
	}

	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)
	title := model.ConversationTitle(c, selfID)

	kind := "Direct"
	if len(c.Users) > 2 {
		kind = "Group"
	}

	lastActive := formatTimestamp(c.UpdatedAt)
	if lastActive == "" {
		lastActive = "-"
	}
	last := "-"
	if c.LastMessage != nil {
		last = c.LastMessage.Message
	}

	_, _ = fmt.Fprintf(ci,
		"\n [%s::b]Name:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]ID:[-:-:-]           [%s]%s[-]\n"+
			" [%s::b]Type:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]Unread:[-:-:-]       [%s]%d[-]\n"+
			" [%s::b]Last Active:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Last Message:[-:-:-] [%s]%s[-]\n\n"+
			" [%s::b]Participants:[-:-:-]\n",
		fg, ct, displayText(title),
		fg, ct, c.ID,
		fg, ct, kind,
		fg, ct, c.UnreadCount,
		fg, ct, lastActive,
		fg, ct, cellText(last),
		fg,
	)
	for _, u := range c.Users {
		me := ""
		if u.ID == selfID {
			me = " (you)"
		}
		_, _ = fmt.Fprintf(ci, "   [%s]%s[-] <%s> %s%s\n", ct, displayText(u.DisplayName()), displayText(u.Email), u.ID, me)
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", displayText(title)))
}

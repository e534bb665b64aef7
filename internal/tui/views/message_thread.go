package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays messages and a composer for a single conversation.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	title    string
	convID   string
	onSend   func(text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
	})

	return mt
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string {
	if mt.title != "" {
		return mt.title
	}
	return "Messages"
}

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetConversation sets the displayed conversation id and title.
func (mt *MessageThread) SetConversation(id, title string) {
	mt.convID = id
	mt.title = title
	mt.messages.SetTitle(fmt.Sprintf(" %s ", displayText(title)))
}

// ConversationID returns the displayed conversation id.
func (mt *MessageThread) ConversationID() string {
	return mt.convID
}

// SetOnSend sets the callback when a message is sent.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// Update renders msgs, which are in time order. selfID marks own messages.
func (mt *MessageThread) Update(msgs []chat.Message, selfID string) {
	mt.messages.Clear()

	dim := ui.Tag(mt.theme.DimColor)
	for _, m := range msgs {
		sender, color := m.Sender.DisplayName(), mt.theme.PeerColor
		mine := m.Sender.ID == selfID
		if mine {
			sender, color = "You", mt.theme.OwnColor
		}

		var marks string
		switch {
		case m.Pending():
			marks = fmt.Sprintf(" [%s]sending…[-]", ui.Tag(mt.theme.PendingColor))
		case m.State == chat.StateEdited:
			marks = fmt.Sprintf(" [%s](edited)[-]", dim)
		}
		if mine && !m.Pending() && m.Read {
			marks += fmt.Sprintf(" [%s]✓✓[-]", ui.Tag(mt.theme.ReadMarkColor))
		}

		_, _ = fmt.Fprintf(mt.messages, "[%s::b]%s[-:-:-] [%s]%s[-]%s\n%s\n\n",
			ui.Tag(color), displayText(sender), dim, formatTimestamp(m.CreatedAt), marks,
			displayText(m.Body))
	}

	mt.messages.ScrollToEnd()
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field (for focus management).
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}

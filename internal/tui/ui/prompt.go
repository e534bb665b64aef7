package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode indicates the type of prompt (command or filter).
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
)

const historySize = 50

// Prompt is the command and filter input bar. Commands keep a history
// browsed with Up and Down, and Tab completes the command name.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	commands []string
	history  history
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{
		InputField: input,
		theme:      theme,
	}
	input.SetDoneFunc(p.done)
	input.SetInputCapture(p.capture)
	return p
}

func (p *Prompt) done(key tcell.Key) {
	if key != tcell.KeyEnter && key != tcell.KeyEscape {
		return
	}
	text := strings.TrimSpace(p.GetText())
	p.SetText("")
	switch {
	case key == tcell.KeyEscape || text == "":
		if p.onCancel != nil {
			p.onCancel()
		}
	default:
		if p.mode == PromptCommand {
			p.history.add(text)
		}
		if p.onSubmit != nil {
			p.onSubmit(p.mode, text)
		}
	}
}

func (p *Prompt) capture(ev *tcell.EventKey) *tcell.EventKey {
	if p.mode != PromptCommand {
		return ev
	}
	switch ev.Key() {
	case tcell.KeyUp:
		if s, ok := p.history.prev(); ok {
			p.SetText(s)
		}
		return nil
	case tcell.KeyDown:
		s, _ := p.history.next()
		p.SetText(s)
		return nil
	case tcell.KeyTab:
		p.SetText(completeCommand(p.GetText(), p.commands))
		return nil
	}
	return ev
}

// SetCommands sets the command names Tab completes.
func (p *Prompt) SetCommands(names []string) {
	p.commands = names
}

// SetOnSubmit sets the callback when the prompt is submitted.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback for Esc or an empty submission.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate resets the prompt for mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.history.rewind()
	p.SetText("")
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter ")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

// history holds submitted commands, oldest first. pos indexes the entry on
// display; len(entries) means none.
type history struct {
	entries []string
	pos     int
}

func (h *history) add(s string) {
	if n := len(h.entries); n == 0 || h.entries[n-1] != s {
		h.entries = append(h.entries, s)
		if len(h.entries) > historySize {
			h.entries = h.entries[len(h.entries)-historySize:]
		}
	}
	h.rewind()
}

func (h *history) rewind() {
	h.pos = len(h.entries)
}

func (h *history) prev() (string, bool) {
	if h.pos == 0 {
		return "", false
	}
	h.pos--
	return h.entries[h.pos], true
}

// next moves toward the newest entry; past it the prompt is empty again.
func (h *history) next() (string, bool) {
	if h.pos >= len(h.entries)-1 {
		h.rewind()
		return "", false
	}
	h.pos++
	return h.entries[h.pos], true
}

// completeCommand extends the command word of text to the longest prefix
// shared by the names it matches. Text with arguments is left alone.
func completeCommand(text string, names []string) string {
	if text == "" || strings.Contains(text, " ") {
		return text
	}
	var matches []string
	for _, n := range names {
		if strings.HasPrefix(n, text) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return text
	case 1:
		return matches[0] + " "
	}
	prefix := matches[0]
	for _, m := range matches[1:] {
		for !strings.HasPrefix(m, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}

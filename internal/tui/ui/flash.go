package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// FlashMessage is one line of the flash bar.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
	// Sticky messages stay until replaced through SetSticky.
	Sticky bool
}

// FlashModel holds the transient notification and the sticky backend error.
// A live transient message is shown over the sticky one.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	sticky  string
	now     func() time.Time
	watchCh chan struct{}
}

// NewFlashModel creates a new flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{
		now:     time.Now,
		watchCh: make(chan struct{}, 1),
	}
}

// Info shows msg for five seconds.
func (f *FlashModel) Info(msg string) {
	f.set(msg, FlashInfo, 5*time.Second)
}

// Warn shows msg for eight seconds.
func (f *FlashModel) Warn(msg string) {
	f.set(msg, FlashWarn, 8*time.Second)
}

// Err shows err for ten seconds.
func (f *FlashModel) Err(err error) {
	f.set(err.Error(), FlashErr, 10*time.Second)
}

func (f *FlashModel) set(msg string, level FlashLevel, d time.Duration) {
	f.mu.Lock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: f.now().Add(d)}
	f.mu.Unlock()
	f.notify()
}

// SetSticky replaces the sticky message; empty clears it. It reports whether
// the text changed.
func (f *FlashModel) SetSticky(text string) bool {
	f.mu.Lock()
	changed := f.sticky != text
	f.sticky = text
	f.mu.Unlock()
	if changed {
		f.notify()
	}
	return changed
}

func (f *FlashModel) notify() {
	select {
	case f.watchCh <- struct{}{}:
	default:
	}
}

// Current returns the message to display, or nil when there is none.
func (f *FlashModel) Current() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text != "" && f.now().Before(f.current.Expires) {
		m := f.current
		return &m
	}
	if f.sticky != "" {
		return &FlashMessage{Text: f.sticky, Level: FlashErr, Sticky: true}
	}
	return nil
}

// Watch signals when a message is set.
func (f *FlashModel) Watch() <-chan struct{} {
	return f.watchCh
}

// FlashBar is the UI component that displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders msg on the bar.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}

	var color string
	switch msg.Level {
	case FlashInfo:
		color = Tag(fb.theme.FlashInfoColor)
	case FlashWarn:
		color = Tag(fb.theme.FlashWarnColor)
	case FlashErr:
		color = Tag(fb.theme.FlashErrColor)
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", color, tview.Escape(msg.Text))
	if msg.Sticky {
		_, _ = fmt.Fprintf(fb, " [%s](:dismiss)[-]", Tag(fb.theme.DimColor))
	}
}

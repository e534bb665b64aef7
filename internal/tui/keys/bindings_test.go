package keys

import (
	"slices"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/tui/ui"
)

func TestHandleEventPrefersView(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal("refresh", &Action{Key: tcell.KeyRune, Rune: 'r', Handler: func() { got = "global" }})
	r.AddView("thread", "reload", &Action{Key: tcell.KeyRune, Rune: 'r', Handler: func() { got = "view" }})

	ev := tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)
	if !r.HandleEvent("thread", ev) || got != "view" {
		t.Errorf("thread: handled by %q, want view", got)
	}
	if !r.HandleEvent("conversations", ev) || got != "global" {
		t.Errorf("conversations: handled by %q, want global", got)
	}
	if r.HandleEvent("conversations", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unbound key was handled")
	}
}

func TestMatchesSpecialKeys(t *testing.T) {
	a := &Action{Key: tcell.KeyEscape}
	if !a.Matches(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Error("Escape did not match")
	}
	if a.Matches(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Error("rune matched a special-key action")
	}
}

func TestAddReplacesByName(t *testing.T) {
	r := NewRegistry()
	var got int
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = 1 }})
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = 2 }})

	r.HandleEvent("any", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	if got != 2 {
		t.Errorf("handler %d ran, want the replacement", got)
	}
}

func TestHintsOrderAndNumericGroups(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Visible: true})
	r.AddGlobal("hidden", &Action{Key: tcell.KeyRune, Rune: 'z', Description: "Hidden"})
	r.AddView("conversations", "refresh", &Action{Key: tcell.KeyRune, Rune: 'r', Description: "Refresh", Visible: true})
	for n := '1'; n <= '9'; n++ {
		r.AddView("conversations", "jump"+string(n), &Action{Key: tcell.KeyRune, Rune: n, Description: "Jump", Visible: true, Numeric: true})
	}
	r.AddView("conversations", "filter", &Action{Key: tcell.KeyRune, Rune: '/', Label: "/", Description: "Filter", Visible: true})

	want := []ui.MenuHint{
		{Key: "r", Description: "Refresh"},
		{Key: "1-9", Description: "Jump", Numeric: true},
		{Key: "/", Description: "Filter"},
		{Key: "q", Description: "Quit"},
	}
	if got := r.Hints("conversations"); !slices.Equal(got, want) {
		t.Errorf("Hints = %+v, want %+v", got, want)
	}
	if got := r.Hints("thread"); !slices.Equal(got, want[3:]) {
		t.Errorf("Hints(thread) = %+v, want globals only", got)
	}
}

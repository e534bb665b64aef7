package keys

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/tui/ui"
)

// Action is one key binding.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Label       string // key as shown in the menu; defaults to Rune
	Description string
	Handler     func()
	Visible     bool
	// Numeric actions sharing a Description collapse into one "first-last"
	// menu hint.
	Numeric bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

func (a *Action) label() string {
	if a.Label != "" {
		return a.Label
	}
	return string(a.Rune)
}

type binding struct {
	name   string
	action *Action
}

// Registry holds key bindings per page plus global ones, in registration
// order. Page bindings win over global ones.
type Registry struct {
	global []binding
	views  map[string][]binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string][]binding)}
}

// AddGlobal registers a binding active on every page. A binding with the
// same name is replaced.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.global = upsert(r.global, name, action)
}

// AddView registers a binding active on one page.
func (r *Registry) AddView(view, name string, action *Action) {
	r.views[view] = upsert(r.views[view], name, action)
}

func upsert(bs []binding, name string, a *Action) []binding {
	for i := range bs {
		if bs[i].name == name {
			bs[i].action = a
			return bs
		}
	}
	return append(bs, binding{name: name, action: a})
}

// HandleEvent runs the first binding of view, then of the global set, that
// matches ev. It reports whether one ran.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	for _, set := range [][]binding{r.views[view], r.global} {
		for _, b := range set {
			if b.action.Matches(ev) {
				b.action.Handler()
				return true
			}
		}
	}
	return false
}

// Hints returns the menu hints for view: page bindings first, then global ones.
func (r *Registry) Hints(view string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, set := range [][]binding{r.views[view], r.global} {
		hints = append(hints, hintsOf(set)...)
	}
	return hints
}

func hintsOf(set []binding) []ui.MenuHint {
	var (
		hints  []ui.MenuHint
		groups = make(map[string]int) // description -> index in hints
		first  = make(map[string]string)
	)
	for _, b := range set {
		a := b.action
		if !a.Visible {
			continue
		}
		if !a.Numeric {
			hints = append(hints, ui.MenuHint{Key: a.label(), Description: a.Description})
			continue
		}
		if i, ok := groups[a.Description]; ok {
			hints[i].Key = fmt.Sprintf("%s-%s", first[a.Description], a.label())
			continue
		}
		groups[a.Description] = len(hints)
		first[a.Description] = a.label()
		hints = append(hints, ui.MenuHint{Key: a.label(), Description: a.Description, Numeric: true})
	}
	return hints
}

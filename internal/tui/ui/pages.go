package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Component is a page hosted by Pages. Hints lists the keys the page's own
// widgets handle; bound keys come from the key registry.
type Component interface {
	Name() string
	Hints() []MenuHint
}

// Pages keeps tview pages as a navigation stack and reports every change.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages: tview.NewPages(),
	}
}

// SetOnChange sets the callback run with a copy of the stack after it changes.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push shows name on top of the stack.
func (p *Pages) Push(name string) {
	if top := p.Current(); top != "" {
		p.HidePage(top)
	}
	p.stack = append(p.stack, name)
	p.front(name)
	p.notify()
}

// Show brings name to the top. When name is already on the stack the pages
// above it are dropped instead of stacking a second copy.
func (p *Pages) Show(name string) {
	i := slices.Index(p.stack, name)
	if i < 0 {
		p.Push(name)
		return
	}
	if i == len(p.stack)-1 {
		return
	}
	for _, n := range p.stack[i+1:] {
		p.HidePage(n)
	}
	p.stack = p.stack[:i+1]
	p.front(name)
	p.notify()
}

// Pop drops the top page and returns its name, or empty when the stack is empty.
func (p *Pages) Pop() string {
	if len(p.stack) == 0 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	if cur := p.Current(); cur != "" {
		p.front(cur)
	}
	p.notify()
	return top
}

// Reset makes name the only page on the stack.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.front(name)
	p.notify()
}

// Current returns the top page, or empty when the stack is empty.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the stack, bottom first.
func (p *Pages) Stack() []string {
	return slices.Clone(p.stack)
}

// Depth returns the number of stacked pages.
func (p *Pages) Depth() int {
	return len(p.stack)
}

func (p *Pages) front(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}

package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumb is one step of the navigation trail. Count, when positive, is shown
// as a badge next to the label.
type Crumb struct {
	Label string
	Count int
}

// Crumbs shows the page stack as a breadcrumb bar.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders trail; the last crumb is the active page.
func (c *Crumbs) Update(trail []Crumb) {
	c.Clear()
	if len(trail) == 0 {
		return
	}

	parts := make([]string, 0, len(trail))
	for i, cr := range trail {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(trail)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		label := tview.Escape(cr.Label)
		if cr.Count > 0 {
			label = fmt.Sprintf("%s (%d)", label, cr.Count)
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", Tag(fg), Tag(bg), attr, label))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " › "))
}

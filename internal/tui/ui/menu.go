package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
}

// Menu displays keyboard shortcut hints on one line.
type Menu struct {
	*tview.TextView
}

// NewMenu creates a new menu hint bar.
func NewMenu() *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBorderPadding(0, 0, 1, 0)
	return &Menu{TextView: tv}
}

// Update renders hints.
func (m *Menu) Update(theme *Theme, hints []MenuHint) {
	m.SetBackgroundColor(theme.BgColor)
	m.Clear()
	_, _ = fmt.Fprint(m, HintText(theme, hints))
}

// HintText is the tagged text of the menu bar.
func HintText(theme *Theme, hints []MenuHint) string {
	keyColor := Tag(theme.MenuKeyColor)
	fg := Tag(theme.FgColor)
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, fmt.Sprintf("[%s::b]<%s>[-:-:-] [%s]%s[-]", keyColor, h.Key, fg, h.Description))
	}
	return strings.Join(parts, "  ")
}

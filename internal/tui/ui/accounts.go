package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumb is one account in the account bar.
type Crumb struct {
	Label string
	State string
	// Active marks the account under the cursor.
	Active bool
	// Failed marks an account that could not be restored.
	Failed bool
}

// AccountBar is a breadcrumb-style row of accounts.
type AccountBar struct {
	*tview.TextView
}

// NewAccountBar creates an empty account bar.
func NewAccountBar() *AccountBar {
	return &AccountBar{TextView: tview.NewTextView().SetDynamicColors(true)}
}

// Update renders crumbs with theme colors.
func (a *AccountBar) Update(theme *Theme, crumbs []Crumb) {
	a.SetBackgroundColor(theme.BgColor)
	a.Clear()
	_, _ = fmt.Fprint(a, CrumbText(theme, crumbs))
}

// CrumbText is the tagged text of the account bar.
func CrumbText(theme *Theme, crumbs []Crumb) string {
	if len(crumbs) == 0 {
		return fmt.Sprintf("[%s] no accounts, press a to add one[-]", Tag(theme.MutedColor))
	}
	parts := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		fg, bg := theme.CrumbInactiveFg, theme.CrumbInactiveBg
		if c.Active {
			fg, bg = theme.CrumbActiveFg, theme.CrumbActiveBg
		}
		if c.Failed {
			bg = theme.FlashErrColor
		}
		label := Text(c.Label)
		if c.State != "" {
			label += " " + strings.ToLower(c.State)
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:b] %s [-:-:-]", Tag(fg), Tag(bg), label))
	}
	return strings.Join(parts, " ")
}

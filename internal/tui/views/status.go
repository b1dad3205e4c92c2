package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/status"
	"github.com/matheus3301/matrixtui/internal/tui/ui"
)

// Crumbs maps the accounts of snap to account bar entries.
func Crumbs(snap *app.Snapshot) []ui.Crumb {
	crumbs := make([]ui.Crumb, 0, len(snap.Accounts)+len(snap.Failures))
	for i, a := range snap.Accounts {
		label := a.DisplayName
		if label == "" {
			label = a.ID
		}
		crumbs = append(crumbs, ui.Crumb{
			Label:  label,
			State:  string(a.State),
			Active: snap.Nav.Focus == nav.FocusAccounts && i == snap.Nav.AccountCursor,
			Failed: a.State == status.Error,
		})
	}
	for id := range snap.Failures {
		crumbs = append(crumbs, ui.Crumb{Label: id, State: "failed", Failed: true})
	}
	return crumbs
}

// StatusLine returns the flash level, the status text and the right column.
func StatusLine(snap *app.Snapshot) (ui.FlashLevel, string, string) {
	level := ui.FlashInfo
	text := snap.Status
	for _, a := range snap.Accounts {
		if a.State == status.Error {
			level = ui.FlashWarn
			if text == "" {
				text = fmt.Sprintf("%s: %s", a.ID, a.Reason)
			}
		}
	}
	if len(snap.Failures) > 0 {
		level = ui.FlashErr
	}

	var right []string
	if snap.Pending > 0 {
		right = append(right, fmt.Sprintf("%d sending", snap.Pending))
	}
	right = append(right, snap.Nav.Focus.String())
	if !snap.Now.IsZero() {
		right = append(right, snap.Now.Format("15:04"))
	}
	return level, text, strings.Join(right, " · ")
}

// Hints lists the shortcuts for the focused panel.
func Hints(snap *app.Snapshot) []ui.MenuHint {
	if snap.Nav.Overlay != nav.OverlayNone {
		return []ui.MenuHint{{Key: "Esc", Description: "Close"}, {Key: "Enter", Description: "Confirm"}}
	}
	hints := []ui.MenuHint{{Key: "Tab", Description: "Panel"}}
	switch snap.Nav.Focus {
	case nav.FocusAccounts:
		hints = append(hints, ui.MenuHint{Key: "↑/↓", Description: "Account"}, ui.MenuHint{Key: "a", Description: "Add"})
	case nav.FocusRooms:
		hints = append(hints, ui.MenuHint{Key: "Enter", Description: "Open"}, ui.MenuHint{Key: "f", Description: "Favorite"})
	case nav.FocusChat:
		hints = append(hints, ui.MenuHint{Key: "Enter", Description: "Actions"}, ui.MenuHint{Key: "r", Description: "Reply"}, ui.MenuHint{Key: "e", Description: "React"})
	case nav.FocusInput:
		hints = append(hints, ui.MenuHint{Key: "Enter", Description: "Send"})
	}
	return append(hints,
		ui.MenuHint{Key: "Ctrl+K", Description: "Switch"},
		ui.MenuHint{Key: "?", Description: "Help"},
		ui.MenuHint{Key: "Ctrl+Q", Description: "Quit"},
	)
}

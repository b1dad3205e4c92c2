package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/tui/ui"
)

// RoomList is the room panel.
type RoomList struct {
	*tview.Table
}

// NewRoomList creates an empty room table.
func NewRoomList() *RoomList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	return &RoomList{Table: table}
}

// Update redraws the rooms of snap.
func (rl *RoomList) Update(theme *ui.Theme, snap *app.Snapshot, focused bool) {
	rl.Clear()
	rl.SetBackgroundColor(theme.BgColor)
	rl.SetTitleColor(theme.TitleColor)
	rl.SetBorderColor(borderColor(theme, focused))
	rl.SetSelectedStyle(tcell.StyleDefault.Foreground(theme.CursorFg).Background(theme.CursorBg))

	for i, r := range snap.Rooms {
		text := RoomLabel(r, i < snap.FavoritesCount)
		cell := tview.NewTableCell(text).SetExpansion(1).SetTextColor(theme.FgColor)
		if r.ID == snap.ActiveRoom.ID {
			cell.SetAttributes(tcell.AttrBold)
		}
		rl.SetCell(i, 0, cell)
		if r.Unread > 0 {
			rl.SetCell(i, 1, tview.NewTableCell(fmt.Sprintf("%d ", r.Unread)).
				SetTextColor(theme.CounterColor).
				SetAlign(tview.AlignRight))
		}
	}
	if len(snap.Rooms) > 0 {
		rl.Select(snap.SelectedRoom, 0)
	}
	rl.SetTitle(fmt.Sprintf(" Rooms (%d) by %s ", len(snap.Rooms), snap.Sort))
}

// RoomLabel is the text of one room row.
func RoomLabel(r chat.Room, favorite bool) string {
	prefix := "  "
	switch {
	case favorite:
		prefix = "★ "
	case r.IsDM:
		prefix = "@ "
	}
	return prefix + ui.Text(r.Label())
}

func borderColor(theme *ui.Theme, focused bool) tcell.Color {
	if focused {
		return theme.BorderFocusColor
	}
	return theme.BorderColor
}

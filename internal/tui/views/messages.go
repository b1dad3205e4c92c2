package views

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/rooms"
	"github.com/matheus3301/matrixtui/internal/tui/ui"
)

// MessageView displays the timeline of the active room.
type MessageView struct {
	*tview.TextView
}

// NewMessageView creates an empty timeline view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	return &MessageView{TextView: tv}
}

// Update redraws the timeline. A selected message is highlighted and
// scrolled into view, otherwise the view follows the newest message.
func (mv *MessageView) Update(theme *ui.Theme, snap *app.Snapshot, focused bool) {
	mv.SetBackgroundColor(theme.BgColor)
	mv.SetTextColor(theme.FgColor)
	mv.SetTitleColor(theme.TitleColor)
	mv.SetBorderColor(borderColor(theme, focused))
	mv.SetTitle(" " + ui.Text(RoomTitle(snap)) + " ")

	mv.Clear()
	_, _ = fmt.Fprint(mv, TimelineText(theme, snap))
	if snap.SelectedMessage >= 0 {
		mv.Highlight(region(snap.SelectedMessage))
		mv.ScrollToHighlight()
		return
	}
	mv.Highlight()
	mv.ScrollToEnd()
}

// RoomTitle is the timeline border title.
func RoomTitle(snap *app.Snapshot) string {
	r := snap.ActiveRoom
	if r.ID == "" {
		return "matrixtui"
	}
	if r.Topic != "" {
		return r.Label() + " · " + r.Topic
	}
	return r.Label()
}

// TimelineText renders the messages of snap as tagged text.
func TimelineText(theme *ui.Theme, snap *app.Snapshot) string {
	muted := ui.Tag(theme.MutedColor)
	if snap.ActiveRoom.ID == "" {
		return ui.Logo(theme)
	}
	if len(snap.Messages) == 0 {
		return fmt.Sprintf("[%s]%s[-]", muted, loadText(snap.Load))
	}

	var b strings.Builder
	if snap.Load == rooms.LoadFromArchive || snap.Load == rooms.LoadFromCache {
		fmt.Fprintf(&b, "[%s](%s, waiting for sync)[-]\n\n", muted, snap.Load)
	}
	for i := range snap.Messages {
		if i == snap.FirstUnread {
			fmt.Fprintf(&b, "[%s]──── new ────[-]\n", ui.Tag(theme.CounterColor))
		}
		writeMessage(&b, theme, &snap.Messages[i], i, snap.ActiveRoom.AccountID, snap.Now)
	}
	if len(snap.Typing) > 0 {
		fmt.Fprintf(&b, "[%s]%s[-]", muted, ui.Text(TypingText(snap.Typing)))
	}
	return b.String()
}

func writeMessage(b *strings.Builder, theme *ui.Theme, m *chat.Message, i int, self string, now time.Time) {
	muted := ui.Tag(theme.MutedColor)
	sender := ui.Tag(theme.SenderColor)
	if m.Sender == self {
		sender = ui.Tag(theme.MenuKeyColor)
	}

	fmt.Fprintf(b, `["%s"]`, region(i))
	fmt.Fprintf(b, "[%s::b]%s[-:-:-] [%s]%s", sender, ui.Text(m.Sender), muted, Timestamp(m.Timestamp, now))
	if m.Edited {
		b.WriteString(" (edited)")
	}
	if m.Provisional() {
		b.WriteString(" sending…")
	}
	b.WriteString("[-]\n")

	if r := m.ReplyTo; r != nil {
		if r.Resolved() {
			fmt.Fprintf(b, "[%s]  ↳ %s: %s[-]\n", muted, ui.Text(r.Sender), ui.Text(r.Snippet))
		} else {
			fmt.Fprintf(b, "[%s]  ↳ reply to an older message[-]\n", muted)
		}
	}
	b.WriteString(ui.Text(m.Content.Display()))
	b.WriteString("\n")
	if len(m.Reactions) > 0 {
		b.WriteString("  ")
		for _, key := range slices.Sorted(maps.Keys(m.Reactions)) {
			fmt.Fprintf(b, "%s %d  ", ui.Sanitize(key), m.Reactions[key])
		}
		b.WriteString("\n")
	}
	b.WriteString(`[""]` + "\n")
}

// Timestamp formats t as a clock time for today and relative otherwise.
func Timestamp(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.IsZero() {
		now = time.Now()
	}
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("15:04")
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// TypingText lists who is typing.
func TypingText(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0] + " is typing…"
	case 2:
		return users[0] + " and " + users[1] + " are typing…"
	}
	return fmt.Sprintf("%s and %d others are typing…", users[0], len(users)-1)
}

func loadText(s rooms.LoadState) string {
	switch s {
	case rooms.LoadLoading:
		return "Loading messages…"
	case rooms.LoadWaitingForSync:
		return "Waiting for the first sync…"
	case rooms.LoadFailed:
		return "Could not load messages."
	}
	return "No messages yet."
}

func region(i int) string { return fmt.Sprintf("m%d", i) }

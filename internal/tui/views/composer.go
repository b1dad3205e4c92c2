package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/tui/ui"
)

// Composer shows the message input and the reply being written.
type Composer struct {
	*tview.TextView
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBorder(true)
	return &Composer{TextView: tv}
}

// Update redraws the input line.
func (c *Composer) Update(theme *ui.Theme, snap *app.Snapshot) {
	focused := snap.Nav.Focus == nav.FocusInput && snap.Nav.Overlay == nav.OverlayNone
	c.SetBackgroundColor(theme.BgColor)
	c.SetTextColor(theme.FgColor)
	c.SetBorderColor(borderColor(theme, focused))
	c.SetTitleColor(theme.TitleColor)
	c.SetTitle("")
	if r := snap.Nav.ReplyTo; r != nil {
		c.SetTitle(fmt.Sprintf(" Replying to %s ", ui.Text(r.Sender)))
	}
	c.Clear()
	input := snap.Nav.Input
	_, _ = fmt.Fprintf(c, "[%s]>[-] %s", ui.Tag(theme.MenuKeyColor), FieldText(&input, focused, false))
}

// FieldText renders a text field. The cursor is drawn in reverse video
// when focused; secret fields are masked.
func FieldText(f *nav.Field, focused, secret bool) string {
	runes := []rune(f.String())
	if secret {
		runes = []rune(strings.Repeat("*", len(runes)))
	}
	if !focused {
		return ui.Text(string(runes))
	}
	cur := min(f.Cursor(), len(runes))
	under := " "
	rest := ""
	if cur < len(runes) {
		under = string(runes[cur])
		rest = string(runes[cur+1:])
	}
	return ui.Text(string(runes[:cur])) + "[::r]" + ui.Text(under) + "[::-]" + ui.Text(rest)
}

package nav

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Binding describes one key and what it does in a given scope.
type Binding struct {
	Key         tcell.Key
	Rune        rune
	Mod         tcell.ModMask
	Label       string
	Description string
}

// Matches reports whether ev triggers the binding.
func (b Binding) Matches(ev *tcell.EventKey) bool {
	if b.Key != tcell.KeyRune {
		return ev.Key() == b.Key && (b.Mod == 0 || ev.Modifiers()&b.Mod != 0)
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == b.Rune
}

func runeKey(r rune, label, desc string) Binding {
	return Binding{Key: tcell.KeyRune, Rune: r, Label: label, Description: desc}
}

var (
	keyQuit     = Binding{Key: tcell.KeyCtrlQ, Label: "Ctrl+Q", Description: "Quit"}
	keySwitcher = Binding{Key: tcell.KeyCtrlK, Label: "Ctrl+K", Description: "Switch room"}
	keyRoomInfo = Binding{Key: tcell.KeyCtrlO, Label: "Ctrl+O", Description: "Room info"}
	keySettings = runeKey('s', "s", "Settings")
	keyCreate   = runeKey('n', "n", "New room")
	keyEdit     = runeKey('e', "e", "Edit room")
	keyHelp     = runeKey('?', "?", "Help")
	keyLogin    = runeKey('a', "a", "Add account")
	keyFavorite = runeKey('f', "f", "Toggle favorite")
	keyReply    = runeKey('r', "r", "Reply")
	keyReact    = runeKey('e', "e", "React")
)

// HelpSection groups bindings under a heading.
type HelpSection struct {
	Title    string
	Bindings []Binding
}

// Help lists the bindings shown in the help overlay.
var Help = []HelpSection{
	{Title: "Global", Bindings: []Binding{
		keyQuit, keySwitcher, keyRoomInfo, keySettings, keyCreate, keyEdit, keyHelp,
		{Key: tcell.KeyTab, Label: "Tab / Shift+Tab", Description: "Cycle panels"},
	}},
	{Title: "Rooms", Bindings: []Binding{
		{Key: tcell.KeyUp, Label: "Up / Down", Description: "Select room"},
		{Key: tcell.KeyUp, Mod: tcell.ModShift, Label: "Shift+Up / Shift+Down", Description: "Reorder favorite"},
		{Key: tcell.KeyEnter, Label: "Enter", Description: "Open room"},
		keyFavorite, keyLogin,
	}},
	{Title: "Chat", Bindings: []Binding{
		{Key: tcell.KeyUp, Label: "Up / Down", Description: "Select message, Up at the top loads older"},
		{Key: tcell.KeyHome, Label: "Home / End", Description: "First message / live view"},
		{Key: tcell.KeyEnter, Label: "Enter", Description: "Message actions"},
		keyReply, keyReact,
		{Key: tcell.KeyEscape, Label: "Esc", Description: "Clear selection"},
	}},
	{Title: "Input", Bindings: []Binding{
		{Key: tcell.KeyEnter, Label: "Enter", Description: "Send"},
		{Key: tcell.KeyEscape, Label: "Esc", Description: "Cancel reply"},
	}},
}

// HelpLines renders Help as plain text lines.
func HelpLines() []string {
	var lines []string
	for i, sec := range Help {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, sec.Title)
		for _, b := range sec.Bindings {
			lines = append(lines, fmt.Sprintf("  %-24s %s", b.Label, b.Description))
		}
	}
	return lines
}

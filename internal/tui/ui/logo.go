package ui

import "fmt"

// Logo is shown in the chat panel while no room is open.
func Logo(theme *Theme) string {
	title := Tag(theme.TitleColor)
	return fmt.Sprintf(
		"[%s::b]╔╦╗╔═╗╔╦╗╦═╗╦═╗ ╦[-:-:-]\n"+
			"[%s::b]║║║╠═╣ ║ ╠╦╝║╔╩╦╝[-:-:-]\n"+
			"[%s::b]╩ ╩╩ ╩ ╩ ╩╚═╩╩ ╚═[-:-:-]\n"+
			"[%s]terminal ui[-:-:-]",
		title, title, title, Tag(theme.MutedColor),
	)
}

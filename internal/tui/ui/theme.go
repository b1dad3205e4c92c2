package ui

import (
	"fmt"
	"slices"
	"sort"

	"github.com/gdamore/tcell/v2"
)

// DefaultThemeName is always present in ThemeNames.
const DefaultThemeName = "default"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	MutedColor       tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	CursorFg         tcell.Color
	CursorBg         tcell.Color
	CrumbActiveFg    tcell.Color
	CrumbActiveBg    tcell.Color
	CrumbInactiveFg  tcell.Color
	CrumbInactiveBg  tcell.Color
	MenuKeyColor     tcell.Color
	TitleColor       tcell.Color
	SenderColor      tcell.Color
	CounterColor     tcell.Color
	FlashInfoColor   tcell.Color
	FlashWarnColor   tcell.Color
	FlashErrColor    tcell.Color
}

var themes = map[string]*Theme{
	// k9s-inspired dark theme.
	DefaultThemeName: {
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		MutedColor:       tcell.ColorGray,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		CursorFg:         tcell.ColorBlack,
		CursorBg:         tcell.ColorAqua,
		CrumbActiveFg:    tcell.ColorBlack,
		CrumbActiveBg:    tcell.ColorOrange,
		CrumbInactiveFg:  tcell.ColorBlack,
		CrumbInactiveBg:  tcell.ColorAqua,
		MenuKeyColor:     tcell.ColorDodgerBlue,
		TitleColor:       tcell.ColorFuchsia,
		SenderColor:      tcell.ColorPapayaWhip,
		CounterColor:     tcell.ColorPapayaWhip,
		FlashInfoColor:   tcell.ColorNavajoWhite,
		FlashWarnColor:   tcell.ColorOrange,
		FlashErrColor:    tcell.ColorOrangeRed,
	},
	"light": {
		BgColor:          tcell.ColorWhite,
		FgColor:          tcell.ColorBlack,
		MutedColor:       tcell.ColorDarkGray,
		BorderColor:      tcell.ColorSteelBlue,
		BorderFocusColor: tcell.ColorNavy,
		CursorFg:         tcell.ColorWhite,
		CursorBg:         tcell.ColorSteelBlue,
		CrumbActiveFg:    tcell.ColorWhite,
		CrumbActiveBg:    tcell.ColorDarkOrange,
		CrumbInactiveFg:  tcell.ColorBlack,
		CrumbInactiveBg:  tcell.ColorLightSteelBlue,
		MenuKeyColor:     tcell.ColorNavy,
		TitleColor:       tcell.ColorPurple,
		SenderColor:      tcell.ColorDarkGreen,
		CounterColor:     tcell.ColorDarkRed,
		FlashInfoColor:   tcell.ColorNavy,
		FlashWarnColor:   tcell.ColorDarkOrange,
		FlashErrColor:    tcell.ColorRed,
	},
	"solarized": {
		BgColor:          tcell.NewHexColor(0x002b36),
		FgColor:          tcell.NewHexColor(0x839496),
		MutedColor:       tcell.NewHexColor(0x586e75),
		BorderColor:      tcell.NewHexColor(0x268bd2),
		BorderFocusColor: tcell.NewHexColor(0x2aa198),
		CursorFg:         tcell.NewHexColor(0x002b36),
		CursorBg:         tcell.NewHexColor(0x2aa198),
		CrumbActiveFg:    tcell.NewHexColor(0x002b36),
		CrumbActiveBg:    tcell.NewHexColor(0xb58900),
		CrumbInactiveFg:  tcell.NewHexColor(0x002b36),
		CrumbInactiveBg:  tcell.NewHexColor(0x93a1a1),
		MenuKeyColor:     tcell.NewHexColor(0x268bd2),
		TitleColor:       tcell.NewHexColor(0xd33682),
		SenderColor:      tcell.NewHexColor(0x859900),
		CounterColor:     tcell.NewHexColor(0xcb4b16),
		FlashInfoColor:   tcell.NewHexColor(0xeee8d5),
		FlashWarnColor:   tcell.NewHexColor(0xb58900),
		FlashErrColor:    tcell.NewHexColor(0xdc322f),
	},
}

// ThemeNames lists the available themes, default first.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		if name != DefaultThemeName {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return slices.Insert(names, 0, DefaultThemeName)
}

// LookupTheme returns the named theme, or the default one.
func LookupTheme(name string) *Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[DefaultThemeName]
}

// Tag returns a tview color tag name for c.
func Tag(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

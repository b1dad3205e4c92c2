package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// FlashBar displays the coordinator's status line.
type FlashBar struct {
	*tview.TextView
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar() *FlashBar {
	return &FlashBar{TextView: tview.NewTextView().SetDynamicColors(true)}
}

// Update renders text on the bar. The right column is drawn dimmed.
func (fb *FlashBar) Update(theme *Theme, level FlashLevel, text, right string) {
	fb.SetBackgroundColor(theme.BgColor)
	fb.Clear()

	color := theme.FlashInfoColor
	switch level {
	case FlashWarn:
		color = theme.FlashWarnColor
	case FlashErr:
		color = theme.FlashErrColor
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", Tag(color), Text(text))
	if right != "" {
		_, _ = fmt.Fprintf(fb, "  [%s]%s[-]", Tag(theme.MutedColor), Text(right))
	}
}

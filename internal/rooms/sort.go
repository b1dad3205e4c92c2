package rooms

import (
	"cmp"
	"slices"
	"time"

	"github.com/matheus3301/matrixtui/internal/chat"
)

// SortMode orders the non-favorite rooms.
type SortMode int

const (
	SortUnread SortMode = iota
	SortRecent
	SortAlpha
)

// SortModes lists the modes in menu order.
func SortModes() []SortMode { return []SortMode{SortUnread, SortRecent, SortAlpha} }

// ParseSortMode maps a config value to a mode. Unknown values are Unread.
func ParseSortMode(s string) SortMode {
	switch s {
	case "recent":
		return SortRecent
	case "alpha":
		return SortAlpha
	}
	return SortUnread
}

func (m SortMode) String() string {
	switch m {
	case SortRecent:
		return "recent"
	case SortAlpha:
		return "alpha"
	}
	return "unread"
}

// Label is the menu text.
func (m SortMode) Label() string {
	switch m {
	case SortRecent:
		return "Recent Activity"
	case SortAlpha:
		return "Alphabetical"
	}
	return "Unread First"
}

// byName breaks ties case-insensitively, then by id for a total order.
func byName(a, b chat.Room) int {
	if c := cmp.Compare(a.SortKey(), b.SortKey()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.AccountID, b.AccountID)
}

func sortRooms(rooms []chat.Room, mode SortMode, lastActivity func(string) time.Time) {
	switch mode {
	case SortUnread:
		slices.SortFunc(rooms, func(a, b chat.Room) int {
			if c := cmp.Compare(b.Unread, a.Unread); c != 0 {
				return c
			}
			return byName(a, b)
		})
	case SortRecent:
		slices.SortFunc(rooms, func(a, b chat.Room) int {
			if c := lastActivity(b.ID).Compare(lastActivity(a.ID)); c != 0 {
				return c
			}
			return byName(a, b)
		})
	default:
		slices.SortFunc(rooms, byName)
	}
}

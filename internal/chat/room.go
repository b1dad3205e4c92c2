package chat

import "strings"

// Room is one joined room as seen by one account.
type Room struct {
	ID        string
	AccountID string
	Name      string
	Topic     string
	IsDM      bool
	Unread    int
	Favorite  bool
}

// SortKey is the case-insensitive name used for ordering and tie breaks.
func (r Room) SortKey() string { return strings.ToLower(r.Name) }

// Label returns the name, or the id when the room has none.
func (r Room) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

package app

import (
	"slices"
	"time"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/rooms"
	"github.com/matheus3301/matrixtui/internal/status"
	"github.com/matheus3301/matrixtui/internal/verify"
)

// AccountView is one row of the account bar.
type AccountView struct {
	ID          string
	Homeserver  string
	DisplayName string
	State       status.State
	Reason      string
	Synced      bool
}

// VerificationView is the part of a verification session the overlay draws.
type VerificationView struct {
	Account string
	FlowID  string
	Peer    string
	State   verify.State
	Emojis  []backend.Emoji
	Reason  string
	Busy    bool
}

// Snapshot is a copy of everything the renderer draws. It shares no memory
// with the loop state, so it can be handed to another goroutine.
type Snapshot struct {
	Accounts []AccountView
	Failures map[string]string

	Rooms          []chat.Room
	FavoritesCount int
	SelectedRoom   int
	ActiveRoom     chat.Room

	Load            rooms.LoadState
	Messages        []chat.Message
	SelectedMessage int
	FirstUnread     int
	Scroll          int
	Typing          []string

	Nav          nav.View
	Verification *VerificationView

	Status  string
	Theme   string
	Sort    rooms.SortMode
	Pending int
	Now     time.Time
}

// Snapshot copies the state for rendering.
func (c *Coordinator) Snapshot() Snapshot {
	st := c.state
	snap := Snapshot{
		Rooms:           slices.Clone(st.Rooms.Rooms()),
		FavoritesCount:  st.Rooms.FavoritesCount(),
		SelectedRoom:    st.Rooms.Selected(),
		Load:            st.Rooms.LoadState(),
		Messages:        chat.CloneAll(st.Rooms.Displayed()),
		SelectedMessage: st.Rooms.SelectedMessage(),
		FirstUnread:     st.Rooms.FirstUnread(),
		Scroll:          st.Rooms.Scroll(),
		Typing:          slices.Clone(st.Rooms.Typing()),
		Nav:             st.Nav.View(c.env()),
		Status:          st.Status,
		Theme:           st.Theme,
		Sort:            st.Sort,
		Pending:         st.Echoes.Pending(),
		Now:             st.Now,
	}
	for _, a := range st.Accounts.Accounts() {
		snap.Accounts = append(snap.Accounts, AccountView{
			ID:          a.ID,
			Homeserver:  a.Homeserver,
			DisplayName: a.DisplayName,
			State:       a.State(),
			Reason:      a.Status.Reason(),
			Synced:      a.Synced(),
		})
	}
	if failures := st.Accounts.Failures(); len(failures) > 0 {
		snap.Failures = make(map[string]string, len(failures))
		for id, err := range failures {
			snap.Failures[id] = backend.Message(err)
		}
	}
	if roomID, _ := st.Rooms.Active(); roomID != "" {
		snap.ActiveRoom, _ = st.Rooms.Room(roomID)
	}
	if s := st.Verification; s != nil {
		snap.Verification = &VerificationView{
			Account: s.Account,
			FlowID:  s.FlowID,
			Peer:    s.PeerUserID,
			State:   s.State,
			Emojis:  slices.Clone(s.Emojis),
			Reason:  s.Reason,
			Busy:    s.Busy(),
		}
	}
	return snap
}

package matrix

import (
	"slices"
	"strings"
	"sync"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matheus3301/matrixtui/internal/chat"
)

type roomInfo struct {
	name    string
	topic   string
	alias   string
	heroes  []string
	members int
	unread  int
	crypto  bool
}

// roomTracker keeps the joined room list current from sync responses so
// listing rooms needs no extra requests.
type roomTracker struct {
	mu      sync.RWMutex
	account string
	rooms   map[id.RoomID]*roomInfo
	direct  map[id.RoomID]bool
	synced  bool
}

func newRoomTracker(account string) *roomTracker {
	return &roomTracker{
		account: account,
		rooms:   make(map[id.RoomID]*roomInfo),
		direct:  make(map[id.RoomID]bool),
	}
}

// apply folds a sync response in. It reports whether anything shown in
// the room list changed.
func (t *roomTracker) apply(resp *mautrix.RespSync) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := !t.synced
	t.synced = true

	for _, evt := range resp.AccountData.Events {
		if evt.Type.Type != event.AccountDataDirectChats.Type {
			continue
		}
		evt.Type.Class = event.AccountDataEventType
		ensureParsed(evt)
		if dc, ok := evt.Content.Parsed.(*event.DirectChatsEventContent); ok {
			t.direct = make(map[id.RoomID]bool)
			for _, rooms := range *dc {
				for _, r := range rooms {
					t.direct[r] = true
				}
			}
			changed = true
		}
	}

	for roomID, joined := range resp.Rooms.Join {
		info, ok := t.rooms[roomID]
		if !ok {
			info = &roomInfo{}
			t.rooms[roomID] = info
			changed = true
		}
		if len(joined.Summary.Heroes) > 0 {
			info.heroes = info.heroes[:0]
			for _, h := range joined.Summary.Heroes {
				info.heroes = append(info.heroes, h.String())
			}
		}
		if n := joined.Summary.JoinedMemberCount; n != nil {
			info.members = *n
		}
		if u := joined.UnreadNotifications; u != nil && u.NotificationCount != info.unread {
			info.unread = u.NotificationCount
			changed = true
		}
		for _, evt := range joined.State.Events {
			changed = info.applyState(evt) || changed
		}
		for _, evt := range joined.Timeline.Events {
			if evt.StateKey != nil {
				changed = info.applyState(evt) || changed
			}
		}
	}
	for roomID := range resp.Rooms.Leave {
		if _, ok := t.rooms[roomID]; ok {
			delete(t.rooms, roomID)
			changed = true
		}
	}
	return changed
}

func (info *roomInfo) applyState(evt *event.Event) bool {
	ensureParsed(evt)
	switch c := evt.Content.Parsed.(type) {
	case *event.RoomNameEventContent:
		if c.Name != info.name {
			info.name = c.Name
			return true
		}
	case *event.TopicEventContent:
		if c.Topic != info.topic {
			info.topic = c.Topic
			return true
		}
	case *event.CanonicalAliasEventContent:
		info.alias = string(c.Alias)
	case *event.EncryptionEventContent:
		info.crypto = true
	}
	return false
}

// forget drops a room after leaving it.
func (t *roomTracker) forget(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, id.RoomID(roomID))
}

// list returns the joined rooms. It reports false before the first sync.
func (t *roomTracker) list() ([]chat.Room, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.synced {
		return nil, false
	}
	out := make([]chat.Room, 0, len(t.rooms))
	for roomID, info := range t.rooms {
		out = append(out, chat.Room{
			ID:        roomID.String(),
			AccountID: t.account,
			Name:      info.displayName(t.account),
			Topic:     info.topic,
			IsDM:      t.direct[roomID],
			Unread:    info.unread,
		})
	}
	slices.SortFunc(out, func(a, b chat.Room) int { return strings.Compare(a.ID, b.ID) })
	return out, true
}

func (t *roomTracker) info(roomID string) (roomInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.rooms[id.RoomID(roomID)]
	if !ok {
		return roomInfo{}, false
	}
	return *info, true
}

// displayName follows the room naming order: explicit name, canonical
// alias, then the other members.
func (info *roomInfo) displayName(self string) string {
	switch {
	case info.name != "":
		return info.name
	case info.alias != "":
		return info.alias
	}
	others := slices.DeleteFunc(slices.Clone(info.heroes), func(h string) bool { return h == self })
	return strings.Join(others, ", ")
}

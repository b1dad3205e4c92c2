// Package rooms holds the room list and the per-room message caches.
package rooms

import (
	"errors"
	"slices"
	"time"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
)

// LoadState describes what the chat panel shows for the active room.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadLoaded
	LoadFromCache
	LoadFromArchive
	LoadWaitingForSync
	LoadEmpty
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	case LoadFromCache:
		return "cached"
	case LoadFromArchive:
		return "archived"
	case LoadWaitingForSync:
		return "waiting for sync"
	case LoadEmpty:
		return "no messages"
	case LoadFailed:
		return "failed"
	}
	return "idle"
}

var (
	// ErrNoMoreMessages is returned once a room's history is exhausted.
	ErrNoMoreMessages = errors.New("No more messages")
	// ErrLoadInFlight is returned while an older page is being fetched.
	ErrLoadInFlight = errors.New("Already loading older messages")
)

type pageState struct {
	token     string
	exhausted bool
	loading   bool
}

// Cache is the room list plus message history. Like the registry it is
// owned by the coordinator loop and has no locking.
type Cache struct {
	rooms     []chat.Room
	favorites int
	selected  int

	active        string
	activeAccount string
	openSeq       int
	load          LoadState
	displayed     []chat.Message
	selectedMsg   int
	scroll        int
	firstUnread   int

	byRoom  map[string][]chat.Message
	pages   map[string]*pageState
	typing  map[string][]string
	removed map[string]struct{}
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		selectedMsg: -1,
		firstUnread: -1,
		byRoom:      make(map[string][]chat.Message),
		pages:       make(map[string]*pageState),
		typing:      make(map[string][]string),
		removed:     make(map[string]struct{}),
	}
}

// Refresh rebuilds the room list: favorites first in configured order,
// then the rest sorted by mode. The selection follows the previously
// selected room when it is still present.
func (c *Cache) Refresh(all []chat.Room, favorites []string, mode SortMode) []chat.Room {
	prev, hadPrev := c.SelectedRoom()
	old := c.selected

	pinned := make(map[string]int, len(favorites))
	for i, id := range favorites {
		if _, dup := pinned[id]; !dup {
			pinned[id] = i
		}
	}

	var favs, rest []chat.Room
	for _, r := range all {
		if _, gone := c.removed[r.ID]; gone {
			continue
		}
		_, r.Favorite = pinned[r.ID]
		if r.Favorite {
			favs = append(favs, r)
		} else {
			rest = append(rest, r)
		}
	}
	slices.SortStableFunc(favs, func(a, b chat.Room) int { return pinned[a.ID] - pinned[b.ID] })
	sortRooms(rest, mode, c.LastActivity)

	c.rooms = append(favs, rest...)
	c.favorites = len(favs)

	c.selected = -1
	if hadPrev {
		c.selected = slices.IndexFunc(c.rooms, func(r chat.Room) bool {
			return r.ID == prev.ID && r.AccountID == prev.AccountID
		})
	}
	if c.selected < 0 {
		c.selected = max(min(old, len(c.rooms)-1), 0)
	}
	return c.rooms
}

// Rooms returns the current ordered room list.
func (c *Cache) Rooms() []chat.Room { return c.rooms }

// FavoritesCount is the length of the favorite block at the top.
func (c *Cache) FavoritesCount() int { return c.favorites }

// Selected returns the selected room index.
func (c *Cache) Selected() int { return c.selected }

// SelectedRoom returns the room under the cursor.
func (c *Cache) SelectedRoom() (chat.Room, bool) {
	if c.selected < 0 || c.selected >= len(c.rooms) {
		return chat.Room{}, false
	}
	return c.rooms[c.selected], true
}

// MoveSelection moves the room cursor by delta, clamped to the list.
func (c *Cache) MoveSelection(delta int) {
	if len(c.rooms) == 0 {
		c.selected = 0
		return
	}
	c.selected = min(max(c.selected+delta, 0), len(c.rooms)-1)
}

// SelectRoom moves the cursor onto roomID.
func (c *Cache) SelectRoom(roomID string) bool {
	i := slices.IndexFunc(c.rooms, func(r chat.Room) bool { return r.ID == roomID })
	if i < 0 {
		return false
	}
	c.selected = i
	return true
}

// Room finds a room by id.
func (c *Cache) Room(roomID string) (chat.Room, bool) {
	i := slices.IndexFunc(c.rooms, func(r chat.Room) bool { return r.ID == roomID })
	if i < 0 {
		return chat.Room{}, false
	}
	return c.rooms[i], true
}

// LastActivity is the timestamp of the newest known message in a room.
func (c *Cache) LastActivity(roomID string) time.Time {
	var last time.Time
	scan := func(msgs []chat.Message) {
		if n := len(msgs); n > 0 && msgs[n-1].Timestamp.After(last) {
			last = msgs[n-1].Timestamp
		}
	}
	scan(c.byRoom[roomID])
	if roomID == c.active {
		scan(c.displayed)
	}
	return last
}

// Active returns the open room id and its account.
func (c *Cache) Active() (roomID, accountID string) { return c.active, c.activeAccount }

// OpenSeq identifies the current Open call.
func (c *Cache) OpenSeq() int { return c.openSeq }

// LoadState returns the chat panel state.
func (c *Cache) LoadState() LoadState { return c.load }

// Displayed returns the messages of the active room.
func (c *Cache) Displayed() []chat.Message { return c.displayed }

// FirstUnread is the index of the first unread message, or -1.
func (c *Cache) FirstUnread() int { return c.firstUnread }

// Scroll is the index of the first visible message.
func (c *Cache) Scroll() int { return c.scroll }

// SetScroll stores the renderer's viewport position.
func (c *Cache) SetScroll(top int) { c.scroll = max(top, 0) }

// Open switches the active room. The displayed list of the previous room
// is flushed into its cache. It returns the sequence number the initial
// load result must carry.
func (c *Cache) Open(room chat.Room) int {
	c.flush()
	c.openSeq++
	c.active = room.ID
	c.activeAccount = room.AccountID
	c.displayed = nil
	c.selectedMsg = -1
	c.scroll = 0
	c.firstUnread = -1
	c.load = LoadLoading
	c.pages[room.ID] = &pageState{}
	return c.openSeq
}

func (c *Cache) flush() {
	if c.active != "" && len(c.displayed) > 0 {
		c.byRoom[c.active] = c.displayed
	}
}

// Close clears the active room.
func (c *Cache) Close() {
	c.flush()
	c.active, c.activeAccount = "", ""
	c.displayed = nil
	c.selectedMsg, c.scroll, c.firstUnread = -1, 0, -1
	c.load = LoadIdle
}

// InitialLoad is the result of the history fetch issued by Open.
type InitialLoad struct {
	Page     backend.HistoryPage
	Archived []chat.Message
	Err      error
	Synced   bool
	Unread   int
}

// ApplyInitial installs the first page for the room opened with seq.
// Results for an older Open are ignored and reported with ok=false.
func (c *Cache) ApplyInitial(seq int, res InitialLoad) (state LoadState, ok bool) {
	if seq != c.openSeq || c.active == "" {
		return c.load, false
	}
	live := c.displayed
	p := c.pages[c.active]

	switch {
	case len(res.Page.Messages) > 0:
		c.displayed = mergeLive(res.Page.Messages, live)
		c.load = LoadLoaded
	case len(c.byRoom[c.active]) > 0:
		// Append already recorded everything in live into byRoom.
		c.displayed = chat.CloneAll(c.byRoom[c.active])
		c.load = LoadFromCache
	case len(res.Archived) > 0:
		c.displayed = mergeLive(res.Archived, live)
		c.load = LoadFromArchive
	case len(live) > 0:
		c.load = LoadLoaded
	case res.Err != nil:
		c.load = LoadFailed
	case !res.Synced:
		c.load = LoadWaitingForSync
	default:
		c.load = LoadEmpty
	}
	if res.Err == nil {
		p.token = res.Page.Next
		p.exhausted = res.Page.Next == ""
	}

	chat.ResolveReplies(c.displayed)
	c.firstUnread = -1
	if n := len(c.displayed); res.Unread > 0 && res.Unread <= n {
		c.firstUnread = n - res.Unread
	}
	return c.load, true
}

// mergeLive appends messages that arrived while a page was loading and
// are not part of it. Messages match by event id or transaction id.
func mergeLive(base, live []chat.Message) []chat.Message {
	if len(live) == 0 {
		return base
	}
	seen := make(map[string]struct{}, 2*len(base))
	for _, m := range base {
		for _, k := range mergeKeys(m) {
			seen[k] = struct{}{}
		}
	}
	isSeen := func(k string) bool {
		_, dup := seen[k]
		return dup
	}
	for _, m := range live {
		if slices.ContainsFunc(mergeKeys(m), isSeen) {
			continue
		}
		base = append(base, m)
	}
	return base
}

func mergeKeys(m chat.Message) []string {
	var keys []string
	if m.EventID != "" {
		keys = append(keys, m.EventID)
	}
	if m.TxnID != "" {
		keys = append(keys, "txn:"+m.TxnID)
	}
	return keys
}

// BeginLoadOlder reserves the stored token of the active room.
func (c *Cache) BeginLoadOlder() (roomID, token string, err error) {
	if c.active == "" {
		return "", "", &backend.NotFoundError{Kind: "room", ID: "active"}
	}
	p := c.pages[c.active]
	switch {
	case p == nil || p.exhausted || p.token == "":
		return "", "", ErrNoMoreMessages
	case p.loading:
		return "", "", ErrLoadInFlight
	}
	p.loading = true
	return c.active, p.token, nil
}

// ApplyOlder prepends a page fetched with token from. It returns how many
// messages were added. A result whose token was already consumed is
// dropped, and an empty page exhausts the room.
func (c *Cache) ApplyOlder(roomID, from string, page backend.HistoryPage, err error) (int, error) {
	p := c.pages[roomID]
	if p == nil || p.token != from || p.exhausted {
		return 0, nil
	}
	p.loading = false
	if err != nil {
		return 0, err
	}
	if roomID != c.active {
		return 0, nil
	}
	if len(page.Messages) == 0 {
		p.token, p.exhausted = "", true
		return 0, ErrNoMoreMessages
	}

	seen := make(map[string]struct{}, len(c.displayed))
	for _, m := range c.displayed {
		if m.EventID != "" {
			seen[m.EventID] = struct{}{}
		}
	}
	older := make([]chat.Message, 0, len(page.Messages))
	for _, m := range page.Messages {
		if _, dup := seen[m.EventID]; m.EventID != "" && dup {
			continue
		}
		older = append(older, m)
	}

	n := len(older)
	c.displayed = append(older, c.displayed...)
	if c.selectedMsg >= 0 {
		c.selectedMsg += n
	}
	if c.firstUnread >= 0 {
		c.firstUnread += n
	}
	c.scroll += n
	p.token = page.Next
	p.exhausted = page.Next == ""
	chat.ResolveReplies(c.displayed)
	return n, nil
}

// Exhausted reports whether roomID has no older pages.
func (c *Cache) Exhausted(roomID string) bool {
	p := c.pages[roomID]
	return p == nil || p.exhausted || p.token == ""
}

// SelectedMessage returns the selected message index, or -1.
func (c *Cache) SelectedMessage() int { return c.selectedMsg }

// Message returns the selected message.
func (c *Cache) Message() (*chat.Message, bool) {
	if c.selectedMsg < 0 || c.selectedMsg >= len(c.displayed) {
		return nil, false
	}
	return &c.displayed[c.selectedMsg], true
}

// SelectPrev moves the message cursor up. With no selection it selects the
// newest message. It reports true when the cursor is already at the top,
// meaning older history should be requested.
func (c *Cache) SelectPrev() (atTop bool) {
	switch {
	case len(c.displayed) == 0:
		return false
	case c.selectedMsg < 0:
		c.selectedMsg = len(c.displayed) - 1
	case c.selectedMsg == 0:
		return true
	default:
		c.selectedMsg--
	}
	return false
}

// SelectNext moves the message cursor down; past the newest message the
// selection is cleared.
func (c *Cache) SelectNext() {
	switch {
	case c.selectedMsg < 0:
	case c.selectedMsg >= len(c.displayed)-1:
		c.selectedMsg = -1
	default:
		c.selectedMsg++
	}
}

// SelectFirst jumps to the oldest loaded message.
func (c *Cache) SelectFirst() {
	if len(c.displayed) > 0 {
		c.selectedMsg = 0
		c.scroll = 0
	}
}

// SelectLast jumps to the newest message.
func (c *Cache) SelectLast() {
	if len(c.displayed) > 0 {
		c.selectedMsg = len(c.displayed) - 1
	}
}

// ClearSelection drops the message cursor and reports whether one was set.
func (c *Cache) ClearSelection() bool {
	had := c.selectedMsg >= 0
	c.selectedMsg = -1
	return had
}

// Append adds msg to the room cache, and to the displayed list when the
// room is active.
func (c *Cache) Append(roomID string, msg chat.Message) {
	if c.Removed(roomID) {
		return
	}
	msg.RoomID = roomID
	c.byRoom[roomID] = append(c.byRoom[roomID], msg.Clone())
	if roomID == c.active {
		c.displayed = append(c.displayed, msg)
		if c.load != LoadLoading {
			c.load = LoadLoaded
		}
	}
}

// Lookup finds a message by event id, displayed list first, then cache.
func (c *Cache) Lookup(roomID, eventID string) (*chat.Message, bool) {
	if eventID == "" {
		return nil, false
	}
	if roomID == c.active {
		if i := slices.IndexFunc(c.displayed, func(m chat.Message) bool { return m.EventID == eventID }); i >= 0 {
			return &c.displayed[i], true
		}
	}
	msgs := c.byRoom[roomID]
	if i := slices.IndexFunc(msgs, func(m chat.Message) bool { return m.EventID == eventID }); i >= 0 {
		return &msgs[i], true
	}
	return nil, false
}

// Update applies fn to the first message matching in the displayed list
// and in the cache. It returns how many copies were changed.
func (c *Cache) Update(roomID string, match func(*chat.Message) bool, fn func(*chat.Message)) int {
	n := 0
	apply := func(msgs []chat.Message) {
		for i := range msgs {
			if match(&msgs[i]) {
				fn(&msgs[i])
				n++
				return
			}
		}
	}
	if roomID == c.active {
		apply(c.displayed)
	}
	apply(c.byRoom[roomID])
	return n
}

// Delete removes the first matching message from both lists.
func (c *Cache) Delete(roomID string, match func(*chat.Message) bool) int {
	n := 0
	del := func(msgs []chat.Message) []chat.Message {
		i := slices.IndexFunc(msgs, func(m chat.Message) bool { return match(&m) })
		if i < 0 {
			return msgs
		}
		n++
		return slices.Delete(msgs, i, i+1)
	}
	if roomID == c.active {
		c.displayed = del(c.displayed)
		if c.selectedMsg >= len(c.displayed) {
			c.selectedMsg = len(c.displayed) - 1
		}
	}
	c.byRoom[roomID] = del(c.byRoom[roomID])
	return n
}

// Cached returns the cache of a room.
func (c *Cache) Cached(roomID string) []chat.Message { return c.byRoom[roomID] }

// MarkRead zeroes the unread counter of a room.
func (c *Cache) MarkRead(roomID string) {
	for i := range c.rooms {
		if c.rooms[i].ID == roomID {
			c.rooms[i].Unread = 0
		}
	}
}

// SetTyping records who is typing in a room.
func (c *Cache) SetTyping(roomID string, users []string) {
	if len(users) == 0 {
		delete(c.typing, roomID)
		return
	}
	c.typing[roomID] = users
}

// Typing returns who is typing in the active room.
func (c *Cache) Typing() []string { return c.typing[c.active] }

// Remove forgets a room entirely. Later refreshes never bring it back.
// It reports whether the room was active.
func (c *Cache) Remove(roomID string) bool {
	c.removed[roomID] = struct{}{}
	delete(c.byRoom, roomID)
	delete(c.pages, roomID)
	delete(c.typing, roomID)
	c.dropRooms(func(r chat.Room) bool { return r.ID == roomID })
	if c.active != roomID {
		return false
	}
	c.displayed = nil
	c.Close()
	return true
}

// Removed reports whether roomID was deleted or left.
func (c *Cache) Removed(roomID string) bool {
	_, gone := c.removed[roomID]
	return gone
}

// Restore lets a removed room appear again, for example after a rejoin.
func (c *Cache) Restore(roomID string) { delete(c.removed, roomID) }

// RemoveAccount drops the rooms of an account and closes its active room.
func (c *Cache) RemoveAccount(accountID string) bool {
	c.dropRooms(func(r chat.Room) bool { return r.AccountID == accountID })
	if c.activeAccount != accountID {
		return false
	}
	c.Close()
	return true
}

func (c *Cache) dropRooms(match func(chat.Room) bool) {
	prev, _ := c.SelectedRoom()
	before := len(c.rooms)
	kept := c.rooms[:0]
	favs := 0
	for i, r := range c.rooms {
		if match(r) {
			continue
		}
		if i < c.favorites {
			favs++
		}
		kept = append(kept, r)
	}
	c.rooms = kept
	c.favorites = favs
	if len(c.rooms) == before {
		return
	}
	if i := slices.IndexFunc(c.rooms, func(r chat.Room) bool { return r.ID == prev.ID && r.AccountID == prev.AccountID }); i >= 0 {
		c.selected = i
	} else {
		c.selected = max(min(c.selected, len(c.rooms)-1), 0)
	}
}

// ClearCache drops every cached history except the active room's.
func (c *Cache) ClearCache() {
	for id := range c.byRoom {
		if id != c.active {
			delete(c.byRoom, id)
		}
	}
	for id := range c.pages {
		if id != c.active {
			delete(c.pages, id)
		}
	}
}

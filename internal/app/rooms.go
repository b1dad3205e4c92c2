package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/config"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/outbox"
	"github.com/matheus3301/matrixtui/internal/rooms"
)

// refreshRooms fetches the room lists of every account. A request made
// while one is in flight is folded into a single follow-up fetch.
func (c *Coordinator) refreshRooms() {
	if c.refreshing {
		c.refreshAgain = true
		return
	}
	accs := c.state.Accounts.Accounts()
	if len(accs) == 0 {
		c.relist()
		return
	}
	clients := make([]backend.Client, len(accs))
	for i, a := range accs {
		clients[i] = a.Client
	}
	c.refreshing = true
	c.spawn(func(ctx context.Context) Event {
		lists := make([][]chat.Room, len(clients))
		errs := make([]error, len(clients))
		var eg errgroup.Group
		for i, cl := range clients {
			eg.Go(func() error {
				lists[i], errs[i] = cl.Rooms(ctx)
				return nil
			})
		}
		_ = eg.Wait()

		res := RoomsLoaded{Failures: make(map[string]error)}
		for i, cl := range clients {
			if errs[i] != nil {
				res.Failures[cl.UserID()] = backend.Wrap("list rooms", errs[i])
				continue
			}
			for _, r := range lists[i] {
				r.AccountID = cl.UserID()
				res.Rooms = append(res.Rooms, r)
			}
		}
		return res
	})
}

func (c *Coordinator) roomsLoaded(ev RoomsLoaded) {
	st := c.state
	c.refreshing = false

	var all []chat.Room
	for _, r := range ev.Rooms {
		if st.Accounts.IsLocal(r.AccountID) {
			all = append(all, r)
		}
	}
	for id, err := range ev.Failures {
		c.logger.Warn("room list failed", zap.String("account", id), zap.Error(err))
		for _, r := range st.all {
			if r.AccountID == id {
				all = append(all, r)
			}
		}
	}
	st.all = all
	c.relist()
	c.bus.Emit(bus.KindRoomsUpdated, slices.Clone(all))

	if c.refreshAgain {
		c.refreshAgain = false
		c.refreshRooms()
	}
}

// relist re-sorts the known rooms without asking the server.
func (c *Coordinator) relist() {
	st := c.state
	st.Rooms.Refresh(st.all, c.config.Config().Favorites, st.Sort)
	labels := make([]string, 0, len(st.Rooms.Rooms()))
	for _, r := range st.Rooms.Rooms() {
		labels = append(labels, r.Label())
	}
	st.Nav.Refilter(labels)
}

func (c *Coordinator) openRoomAt(i int) {
	list := c.state.Rooms.Rooms()
	if i < 0 || i >= len(list) {
		return
	}
	c.openRoom(list[i])
}

// openRoom makes room active and starts loading its first page.
func (c *Coordinator) openRoom(room chat.Room) {
	st := c.state
	a, err := c.account(room.AccountID)
	if err != nil {
		c.fail(Task{Op: "open room", Account: room.AccountID, Room: room.ID}, err)
		return
	}
	st.Rooms.SelectRoom(room.ID)
	seq := st.Rooms.Open(room)
	st.Rooms.MarkRead(room.ID)
	st.Nav.Focus = nav.FocusChat
	st.Nav.Composer.ReplyTo = nil

	client, archive, unread := a.Client, c.archive, room.Unread
	c.spawn(func(ctx context.Context) Event {
		page, err := client.FetchHistory(ctx, room.ID, "", HistoryPageSize)
		ev := HistoryLoaded{Seq: seq, RoomID: room.ID, Page: page, Unread: unread, Err: backend.Wrap("fetch history", err)}
		if len(page.Messages) == 0 && archive != nil {
			if msgs, err := archive.RecentMessages(ctx, room.ID, HistoryPageSize); err == nil {
				ev.Archived = msgs
			}
		}
		return ev
	})
}

func (c *Coordinator) historyLoaded(ev HistoryLoaded) {
	st := c.state
	roomID, accountID := st.Rooms.Active()
	synced := false
	if a, ok := st.Accounts.Get(accountID); ok {
		synced = a.Synced()
	}
	load, ok := st.Rooms.ApplyInitial(ev.Seq, rooms.InitialLoad{
		Page:     ev.Page,
		Archived: ev.Archived,
		Err:      ev.Err,
		Synced:   synced,
		Unread:   ev.Unread,
	})
	if !ok {
		return
	}
	if ev.Err != nil {
		c.logger.Warn("initial history failed", zap.String("room", ev.RoomID), zap.Error(ev.Err))
		st.Status = "Failed to load messages: " + backend.Message(ev.Err)
	}
	if len(ev.Page.Messages) > 0 {
		c.bus.Emit(bus.KindHistoryLoaded, chat.CloneAll(ev.Page.Messages))
	}
	c.logger.Debug("room opened", zap.String("room", roomID), zap.Stringer("state", load))
	c.markRead(roomID, accountID)
}

// markRead sends a receipt for the newest confirmed message.
func (c *Coordinator) markRead(roomID, accountID string) {
	a, ok := c.state.Accounts.Get(accountID)
	if !ok {
		return
	}
	msgs := c.state.Rooms.Displayed()
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].Provisional() {
			c.notify(outbox.Job{
				Kind:   outbox.KindReadReceipt,
				Client: a.Client,
				RoomID: roomID,
				Target: msgs[i].EventID,
			})
			return
		}
	}
}

// loadOlder requests the page before the oldest loaded message.
func (c *Coordinator) loadOlder() {
	st := c.state
	roomID, token, err := st.Rooms.BeginLoadOlder()
	switch {
	case errors.Is(err, rooms.ErrNoMoreMessages):
		st.Status = err.Error()
		return
	case err != nil:
		return
	}
	_, accountID := st.Rooms.Active()
	a, err := c.account(accountID)
	if err != nil {
		_, _ = st.Rooms.ApplyOlder(roomID, token, backend.HistoryPage{}, err)
		return
	}
	client := a.Client
	st.Status = "Loading older messages..."
	c.spawn(func(ctx context.Context) Event {
		page, err := client.FetchHistory(ctx, roomID, token, HistoryPageSize)
		return OlderLoaded{RoomID: roomID, From: token, Page: page, Err: backend.Wrap("fetch history", err)}
	})
}

func (c *Coordinator) olderLoaded(ev OlderLoaded) {
	st := c.state
	n, err := st.Rooms.ApplyOlder(ev.RoomID, ev.From, ev.Page, ev.Err)
	switch {
	case errors.Is(err, rooms.ErrNoMoreMessages):
		st.Status = err.Error()
	case err != nil:
		c.logger.Warn("older history failed", zap.String("room", ev.RoomID), zap.Error(err))
		st.Status = "Failed to load older messages: " + backend.Message(err)
	case n > 0:
		st.Status = fmt.Sprintf("Loaded %d older messages", n)
		c.bus.Emit(bus.KindHistoryLoaded, chat.CloneAll(ev.Page.Messages))
	}
}

func (c *Coordinator) toggleFavorite() {
	r, ok := c.state.Rooms.SelectedRoom()
	if !ok {
		return
	}
	var pinned bool
	c.config.Update(func(cfg *config.Config) { pinned = cfg.ToggleFavorite(r.ID) })
	c.relist()
	c.state.Rooms.SelectRoom(r.ID)
	if pinned {
		c.state.Status = "Added " + r.Label() + " to favorites"
	} else {
		c.state.Status = "Removed " + r.Label() + " from favorites"
	}
}

func (c *Coordinator) moveFavorite(delta int) {
	r, ok := c.state.Rooms.SelectedRoom()
	if !ok || !r.Favorite {
		return
	}
	var moved bool
	c.config.Update(func(cfg *config.Config) { moved = cfg.MoveFavorite(r.ID, delta) })
	if moved {
		c.relist()
		c.state.Rooms.SelectRoom(r.ID)
	}
}

func (c *Coordinator) setSort(i int) {
	modes := rooms.SortModes()
	if i < 0 || i >= len(modes) {
		return
	}
	c.state.Sort = modes[i]
	c.config.Update(func(cfg *config.Config) { cfg.RoomSort = modes[i].String() })
	c.relist()
	c.state.Status = "Sorting rooms by " + modes[i].Label()
}

func (c *Coordinator) setTheme(name string) {
	if !slices.Contains(c.state.Themes, name) {
		return
	}
	c.state.Theme = name
	c.config.Update(func(cfg *config.Config) { cfg.Theme = name })
}

func (c *Coordinator) clearCache() {
	c.state.Rooms.ClearCache()
	c.bus.Emit(bus.KindCacheCleared, nil)
	c.state.Status = "Cache cleared"
}

func (c *Coordinator) openRoomEditor() {
	st := c.state
	roomID, accountID := st.Rooms.Active()
	r, ok := st.Rooms.Room(roomID)
	if !ok {
		return
	}
	st.Nav.OpenEditor(roomID, accountID, r.Name, r.Topic)
}

func (c *Coordinator) createRoom(cmd nav.CreateRoom) {
	t := Task{Op: "create room", Account: cmd.AccountID, Gen: cmd.Gen}
	a, err := c.account(cmd.AccountID)
	if err != nil {
		c.fail(t, err)
		return
	}
	client, req := a.Client, cmd.Request
	c.spawn(func(ctx context.Context) Event {
		id, err := client.CreateRoom(ctx, req)
		return RoomCreated{Task: t, RoomID: id, Err: backend.Wrap(t.Op, err)}
	})
}

func (c *Coordinator) roomCreated(ev RoomCreated) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	c.logger.Info("room created", zap.String("account", ev.Account), zap.String("room", ev.RoomID))
	c.state.Rooms.Restore(ev.RoomID)
	c.state.Nav.CloseIf(ev.Gen)
	c.state.Status = "Room created"
	c.refreshRooms()
}

func (c *Coordinator) editRoom(cmd nav.EditRoom) {
	t := Task{Op: "edit room", Account: cmd.AccountID, Room: cmd.RoomID, Gen: cmd.Gen}
	a, err := c.account(cmd.AccountID)
	if err != nil {
		c.fail(t, err)
		return
	}
	client := a.Client
	c.spawn(func(ctx context.Context) Event {
		var err error
		switch cmd.Field {
		case nav.EditorName:
			err = client.SetRoomName(ctx, cmd.RoomID, cmd.Value)
		case nav.EditorTopic:
			err = client.SetRoomTopic(ctx, cmd.RoomID, cmd.Value)
		default:
			err = client.Invite(ctx, cmd.RoomID, cmd.Value)
		}
		return RoomEdited{Task: t, Field: cmd.Field, Value: cmd.Value, Err: backend.Wrap(t.Op, err)}
	})
}

func (c *Coordinator) roomEdited(ev RoomEdited) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	st := c.state
	for i := range st.all {
		if st.all[i].ID != ev.Room {
			continue
		}
		switch ev.Field {
		case nav.EditorName:
			st.all[i].Name = ev.Value
		case nav.EditorTopic:
			st.all[i].Topic = ev.Value
		}
	}
	c.done(ev.Task)
	switch ev.Field {
	case nav.EditorInvite:
		if ed := st.Nav.Editor(); ed != nil && st.Nav.Form(ev.Gen) != nil {
			ed.Invite.Clear()
		}
		st.Status = "Invited " + ev.Value
	default:
		c.relist()
		st.Status = "Room updated"
	}
}

// leaveRoom leaves a room; with forget set the room is also forgotten and
// removed from the cache for good.
func (c *Coordinator) leaveRoom(gen uint64, roomID, accountID string, forget bool) {
	t := Task{Op: "leave room", Account: accountID, Room: roomID, Gen: gen}
	if forget {
		t.Op = "delete room"
	}
	a, err := c.account(accountID)
	if err != nil {
		c.fail(t, err)
		return
	}
	client := a.Client
	c.spawn(func(ctx context.Context) Event {
		err := client.LeaveRoom(ctx, roomID)
		if err == nil && forget {
			err = client.ForgetRoom(ctx, roomID)
		}
		return RoomLeft{Task: t, Deleted: forget, Err: backend.Wrap(t.Op, err)}
	})
}

func (c *Coordinator) roomLeft(ev RoomLeft) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	st := c.state
	active, _ := st.Rooms.Active()
	st.all = slices.DeleteFunc(st.all, func(r chat.Room) bool {
		return r.ID == ev.Room && r.AccountID == ev.Account
	})
	if ev.Deleted {
		st.Rooms.Remove(ev.Room)
		c.config.Update(func(cfg *config.Config) { cfg.ForgetRoom(ev.Room) })
		c.bus.Emit(bus.KindRoomRemoved, ev.Room)
		st.Status = "Room deleted"
	} else {
		if active == ev.Room {
			st.Rooms.Close()
		}
		st.Status = "Left room"
	}
	if active == ev.Room && st.Nav.Focus != nav.FocusAccounts {
		st.Nav.Focus = nav.FocusRooms
	}
	c.relist()
	st.Nav.CloseIf(ev.Gen)
}

func (c *Coordinator) loadRoomInfo(cmd nav.LoadRoomInfo) {
	_, accountID := c.state.Rooms.Active()
	t := Task{Op: "room info", Account: accountID, Room: cmd.RoomID, Gen: cmd.Gen}
	a, err := c.account(accountID)
	if err != nil {
		c.fail(t, err)
		return
	}
	client := a.Client
	c.spawn(func(ctx context.Context) Event {
		d, err := client.RoomDetails(ctx, cmd.RoomID)
		return RoomInfoLoaded{Task: t, Details: d, Err: backend.Wrap(t.Op, err)}
	})
}

func (c *Coordinator) roomInfoLoaded(ev RoomInfoLoaded) {
	if ev.Err != nil {
		c.fail(ev.Task, ev.Err)
		return
	}
	c.state.Nav.RoomInfoLoaded(ev.Gen, ev.Details)
}

package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/backend/backendtest"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/config"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/outbox"
	"github.com/matheus3301/matrixtui/internal/rooms"
	"github.com/matheus3301/matrixtui/internal/status"
	"github.com/matheus3301/matrixtui/internal/verify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	alice = "@alice:hs.org"
	bob   = "@bob:hs.org"
)

type fixture struct {
	c   *Coordinator
	be  *backendtest.Backend
	cfg *config.Store
	bus *bus.Bus
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	f := &fixture{
		be:  backendtest.New(),
		cfg: config.NewMemoryStore(cfg, zap.NewNop()),
		bus: bus.New(),
	}
	return f
}

func (f *fixture) start(t *testing.T) *Coordinator {
	t.Helper()
	c, err := New(Options{
		Backend: f.be,
		Config:  f.cfg,
		Themes:  []string{"default", "dark"},
		Bus:     f.bus,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.c = c
	c.Start()
	t.Cleanup(c.Close)
	return c
}

// until pops and dispatches events until one satisfies match.
func (f *fixture) until(t *testing.T, match func(Event) bool) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for {
		ev, ok := f.c.queue.Pop(ctx)
		if !ok {
			t.Fatal("timeout waiting for event")
		}
		f.c.Dispatch(ev)
		if match(ev) {
			return ev
		}
	}
}

func is[T Event](ev Event) bool {
	_, ok := ev.(T)
	return ok
}

func isBackend[T backend.Event](ev Event) bool {
	b, ok := ev.(Backend)
	if !ok {
		return false
	}
	_, ok = b.Event.(T)
	return ok
}

func (f *fixture) login(t *testing.T, user string, rs ...chat.Room) *backendtest.Client {
	t.Helper()
	cl := f.be.Client("@"+user+":hs.org", "https://hs.org")
	cl.SetRooms(rs...)
	gen := f.c.state.Nav.OpenLogin()
	f.c.execute(nav.SubmitLogin{Gen: gen, Homeserver: "hs.org", Username: user, Password: "pw"})
	f.until(t, is[LoginDone])
	f.until(t, is[RoomsLoaded])
	return cl
}

// openFirst opens the first listed room and waits for its history.
func (f *fixture) openFirst(t *testing.T) {
	t.Helper()
	f.c.execute(nav.OpenRoom{Index: 0})
	f.until(t, is[HistoryLoaded])
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func sentKinds(cl *backendtest.Client) []string {
	var kinds []string
	for _, s := range cl.Sent() {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func roomIDs(rs []chat.Room) []string {
	var ids []string
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	return ids
}

func msg(id, sender, body string, ts int64) chat.Message {
	return chat.Message{EventID: id, RoomID: "!a:hs.org", Sender: sender, Content: chat.Text(body), Timestamp: time.UnixMilli(ts)}
}

func TestNewRejectsNegativeQueue(t *testing.T) {
	if _, err := New(Options{QueueSize: -1}); err == nil {
		t.Fatal("New() with negative queue size should fail")
	}
}

func TestLoginAddsAccount(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	f.login(t, "alice", chat.Room{ID: "!b:hs.org", Name: "beta"}, chat.Room{ID: "!a:hs.org", Name: "alpha"})

	if c.state.Accounts.Len() != 1 {
		t.Fatalf("accounts = %d, want 1", c.state.Accounts.Len())
	}
	if c.state.Nav.Overlay() != nav.OverlayNone {
		t.Errorf("overlay = %s, want none after login", c.state.Nav.Overlay())
	}
	if c.state.Status != "Logged in as "+alice {
		t.Errorf("status = %q", c.state.Status)
	}
	if _, ok := f.cfg.Config().Account(alice); !ok {
		t.Error("login was not saved to config")
	}
	if diff := cmp.Diff([]string{"!a:hs.org", "!b:hs.org"}, roomIDs(c.state.Rooms.Rooms())); diff != "" {
		t.Errorf("rooms mismatch (-want +got):\n%s", diff)
	}
}

func TestLoginFailureStaysOnForm(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	f.be.LoginErr = &backend.AuthError{Op: "login", Reason: "Invalid username or password"}

	gen := c.state.Nav.OpenLogin()
	c.state.Nav.Login().Busy = true
	c.execute(nav.SubmitLogin{Gen: gen, Homeserver: "hs.org", Username: "alice", Password: "pw"})
	f.until(t, is[LoginDone])

	form := c.state.Nav.Login()
	if form == nil {
		t.Fatal("login overlay closed on failure")
	}
	if form.Busy || form.Err == "" {
		t.Errorf("form busy=%v err=%q, want an error and not busy", form.Busy, form.Err)
	}
	if c.state.Accounts.Len() != 0 {
		t.Error("failed login added an account")
	}
}

func TestDuplicateLoginRejected(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	f.login(t, "alice")

	gen := c.state.Nav.OpenLogin()
	c.execute(nav.SubmitLogin{Gen: gen, Homeserver: "https://hs.org/", Username: "Alice", Password: "pw"})

	form := c.state.Nav.Login()
	if form == nil || form.Err != backend.ErrAlreadyLoggedIn.Error() {
		t.Fatalf("form = %+v, want duplicate error", form)
	}
	if f.be.Logins() != 1 {
		t.Errorf("logins = %d, want 1", f.be.Logins())
	}
}

func TestRestoreIsolatesFailures(t *testing.T) {
	f := newFixture(t, &config.Config{
		Theme:    config.DefaultTheme,
		RoomSort: config.DefaultSort,
		Accounts: []config.Account{
			{Homeserver: "https://hs.org", UserID: alice, AccessToken: "a"},
			{Homeserver: "https://hs.org", UserID: bob, AccessToken: "b"},
		},
	})
	f.be.RestoreErr[bob] = errors.New("token expired")
	f.be.Client(alice, "https://hs.org").SetRooms(chat.Room{ID: "!a:hs.org", Name: "alpha"})
	c := f.start(t)

	f.until(t, is[RestoreDone])
	if c.state.Accounts.Len() != 1 {
		t.Fatalf("accounts = %d, want 1", c.state.Accounts.Len())
	}
	if _, failed := c.state.Accounts.Failures()[bob]; !failed {
		t.Error("bob's failure was not recorded")
	}
	if c.state.Status != "1 account(s) failed to restore" {
		t.Errorf("status = %q", c.state.Status)
	}
	f.until(t, is[RoomsLoaded])
	if got := len(c.state.Rooms.Rooms()); got != 1 {
		t.Errorf("rooms = %d, want 1", got)
	}
	if snap := c.Snapshot(); snap.Failures[bob] == "" {
		t.Error("snapshot is missing bob's failure")
	}
}

func TestOpenRoomLoadsHistoryAndMarksRead(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cl := f.be.Client(alice, "https://hs.org")
	cl.SetHistory("!a:hs.org", "", backend.HistoryPage{
		Messages: []chat.Message{msg("$1", bob, "hi", 1000), msg("$2", bob, "there", 2000)},
		Next:     "t1",
	})
	f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha", Unread: 1})
	f.openFirst(t)

	st := c.state
	if st.Rooms.LoadState() != rooms.LoadLoaded {
		t.Errorf("load state = %s, want loaded", st.Rooms.LoadState())
	}
	if got := len(st.Rooms.Displayed()); got != 2 {
		t.Fatalf("displayed = %d, want 2", got)
	}
	if st.Rooms.FirstUnread() != 1 {
		t.Errorf("first unread = %d, want 1", st.Rooms.FirstUnread())
	}
	if st.Nav.Focus != nav.FocusChat {
		t.Errorf("focus = %v, want chat", st.Nav.Focus)
	}
	waitFor(t, func() bool {
		for _, s := range cl.Sent() {
			if s.Kind == "receipt" && s.Target == "$2" {
				return true
			}
		}
		return false
	})
}

func TestLoadOlderAtTop(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cl := f.be.Client(alice, "https://hs.org")
	cl.SetHistory("!a:hs.org", "", backend.HistoryPage{Messages: []chat.Message{msg("$2", bob, "b", 2000)}, Next: "t1"})
	cl.SetHistory("!a:hs.org", "t1", backend.HistoryPage{Messages: []chat.Message{msg("$1", bob, "a", 1000)}})
	f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.openFirst(t)

	c.execute(nav.SelectPrevMessage{})
	c.execute(nav.SelectPrevMessage{})
	f.until(t, is[OlderLoaded])

	if got := len(c.state.Rooms.Displayed()); got != 2 {
		t.Fatalf("displayed = %d, want 2", got)
	}
	if c.state.Status != "Loaded 1 older messages" {
		t.Errorf("status = %q", c.state.Status)
	}

	c.execute(nav.SelectFirstMessage{})
	c.execute(nav.SelectPrevMessage{})
	if c.state.Status != rooms.ErrNoMoreMessages.Error() {
		t.Errorf("status = %q, want %q", c.state.Status, rooms.ErrNoMoreMessages.Error())
	}
	if diff := cmp.Diff([]string{"", "t1"}, cl.Fetches()); diff != "" {
		t.Errorf("fetches mismatch (-want +got):\n%s", diff)
	}
}

func TestSendShowsEchoAndConfirms(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cl := f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.openFirst(t)

	c.execute(nav.SendMessage{Body: "hello"})
	shown := c.state.Rooms.Displayed()
	if len(shown) != 1 || !shown[0].Provisional() {
		t.Fatalf("displayed = %+v, want one local echo", shown)
	}
	txn := shown[0].TxnID

	f.until(t, is[Sent])
	confirmed := c.state.Rooms.Displayed()[0]
	if confirmed.Provisional() {
		t.Fatal("echo not upgraded after the send succeeded")
	}

	cl.Push(backend.MessageReceived{
		Account:   alice,
		RoomID:    "!a:hs.org",
		EventID:   confirmed.EventID,
		TxnID:     txn,
		Sender:    alice,
		Content:   chat.Text("hello"),
		Timestamp: time.UnixMilli(5000),
	})
	f.until(t, isBackend[backend.MessageReceived])

	if got := len(c.state.Rooms.Displayed()); got != 1 {
		t.Errorf("displayed = %d after remote echo, want 1", got)
	}
	if c.state.Echoes.Pending() != 0 {
		t.Errorf("pending = %d, want 0", c.state.Echoes.Pending())
	}
	waitFor(t, func() bool {
		kinds := sentKinds(cl)
		return len(kinds) >= 2 && kinds[len(kinds)-1] == "typing"
	})
}

func TestSendFailureRemovesEcho(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cl := f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.openFirst(t)
	cl.SendErr = errors.New("rate limited")

	c.execute(nav.SendMessage{Body: "hello"})
	f.until(t, is[Sent])

	if got := len(c.state.Rooms.Displayed()); got != 0 {
		t.Errorf("displayed = %d, want failed echo removed", got)
	}
	if c.state.Status != "send text failed: rate limited" {
		t.Errorf("status = %q", c.state.Status)
	}
}

func TestBackendEventsForUnknownAccountDropped(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.openFirst(t)

	c.Dispatch(Backend{Event: backend.MessageReceived{
		Account: "@ghost:hs.org", RoomID: "!a:hs.org", EventID: "$x", Sender: bob, Content: chat.Text("boo"),
	}})
	c.Dispatch(Backend{Event: backend.SyncFailed{Account: "@ghost:hs.org", Err: errors.New("gone")}})

	if got := len(c.state.Rooms.Displayed()); got != 0 {
		t.Errorf("displayed = %d, want 0", got)
	}
}

func TestEventsFromReconnectedSyncTaskDropped(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.openFirst(t)

	a, _ := c.state.Accounts.Get(alice)
	stale := a.Gen()
	c.execute(nav.ReconnectAccount{AccountID: alice})

	late := func(id string) backend.MessageReceived {
		return backend.MessageReceived{
			Account:   alice,
			RoomID:    "!a:hs.org",
			EventID:   id,
			Sender:    bob,
			Content:   chat.Text("hi"),
			Timestamp: time.Now(),
		}
	}
	c.Dispatch(Backend{Event: late("$old"), Gen: stale})
	if _, ok := c.state.Rooms.Lookup("!a:hs.org", "$old"); ok {
		t.Error("event from the cancelled sync task applied")
	}

	c.Dispatch(Backend{Event: late("$new"), Gen: a.Gen()})
	if _, ok := c.state.Rooms.Lookup("!a:hs.org", "$new"); !ok {
		t.Error("event from the current sync task dropped")
	}
}

func TestSyncEvents(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cla := f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.login(t, "bob")

	cla.Push(backend.SyncCompleted{Account: alice})
	f.until(t, isBackend[backend.SyncCompleted])
	// The first completed sync refetches the room list.
	f.until(t, is[RoomsLoaded])

	a, _ := c.state.Accounts.Get(alice)
	if a.State() != status.Synced {
		t.Errorf("alice = %s, want SYNCED", a.State())
	}

	c.Dispatch(Backend{Event: backend.SyncFailed{Account: bob, Err: errors.New("timeout")}})
	b, _ := c.state.Accounts.Get(bob)
	if b.State() != status.Error {
		t.Errorf("bob = %s, want ERROR", b.State())
	}
	if a.State() != status.Synced {
		t.Errorf("alice changed to %s on bob's failure", a.State())
	}
	if !strings.Contains(c.state.Status, "error: timeout") {
		t.Errorf("status = %q", c.state.Status)
	}
}

func TestRemoteMessagesReactionsAndTyping(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	events, unsubscribe := f.bus.Subscribe("message.", 16)
	defer unsubscribe()
	f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.openFirst(t)

	c.Dispatch(Backend{Event: backend.MessageReceived{
		Account: alice, RoomID: "!a:hs.org", EventID: "$1", Sender: bob, Content: chat.Text("hi"),
	}})
	c.Dispatch(Backend{Event: backend.ReactionReceived{Account: alice, RoomID: "!a:hs.org", TargetID: "$1", Key: "👍", Sender: bob}})
	c.Dispatch(Backend{Event: backend.TypingChanged{Account: alice, RoomID: "!a:hs.org", UserIDs: []string{alice, bob}}})

	shown := c.state.Rooms.Displayed()
	if len(shown) != 1 || shown[0].Reactions["👍"] != 1 {
		t.Fatalf("displayed = %+v", shown)
	}
	if diff := cmp.Diff([]string{bob}, c.state.Rooms.Typing()); diff != "" {
		t.Errorf("typing mismatch (-want +got):\n%s", diff)
	}

	c.Dispatch(Backend{Event: backend.MessageRedacted{Account: alice, RoomID: "!a:hs.org", EventID: "$1"}})
	if got := len(c.state.Rooms.Displayed()); got != 0 {
		t.Errorf("displayed = %d after redaction", got)
	}

	var kinds []string
	for len(kinds) < 2 {
		select {
		case ev := <-events:
			if ev.Kind == bus.KindMessageReceived || ev.Kind == bus.KindMessageRedacted {
				kinds = append(kinds, ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("bus events = %v", kinds)
		}
	}
	if diff := cmp.Diff([]string{bus.KindMessageReceived, bus.KindMessageRedacted}, kinds); diff != "" {
		t.Errorf("bus events mismatch (-want +got):\n%s", diff)
	}
}

func TestFavoritesAndSort(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"}, chat.Room{ID: "!b:hs.org", Name: "beta"})

	c.execute(nav.MoveRoom{Delta: 1})
	c.execute(nav.ToggleFavorite{})

	if diff := cmp.Diff([]string{"!b:hs.org"}, f.cfg.Config().Favorites); diff != "" {
		t.Errorf("favorites mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"!b:hs.org", "!a:hs.org"}, roomIDs(c.state.Rooms.Rooms())); diff != "" {
		t.Errorf("rooms mismatch (-want +got):\n%s", diff)
	}
	if r, _ := c.state.Rooms.SelectedRoom(); r.ID != "!b:hs.org" {
		t.Errorf("selection = %s, want the toggled room", r.ID)
	}

	c.execute(nav.SetSort{Index: 2})
	if f.cfg.Config().RoomSort != rooms.SortModes()[2].String() {
		t.Errorf("room_sort = %q", f.cfg.Config().RoomSort)
	}
	c.execute(nav.SetTheme{Name: "dark"})
	c.execute(nav.SetTheme{Name: "missing"})
	if got := f.cfg.Config().Theme; got != "dark" {
		t.Errorf("theme = %q, want dark", got)
	}
}

func TestRemoveAccountDropsItsRooms(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cl := f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.openFirst(t)

	c.execute(nav.RemoveAccount{AccountID: alice})

	if c.state.Accounts.Len() != 0 {
		t.Error("account still registered")
	}
	if len(c.state.Rooms.Rooms()) != 0 {
		t.Error("rooms of removed account still listed")
	}
	if roomID, _ := c.state.Rooms.Active(); roomID != "" {
		t.Errorf("active room = %s, want none", roomID)
	}
	if c.state.Nav.Focus != nav.FocusRooms {
		t.Errorf("focus = %v, want rooms", c.state.Nav.Focus)
	}
	if len(f.cfg.Config().Accounts) != 0 {
		t.Error("account still saved")
	}
	waitFor(t, func() bool { return cl.Syncing() == 0 })
	if !cl.Closed() {
		t.Error("client not closed")
	}
}

func TestDeleteRoomForgetsIt(t *testing.T) {
	f := newFixture(t, &config.Config{Favorites: []string{"!a:hs.org"}})
	c := f.start(t)
	events, unsubscribe := f.bus.Subscribe(bus.KindRoomRemoved, 4)
	defer unsubscribe()
	cl := f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"}, chat.Room{ID: "!b:hs.org", Name: "beta"})
	f.openFirst(t)

	gen := c.state.Nav.OpenEditor("!a:hs.org", alice, "alpha", "")
	c.execute(nav.DeleteRoom{Gen: gen, RoomID: "!a:hs.org", AccountID: alice})
	f.until(t, is[RoomLeft])

	if diff := cmp.Diff([]string{"!b:hs.org"}, roomIDs(c.state.Rooms.Rooms())); diff != "" {
		t.Errorf("rooms mismatch (-want +got):\n%s", diff)
	}
	if len(f.cfg.Config().Favorites) != 0 {
		t.Error("deleted room still a favorite")
	}
	if c.state.Nav.Overlay() != nav.OverlayNone {
		t.Error("editor still open")
	}
	if got := strings.Join(sentKinds(cl), ","); !strings.HasSuffix(got, "leave,forget") {
		t.Errorf("calls = %s, want leave then forget", got)
	}
	select {
	case ev := <-events:
		if ev.Payload != "!a:hs.org" {
			t.Errorf("payload = %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no room.removed event")
	}

	received, unsubReceived := f.bus.Subscribe(bus.KindMessageReceived, 4)
	defer unsubReceived()
	c.handleBackend(backend.MessageReceived{
		Account:   alice,
		RoomID:    "!a:hs.org",
		EventID:   "$late",
		Sender:    "@bob:hs.org",
		Content:   chat.Text("still here?"),
		Timestamp: time.Now(),
	})
	if n := len(c.state.Rooms.Cached("!a:hs.org")); n != 0 {
		t.Errorf("late message cached for deleted room: %d", n)
	}
	select {
	case ev := <-received:
		t.Errorf("late message published: %+v", ev.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStaleResultGoesToStatusLine(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cl := f.login(t, "alice")
	cl.RoomErr = errors.New("forbidden")

	gen := c.state.Nav.OpenCreator(0)
	c.execute(nav.CreateRoom{Gen: gen, AccountID: alice, Request: backend.CreateRoomRequest{Name: "x"}})
	c.state.Nav.Close()
	c.state.Nav.OpenHelp()
	f.until(t, is[RoomCreated])

	if c.state.Status != "create room failed: forbidden" {
		t.Errorf("status = %q", c.state.Status)
	}
	if c.state.Nav.Overlay() != nav.OverlayHelp {
		t.Errorf("overlay = %s, want help untouched", c.state.Nav.Overlay())
	}
}

func TestIncomingVerificationFlow(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cl := f.login(t, "alice")
	req := backendtest.NewRequest("flow1", alice)
	cl.SetRequest(req)

	cl.Push(backend.VerificationRequestReceived{Account: alice, UserID: alice, FlowID: "flow1"})
	f.until(t, isBackend[backend.VerificationRequestReceived])
	if s := c.state.Verification; s == nil || s.State != verify.Incoming {
		t.Fatalf("session = %+v, want incoming", s)
	}
	if c.state.Nav.Overlay() != nav.OverlayVerification {
		t.Errorf("overlay = %s, want verification", c.state.Nav.Overlay())
	}

	c.execute(nav.AcceptVerification{})
	f.until(t, isBackend[backend.SasStarted])
	if c.state.Verification.State != verify.SasStarted {
		t.Fatalf("state = %s, want sas started", c.state.Verification.State)
	}

	emojis := []backend.Emoji{{Symbol: "🐶", Label: "Dog"}, {Symbol: "🔑", Label: "Key"}}
	req.Sas().ExchangeKeys(emojis)
	f.until(t, isBackend[backend.SasEmojisReady])
	if diff := cmp.Diff(emojis, c.Snapshot().Verification.Emojis); diff != "" {
		t.Errorf("emojis mismatch (-want +got):\n%s", diff)
	}

	c.execute(nav.ConfirmVerification{})
	if !c.state.Verification.Busy() {
		t.Error("session not busy after confirm")
	}
	waitFor(t, req.Sas().Confirmed)

	req.Sas().Finish()
	f.until(t, isBackend[backend.SasDone])
	if c.state.Verification.State != verify.Done {
		t.Errorf("state = %s, want done", c.state.Verification.State)
	}

	c.execute(nav.DismissVerification{})
	if c.state.Verification != nil {
		t.Error("session kept after dismiss")
	}
}

func TestVerificationIgnoresOtherFlows(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	f.login(t, "alice")

	c.Dispatch(Backend{Event: backend.VerificationRequestReceived{Account: alice, UserID: alice, FlowID: "flow1"}})
	c.Dispatch(Backend{Event: backend.VerificationRequestReceived{Account: alice, UserID: alice, FlowID: "flow2"}})
	c.Dispatch(Backend{Event: backend.SasCancelled{FlowID: "flow2", Reason: "nope"}})

	s := c.state.Verification
	if s.FlowID != "flow1" || s.State != verify.Incoming {
		t.Errorf("session = %s/%s, want flow1/incoming", s.FlowID, s.State)
	}

	c.execute(nav.CancelVerification{})
	if c.state.Verification != nil {
		t.Error("session kept after cancel")
	}
}

func TestStartVerificationCancelledWhenOverlayClosed(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	cl := f.login(t, "alice")
	req := backendtest.NewRequest("flow1", alice)
	cl.SetRequest(req)

	gen := c.state.Nav.OpenVerification(alice)
	c.execute(nav.StartVerification{Gen: gen, AccountID: alice})
	c.state.Nav.Close()
	f.until(t, is[VerificationStarted])

	if c.state.Verification != nil {
		t.Error("session created for a closed overlay")
	}
	waitFor(t, func() bool { return req.State().State == backend.RequestCancelled })
}

func TestQuitKey(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	if c.Dispatch(KeyPressed{Key: tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)}) {
		t.Error("Ctrl+Q did not quit")
	}
	if !c.Dispatch(KeyPressed{Key: tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone)}) {
		t.Error("s quit the loop")
	}
	if c.state.Nav.Overlay() != nav.OverlaySettings {
		t.Errorf("overlay = %s, want settings", c.state.Nav.Overlay())
	}
}

func TestSnapshotSharesNothing(t *testing.T) {
	f := newFixture(t, nil)
	c := f.start(t)
	f.login(t, "alice", chat.Room{ID: "!a:hs.org", Name: "alpha"})
	f.openFirst(t)
	c.Dispatch(Backend{Event: backend.MessageReceived{
		Account: alice, RoomID: "!a:hs.org", EventID: "$1", Sender: bob, Content: chat.Text("hi"),
	}})

	snap := c.Snapshot()
	snap.Messages[0].Content.Body = "changed"
	snap.Rooms[0].Name = "changed"

	if c.state.Rooms.Displayed()[0].Content.Body != "hi" {
		t.Error("snapshot messages alias the cache")
	}
	if c.state.Rooms.Rooms()[0].Name != "alpha" {
		t.Error("snapshot rooms alias the cache")
	}
	if snap.ActiveRoom.ID != "!a:hs.org" {
		t.Errorf("active room = %q", snap.ActiveRoom.ID)
	}
	if len(snap.Accounts) != 1 || snap.Accounts[0].ID != alice {
		t.Errorf("accounts = %+v", snap.Accounts)
	}
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) Render(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func TestRunRendersAndStops(t *testing.T) {
	rec := &recorder{}
	c, err := New(Options{Renderer: rec, Tick: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool { return rec.count() >= 2 })
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReturnsOnQuit(t *testing.T) {
	c, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	c.Queue().Push(context.Background(), KeyPressed{Key: tcell.NewEventKey(tcell.KeyCtrlQ, 0, tcell.ModCtrl)})
	if err := c.Run(context.Background()); err != nil {
		t.Errorf("Run() = %v, want nil on quit", err)
	}
}

func TestDroppedNoticeIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c, err := New(Options{Backend: backendtest.New(), Logger: zap.New(core)})
	if err != nil {
		t.Fatal(err)
	}
	cl := backendtest.NewClient(alice, "https://hs.org")

	// The sender is not started, so the outbox fills up.
	for range outboxLength + 1 {
		c.notify(outbox.Job{Kind: outbox.KindTyping, Client: cl, RoomID: "!a:hs.org"})
	}

	entries := logs.FilterMessage("outbox job dropped").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d dropped jobs, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["kind"] != "typing" || fields["room"] != "!a:hs.org" {
		t.Errorf("fields = %v", fields)
	}
}

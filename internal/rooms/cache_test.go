package rooms

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
)

func ids(rooms []chat.Room) []string {
	out := make([]string, len(rooms))
	for i, r := range rooms {
		out[i] = r.ID
	}
	return out
}

func msg(id, sender, body string) chat.Message {
	return chat.Message{EventID: id, Sender: sender, Content: chat.Text(body)}
}

func TestRefreshUnreadScenario(t *testing.T) {
	all := []chat.Room{
		{ID: "!three", AccountID: "@a:hs", Name: "three", Unread: 3},
		{ID: "!zero", AccountID: "@a:hs", Name: "zero", Unread: 0},
		{ID: "!seven", AccountID: "@a:hs", Name: "seven", Unread: 7},
		{ID: "!b", AccountID: "@b:hs", Name: "Bravo", Unread: 3},
	}
	c := New()
	got := c.Refresh(all, nil, SortUnread)
	if diff := cmp.Diff([]string{"!seven", "!b", "!three", "!zero"}, ids(got)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}

	got = c.Refresh(all, []string{"!zero"}, SortUnread)
	if diff := cmp.Diff([]string{"!zero", "!seven", "!b", "!three"}, ids(got)); diff != "" {
		t.Errorf("order with favorite (-want +got):\n%s", diff)
	}
	if !got[0].Favorite || got[1].Favorite {
		t.Error("favorite flags not set")
	}
	if c.FavoritesCount() != 1 {
		t.Errorf("FavoritesCount() = %d, want 1", c.FavoritesCount())
	}
}

func TestRefreshFavoritesOrderForAnyPermutation(t *testing.T) {
	all := []chat.Room{
		{ID: "!a", Name: "a", Unread: 1},
		{ID: "!b", Name: "b", Unread: 5},
		{ID: "!c", Name: "c"},
		{ID: "!d", Name: "d", Unread: 2},
	}
	perms := [][]string{
		{"!a", "!b", "!c"},
		{"!c", "!a", "!b"},
		{"!b", "!c", "!a"},
		{"!c", "!missing", "!a"},
		{"!d"},
		{},
	}
	for _, favs := range perms {
		c := New()
		got := ids(c.Refresh(all, favs, SortUnread))

		var want []string
		for _, id := range favs {
			if id != "!missing" {
				want = append(want, id)
			}
		}
		if len(want) > 0 {
			if diff := cmp.Diff(want, got[:len(want)]); diff != "" {
				t.Errorf("favorites %v: prefix (-want +got):\n%s", favs, diff)
			}
		}
		rest := c.Rooms()[len(want):]
		for i := 1; i < len(rest); i++ {
			if rest[i-1].Unread < rest[i].Unread {
				t.Errorf("favorites %v: remainder not sorted by unread: %v", favs, ids(rest))
			}
		}
	}
}

func TestSortModes(t *testing.T) {
	now := time.Now()
	all := []chat.Room{
		{ID: "!x", Name: "beta"},
		{ID: "!y", Name: "Alpha"},
		{ID: "!z", Name: "gamma"},
	}
	c := New()
	c.Append("!z", chat.Message{EventID: "$1", Timestamp: now})
	c.Append("!x", chat.Message{EventID: "$2", Timestamp: now.Add(-time.Hour)})

	if diff := cmp.Diff([]string{"!y", "!x", "!z"}, ids(c.Refresh(all, nil, SortAlpha))); diff != "" {
		t.Errorf("alpha (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"!z", "!x", "!y"}, ids(c.Refresh(all, nil, SortRecent))); diff != "" {
		t.Errorf("recent (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"!y", "!x", "!z"}, ids(c.Refresh(all, nil, SortUnread))); diff != "" {
		t.Errorf("unread ties alphabetical (-want +got):\n%s", diff)
	}
}

func TestParseSortMode(t *testing.T) {
	tests := map[string]SortMode{"unread": SortUnread, "recent": SortRecent, "alpha": SortAlpha, "bogus": SortUnread, "": SortUnread}
	for in, want := range tests {
		if got := ParseSortMode(in); got != want {
			t.Errorf("ParseSortMode(%q) = %v, want %v", in, got, want)
		}
		if ParseSortMode(want.String()) != want {
			t.Errorf("String() of %v does not round trip", want)
		}
	}
	if SortRecent.Label() != "Recent Activity" {
		t.Errorf("Label() = %q", SortRecent.Label())
	}
}

func TestRefreshKeepsSelectionByID(t *testing.T) {
	c := New()
	c.Refresh([]chat.Room{{ID: "!a", Name: "a"}, {ID: "!b", Name: "b"}, {ID: "!c", Name: "c"}}, nil, SortAlpha)
	c.MoveSelection(1)

	c.Refresh([]chat.Room{{ID: "!b", Name: "b", Unread: 9}, {ID: "!a", Name: "a"}, {ID: "!c", Name: "c"}}, nil, SortUnread)
	if r, _ := c.SelectedRoom(); r.ID != "!b" {
		t.Errorf("selected = %s, want !b", r.ID)
	}

	c.MoveSelection(10)
	c.Refresh([]chat.Room{{ID: "!a", Name: "a"}}, nil, SortAlpha)
	if c.Selected() != 0 {
		t.Errorf("selected = %d, want clamp to 0", c.Selected())
	}

	c.Refresh(nil, nil, SortAlpha)
	if _, ok := c.SelectedRoom(); ok {
		t.Error("selected room on empty list")
	}
}

func TestOpenFlushesDisplayedIntoCache(t *testing.T) {
	c := New()
	seq := c.Open(chat.Room{ID: "!a", AccountID: "@me:hs"})
	c.ApplyInitial(seq, InitialLoad{Page: backend.HistoryPage{Messages: []chat.Message{msg("$1", "@x:hs", "hi")}}})
	c.Append("!a", msg("$2", "@x:hs", "live"))

	c.Open(chat.Room{ID: "!b", AccountID: "@me:hs"})
	if got := len(c.Cached("!a")); got != 2 {
		t.Errorf("cached !a = %d messages, want 2", got)
	}
	if len(c.Displayed()) != 0 {
		t.Error("displayed not reset on open")
	}
}

func TestInitialLoadFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Cache)
		res   InitialLoad
		want  LoadState
		count int
	}{
		{"server page", nil, InitialLoad{Page: backend.HistoryPage{Messages: []chat.Message{msg("$1", "@x", "a")}}}, LoadLoaded, 1},
		{"live cache", func(c *Cache) { c.Append("!r", msg("$9", "@x", "cached")) }, InitialLoad{Synced: true}, LoadFromCache, 1},
		{"archive", nil, InitialLoad{Archived: []chat.Message{msg("$5", "@x", "old")}}, LoadFromArchive, 1},
		{"waiting for sync", nil, InitialLoad{Synced: false}, LoadWaitingForSync, 0},
		{"empty room", nil, InitialLoad{Synced: true}, LoadEmpty, 0},
		{"failed", nil, InitialLoad{Err: errors.New("boom"), Synced: true}, LoadFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			if tt.setup != nil {
				tt.setup(c)
			}
			seq := c.Open(chat.Room{ID: "!r"})
			state, ok := c.ApplyInitial(seq, tt.res)
			if !ok {
				t.Fatal("ApplyInitial ignored current seq")
			}
			if state != tt.want {
				t.Errorf("state = %v, want %v", state, tt.want)
			}
			if len(c.Displayed()) != tt.count {
				t.Errorf("displayed = %d, want %d", len(c.Displayed()), tt.count)
			}
		})
	}
}

func TestApplyInitialIgnoresStaleOpen(t *testing.T) {
	c := New()
	first := c.Open(chat.Room{ID: "!a"})
	c.Open(chat.Room{ID: "!b"})
	if _, ok := c.ApplyInitial(first, InitialLoad{Page: backend.HistoryPage{Messages: []chat.Message{msg("$1", "@x", "a")}}}); ok {
		t.Fatal("stale initial load applied")
	}
	if len(c.Displayed()) != 0 {
		t.Error("stale messages displayed")
	}
}

func TestApplyInitialResolvesRepliesAndUnread(t *testing.T) {
	c := New()
	seq := c.Open(chat.Room{ID: "!r"})
	page := backend.HistoryPage{Messages: []chat.Message{
		msg("$1", "@a", "x"),
		{EventID: "$2", Sender: "@b", Content: chat.Text("y"), ReplyTo: &chat.ReplyRef{EventID: "$1"}},
		msg("$3", "@a", "z"),
	}}
	c.ApplyInitial(seq, InitialLoad{Page: page, Unread: 2})
	if got := c.Displayed()[1].ReplyTo.Sender; got != "@a" {
		t.Errorf("reply sender = %q, want @a", got)
	}
	if c.FirstUnread() != 1 {
		t.Errorf("FirstUnread() = %d, want 1", c.FirstUnread())
	}
}

func TestLoadOlderShiftsCursorAndExhausts(t *testing.T) {
	c := New()
	seq := c.Open(chat.Room{ID: "!r"})
	c.ApplyInitial(seq, InitialLoad{Page: backend.HistoryPage{
		Messages: []chat.Message{msg("$3", "@a", "c"), msg("$4", "@a", "d")},
		Next:     "t1",
	}})
	c.SelectPrev()
	c.SelectPrev()
	if !c.SelectPrev() {
		t.Fatal("SelectPrev at top should request older history")
	}

	room, token, err := c.BeginLoadOlder()
	if err != nil || room != "!r" || token != "t1" {
		t.Fatalf("BeginLoadOlder() = %q, %q, %v", room, token, err)
	}
	if _, _, err := c.BeginLoadOlder(); !errors.Is(err, ErrLoadInFlight) {
		t.Errorf("second BeginLoadOlder() = %v, want ErrLoadInFlight", err)
	}

	n, err := c.ApplyOlder("!r", "t1", backend.HistoryPage{
		Messages: []chat.Message{msg("$1", "@a", "a"), msg("$2", "@a", "b")},
		Next:     "t2",
	}, nil)
	if err != nil || n != 2 {
		t.Fatalf("ApplyOlder() = %d, %v", n, err)
	}
	if c.SelectedMessage() != 2 || c.Scroll() != 2 {
		t.Errorf("cursor = %d scroll = %d, want 2/2", c.SelectedMessage(), c.Scroll())
	}
	if m, _ := c.Message(); m.EventID != "$3" {
		t.Errorf("selected message = %s, want $3", m.EventID)
	}

	// Replaying the consumed token is dropped.
	if n, _ := c.ApplyOlder("!r", "t1", backend.HistoryPage{Messages: []chat.Message{msg("$0", "@a", "z")}}, nil); n != 0 {
		t.Errorf("stale token applied %d messages", n)
	}

	_, token, _ = c.BeginLoadOlder()
	if _, err := c.ApplyOlder("!r", token, backend.HistoryPage{}, nil); !errors.Is(err, ErrNoMoreMessages) {
		t.Errorf("empty page error = %v, want ErrNoMoreMessages", err)
	}
	for range 3 {
		if _, _, err := c.BeginLoadOlder(); !errors.Is(err, ErrNoMoreMessages) {
			t.Errorf("BeginLoadOlder after exhaustion = %v", err)
		}
	}
	if len(c.Displayed()) != 4 {
		t.Errorf("displayed = %d, want 4", len(c.Displayed()))
	}
}

func TestLoadOlderSkipsDuplicates(t *testing.T) {
	c := New()
	seq := c.Open(chat.Room{ID: "!r"})
	c.ApplyInitial(seq, InitialLoad{Page: backend.HistoryPage{Messages: []chat.Message{msg("$2", "@a", "b")}, Next: "t"}})
	_, token, _ := c.BeginLoadOlder()
	n, _ := c.ApplyOlder("!r", token, backend.HistoryPage{Messages: []chat.Message{msg("$1", "@a", "a"), msg("$2", "@a", "b")}}, nil)
	if n != 1 || len(c.Displayed()) != 2 {
		t.Errorf("added %d, displayed %d; want 1, 2", n, len(c.Displayed()))
	}
	if !c.Exhausted("!r") {
		t.Error("page without next token should exhaust the room")
	}
}

func TestLoadOlderErrorKeepsToken(t *testing.T) {
	c := New()
	seq := c.Open(chat.Room{ID: "!r"})
	c.ApplyInitial(seq, InitialLoad{Page: backend.HistoryPage{Messages: []chat.Message{msg("$2", "@a", "b")}, Next: "t"}})
	_, token, _ := c.BeginLoadOlder()
	if _, err := c.ApplyOlder("!r", token, backend.HistoryPage{}, errors.New("timeout")); err == nil {
		t.Fatal("ApplyOlder should surface the fetch error")
	}
	if _, again, err := c.BeginLoadOlder(); err != nil || again != "t" {
		t.Errorf("retry = %q, %v; want t, nil", again, err)
	}
}

func TestSelectNextDeselectsAtBottom(t *testing.T) {
	c := New()
	seq := c.Open(chat.Room{ID: "!r"})
	c.ApplyInitial(seq, InitialLoad{Page: backend.HistoryPage{Messages: []chat.Message{msg("$1", "@a", "a"), msg("$2", "@a", "b")}}})
	c.SelectFirst()
	c.SelectNext()
	if c.SelectedMessage() != 1 {
		t.Fatalf("selected = %d, want 1", c.SelectedMessage())
	}
	c.SelectNext()
	if c.SelectedMessage() != -1 {
		t.Errorf("selected = %d, want -1", c.SelectedMessage())
	}
}

func TestRemoveRoom(t *testing.T) {
	c := New()
	all := []chat.Room{{ID: "!r", Name: "r"}, {ID: "!s", Name: "s"}}
	c.Refresh(all, nil, SortAlpha)
	seq := c.Open(all[0])
	c.ApplyInitial(seq, InitialLoad{Page: backend.HistoryPage{Messages: []chat.Message{msg("$1", "@a", "a")}}})

	if !c.Remove("!r") {
		t.Error("Remove should report the active room")
	}
	if active, _ := c.Active(); active != "" {
		t.Errorf("active = %q after remove", active)
	}
	if len(c.Cached("!r")) != 0 {
		t.Error("cache kept removed room")
	}
	if diff := cmp.Diff([]string{"!s"}, ids(c.Refresh(all, nil, SortAlpha))); diff != "" {
		t.Errorf("refresh after remove (-want +got):\n%s", diff)
	}
}

func TestRemoveAccount(t *testing.T) {
	c := New()
	all := []chat.Room{
		{ID: "!a1", AccountID: "@a", Name: "a1"},
		{ID: "!b1", AccountID: "@b", Name: "b1"},
	}
	c.Refresh(all, nil, SortAlpha)
	c.Open(all[1])
	if !c.RemoveAccount("@b") {
		t.Error("RemoveAccount should close the active room")
	}
	if diff := cmp.Diff([]string{"!a1"}, ids(c.Rooms())); diff != "" {
		t.Errorf("rooms (-want +got):\n%s", diff)
	}
}

func TestUpdateTouchesBothCopies(t *testing.T) {
	c := New()
	c.Open(chat.Room{ID: "!r"})
	c.Append("!r", msg("$1", "@a", "a"))
	n := c.Update("!r", func(m *chat.Message) bool { return m.EventID == "$1" }, func(m *chat.Message) { m.React("🔥") })
	if n != 2 {
		t.Fatalf("Update changed %d copies, want 2", n)
	}
	if c.Displayed()[0].Reactions["🔥"] != 1 || c.Cached("!r")[0].Reactions["🔥"] != 1 {
		t.Error("reaction missing from one copy")
	}
}

func TestApplyInitialKeepsOneCopyOfLiveEcho(t *testing.T) {
	echo := chat.Message{TxnID: "t1", Sender: "@me", Content: chat.Text("hello")}
	tests := []struct {
		name string
		res  InitialLoad
		want []string
	}{
		{"empty page", InitialLoad{Synced: true}, []string{""}},
		{"failed page", InitialLoad{Err: errors.New("boom"), Synced: true}, []string{""}},
		{
			"page holds the confirmed send",
			InitialLoad{Page: backend.HistoryPage{Messages: []chat.Message{
				msg("$0", "@x", "before"),
				{EventID: "$1", TxnID: "t1", Sender: "@me", Content: chat.Text("hello")},
			}}},
			[]string{"$0", "$1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			seq := c.Open(chat.Room{ID: "!r"})
			c.Append("!r", echo)
			c.ApplyInitial(seq, tt.res)

			var got []string
			for _, m := range c.Displayed() {
				got = append(got, m.EventID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("displayed event ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAppendIgnoresRemovedRoom(t *testing.T) {
	c := New()
	c.Append("!gone", msg("$1", "@x", "a"))
	c.Remove("!gone")
	c.Append("!gone", msg("$2", "@x", "late"))

	if !c.Removed("!gone") {
		t.Error("Removed() = false after Remove")
	}
	if n := len(c.Cached("!gone")); n != 0 {
		t.Errorf("cached for removed room = %d, want 0", n)
	}

	c.Restore("!gone")
	c.Append("!gone", msg("$3", "@x", "back"))
	if n := len(c.Cached("!gone")); n != 1 {
		t.Errorf("cached after restore = %d, want 1", n)
	}
}

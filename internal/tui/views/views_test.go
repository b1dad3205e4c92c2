package views

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matheus3301/matrixtui/internal/app"
	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/rooms"
	"github.com/matheus3301/matrixtui/internal/status"
	"github.com/matheus3301/matrixtui/internal/tui/ui"
	"github.com/matheus3301/matrixtui/internal/verify"
)

var (
	theme = ui.LookupTheme(ui.DefaultThemeName)
	now   = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
)

func activeSnapshot() *app.Snapshot {
	room := chat.Room{ID: "!r:hs", AccountID: "@alice:hs", Name: "General"}
	return &app.Snapshot{
		Rooms:      []chat.Room{room},
		ActiveRoom: room,
		Load:       rooms.LoadLoaded,
		Messages: []chat.Message{
			{EventID: "$1", Sender: "@bob:hs", Content: chat.Text("hello [world]"), Timestamp: now.Add(-time.Minute)},
			{
				EventID:   "$2",
				Sender:    "@alice:hs",
				Content:   chat.Text("hi"),
				Timestamp: now,
				ReplyTo:   &chat.ReplyRef{EventID: "$1", Sender: "@bob:hs", Snippet: "hello"},
				Reactions: map[string]int{"👍": 2},
				Edited:    true,
			},
			{TxnID: "t1", Sender: "@alice:hs", Content: chat.Text("pending"), Timestamp: now},
		},
		SelectedMessage: -1,
		FirstUnread:     1,
		Typing:          []string{"@bob:hs"},
		Now:             now,
	}
}

func TestTimelineText(t *testing.T) {
	text := TimelineText(theme, activeSnapshot())
	for _, want := range []string{
		"@bob:hs",
		"hello [world[]", // escaped for tview
		"↳ @bob:hs: hello",
		"👍 2",
		"(edited)",
		"sending…",
		"──── new ────",
		"@bob:hs is typing…",
		`["m0"]`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("timeline is missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "──── new ────") > strings.Index(text, "hi\n") {
		t.Error("unread divider is not above the first unread message")
	}
}

func TestTimelinePlaceholders(t *testing.T) {
	snap := &app.Snapshot{}
	if text := TimelineText(theme, snap); !strings.Contains(text, "terminal ui") {
		t.Errorf("no room open should show the logo, got %q", text)
	}

	snap.ActiveRoom = chat.Room{ID: "!r:hs"}
	snap.Load = rooms.LoadWaitingForSync
	if text := TimelineText(theme, snap); !strings.Contains(text, "Waiting for the first sync") {
		t.Errorf("waiting text = %q", text)
	}
	snap.Load = rooms.LoadEmpty
	if text := TimelineText(theme, snap); !strings.Contains(text, "No messages yet.") {
		t.Errorf("empty text = %q", text)
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"today", time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC), "09:05"},
		{"earlier", now.Add(-72 * time.Hour), "3 days ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Timestamp(tt.t, now); got != tt.want {
				t.Errorf("Timestamp() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypingText(t *testing.T) {
	tests := []struct {
		users []string
		want  string
	}{
		{nil, ""},
		{[]string{"a"}, "a is typing…"},
		{[]string{"a", "b"}, "a and b are typing…"},
		{[]string{"a", "b", "c"}, "a and 2 others are typing…"},
	}
	for _, tt := range tests {
		if got := TypingText(tt.users); got != tt.want {
			t.Errorf("TypingText(%v) = %q, want %q", tt.users, got, tt.want)
		}
	}
}

func TestRoomLabel(t *testing.T) {
	if got := RoomLabel(chat.Room{ID: "!r:hs", Name: "General"}, true); got != "★ General" {
		t.Errorf("favorite label = %q", got)
	}
	if got := RoomLabel(chat.Room{ID: "!d:hs", Name: "bob", IsDM: true}, false); got != "@ bob" {
		t.Errorf("dm label = %q", got)
	}
	if got := RoomLabel(chat.Room{ID: "!x:hs"}, false); got != "  !x:hs" {
		t.Errorf("unnamed label = %q", got)
	}
}

func TestFieldText(t *testing.T) {
	f := nav.NewField("abc")
	if got := FieldText(&f, false, false); got != "abc" {
		t.Errorf("unfocused = %q", got)
	}
	if got := FieldText(&f, true, false); got != "abc[::r] [::-]" {
		t.Errorf("focused = %q", got)
	}
	if got := FieldText(&f, false, true); got != "***" {
		t.Errorf("secret = %q", got)
	}
}

func TestCrumbsAndStatus(t *testing.T) {
	snap := &app.Snapshot{
		Accounts: []app.AccountView{
			{ID: "@alice:hs", DisplayName: "Alice", State: status.Synced},
			{ID: "@bob:hs", State: status.Error, Reason: "token expired"},
		},
		Failures: map[string]string{"@carol:hs": "unreachable"},
		Pending:  2,
		Now:      now,
	}
	want := []ui.Crumb{
		{Label: "Alice", State: "SYNCED", Active: true},
		{Label: "@bob:hs", State: "ERROR", Failed: true},
		{Label: "@carol:hs", State: "failed", Failed: true},
	}
	if diff := cmp.Diff(want, Crumbs(snap)); diff != "" {
		t.Errorf("crumbs mismatch (-want +got):\n%s", diff)
	}

	level, text, right := StatusLine(snap)
	if level != ui.FlashErr {
		t.Errorf("level = %v, want error", level)
	}
	if text != "@bob:hs: token expired" {
		t.Errorf("text = %q", text)
	}
	if right != "2 sending · accounts · 12:00" {
		t.Errorf("right = %q", right)
	}
}

func TestOverlayLogin(t *testing.T) {
	snap := &app.Snapshot{Nav: nav.View{
		Overlay: nav.OverlayLogin,
		Payload: &nav.LoginForm{
			Form:       nav.Form{Err: "invalid username or password"},
			Homeserver: nav.NewField("matrix.org"),
			Username:   nav.NewField("alice"),
			Password:   nav.NewField("hunter2"),
			Focus:      nav.LoginPassword,
		},
	}}
	title, body, ok := Overlay(theme, snap)
	if !ok || title != "Add Account" {
		t.Fatalf("Overlay() = %q, %v", title, ok)
	}
	if strings.Contains(body, "hunter2") {
		t.Error("password shown in clear")
	}
	for _, want := range []string{"matrix.org", "alice", "*******", "invalid username or password"} {
		if !strings.Contains(body, want) {
			t.Errorf("login overlay is missing %q:\n%s", want, body)
		}
	}
}

func TestOverlayVerification(t *testing.T) {
	snap := &app.Snapshot{
		Nav: nav.View{Overlay: nav.OverlayVerification, Payload: &nav.VerifyView{AccountID: "@alice:hs"}},
		Verification: &app.VerificationView{
			Account: "@alice:hs",
			State:   verify.KeysExchanged,
			Emojis:  []backend.Emoji{{Symbol: "🐶", Label: "Dog"}, {Symbol: "🔑", Label: "Key"}},
		},
	}
	_, body, ok := Overlay(theme, snap)
	if !ok {
		t.Fatal("no overlay")
	}
	for _, want := range []string{"🐶", "Dog", "Key", "Match? (y/n)"} {
		if !strings.Contains(body, want) {
			t.Errorf("verification overlay is missing %q:\n%s", want, body)
		}
	}
}

func TestOverlayRoomInfo(t *testing.T) {
	snap := &app.Snapshot{Now: now, Nav: nav.View{
		Overlay: nav.OverlayRoomInfo,
		Payload: &nav.RoomInfoView{RoomID: "!r:hs", Details: &backend.RoomDetails{
			ID: "!r:hs", Name: "General", Alias: "#general:hs", Members: 1200, Encrypted: true,
		}},
	}}
	_, body, ok := Overlay(theme, snap)
	if !ok {
		t.Fatal("no overlay")
	}
	for _, want := range []string{"General", "#general:hs", "1,200", "yes", "█"} {
		if !strings.Contains(body, want) {
			t.Errorf("room info overlay is missing %q", want)
		}
	}
}

func TestOverlaySwitcherSkipsStaleMatches(t *testing.T) {
	snap := &app.Snapshot{
		Rooms: []chat.Room{{ID: "!a:hs", Name: "alpha"}, {ID: "!b:hs", Name: "beta"}},
		Nav: nav.View{Overlay: nav.OverlayRoomSwitcher, Payload: &nav.Switcher{
			Query:   nav.NewField("a"),
			Matches: []int{1, 0, 7},
		}},
	}
	_, body, _ := Overlay(theme, snap)
	if !strings.Contains(body, "beta") || !strings.Contains(body, "alpha") {
		t.Errorf("switcher body = %q", body)
	}
	if strings.Index(body, "beta") > strings.Index(body, "alpha") {
		t.Error("matches not in rank order")
	}
}

func TestNoOverlay(t *testing.T) {
	if _, _, ok := Overlay(theme, &app.Snapshot{}); ok {
		t.Error("Overlay() reported an overlay with none open")
	}
}

func TestPermalink(t *testing.T) {
	if got := Permalink("!r:hs", ""); got != "https://matrix.to/#/!r:hs" {
		t.Errorf("Permalink() = %q", got)
	}
	if got := Permalink("!r:hs", "#a:hs"); got != "https://matrix.to/#/#a:hs" {
		t.Errorf("Permalink() = %q", got)
	}
}

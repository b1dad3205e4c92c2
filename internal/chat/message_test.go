package chat

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSnippet(t *testing.T) {
	short := "hello"
	if got := Snippet(short); got != short {
		t.Errorf("Snippet(%q) = %q", short, got)
	}
	long := strings.Repeat("é", 60)
	got := Snippet(long)
	if want := strings.Repeat("é", 50) + "..."; got != want {
		t.Errorf("Snippet(long) = %q, want %q", got, want)
	}
}

func TestResolveRepliesInOneBatch(t *testing.T) {
	msgs := []Message{
		{EventID: "$1", Sender: "@a:hs", Content: Text("x")},
		{EventID: "$2", Sender: "@b:hs", Content: Text("y"), ReplyTo: &ReplyRef{EventID: "$1"}},
	}
	if n := ResolveReplies(msgs); n != 1 {
		t.Fatalf("ResolveReplies() = %d, want 1", n)
	}
	want := &ReplyRef{EventID: "$1", Sender: "@a:hs", Snippet: "x"}
	if diff := cmp.Diff(want, msgs[1].ReplyTo); diff != "" {
		t.Errorf("reply (-want +got):\n%s", diff)
	}
}

func TestResolveRepliesLeavesUnknownTargetsEmpty(t *testing.T) {
	msgs := []Message{
		{EventID: "$2", Sender: "@b:hs", Content: Text("y"), ReplyTo: &ReplyRef{EventID: "$1"}},
	}
	if n := ResolveReplies(msgs); n != 0 {
		t.Fatalf("ResolveReplies() = %d, want 0", n)
	}
	if msgs[0].ReplyTo.Resolved() {
		t.Error("reply resolved without a target")
	}

	// Target arrives later, next pass backfills.
	msgs = append([]Message{{EventID: "$1", Sender: "@a:hs", Content: Text("x")}}, msgs...)
	if n := ResolveReplies(msgs); n != 1 {
		t.Fatalf("second ResolveReplies() = %d, want 1", n)
	}
	if msgs[1].ReplyTo.Sender != "@a:hs" {
		t.Errorf("backfilled sender = %q", msgs[1].ReplyTo.Sender)
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := Message{EventID: "$1", ReplyTo: &ReplyRef{EventID: "$0"}, Reactions: map[string]int{"👍": 1}}
	c := m.Clone()
	c.ReplyTo.Sender = "@x:hs"
	c.React("👍")
	if m.ReplyTo.Sender != "" || m.Reactions["👍"] != 1 {
		t.Error("clone shares state with the original")
	}
}

func TestStripReplyFallback(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no quote", "hello", "hello"},
		{"quote and separator", "> <@a:hs> hi\n> there\n\nreply text", "reply text"},
		{"quote without separator", "> quoted\nreply", "reply"},
		{"only quote", "> quoted", "> quoted"},
		{"multiline reply", "> q\n\nline1\nline2", "line1\nline2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripReplyFallback(tt.in); got != tt.want {
				t.Errorf("StripReplyFallback(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContentDisplay(t *testing.T) {
	tests := []struct {
		c    Content
		want string
	}{
		{Text("hi"), "hi"},
		{Content{Kind: KindEmote, Body: "waves"}, "* waves"},
		{Content{Kind: KindImage, Body: "pic", FileName: "cat.png"}, "[image] cat.png"},
		{Content{Kind: KindFile, Body: "doc.pdf"}, "[file] doc.pdf"},
	}
	for _, tt := range tests {
		if got := tt.c.Display(); got != tt.want {
			t.Errorf("Display() = %q, want %q", got, tt.want)
		}
	}
}

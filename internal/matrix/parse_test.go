package matrix

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
)

const me = "@alice:hs"

func textEvent(eventID, body string, ts int64) *event.Event {
	return &event.Event{
		Type:      event.EventMessage,
		ID:        id.EventID(eventID),
		RoomID:    "!r:hs",
		Sender:    "@bob:hs",
		Timestamp: ts,
		Content:   event.Content{Parsed: &event.MessageEventContent{MsgType: event.MsgText, Body: body}},
	}
}

func TestContentKind(t *testing.T) {
	tests := []struct {
		msgType event.MessageType
		want    chat.ContentKind
	}{
		{event.MsgText, chat.KindText},
		{event.MsgNotice, chat.KindNotice},
		{event.MsgEmote, chat.KindEmote},
		{event.MsgImage, chat.KindImage},
		{event.MsgFile, chat.KindFile},
		{event.MsgVideo, chat.KindVideo},
		{event.MsgAudio, chat.KindAudio},
		{event.MessageType("m.location"), chat.KindText},
	}
	for _, tt := range tests {
		t.Run(string(tt.msgType), func(t *testing.T) {
			if got := contentKind(tt.msgType); got != tt.want {
				t.Errorf("contentKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseMessage(t *testing.T) {
	evt := textEvent("$1", "hello", 1700000000000)
	evt.Unsigned.TransactionID = "mtui-1"

	got, ok := parseMessage(me, evt)
	if !ok {
		t.Fatal("parseMessage() rejected a text message")
	}
	want := backend.MessageReceived{
		Account:   me,
		RoomID:    "!r:hs",
		EventID:   "$1",
		TxnID:     "mtui-1",
		Sender:    "@bob:hs",
		Content:   chat.Text("hello"),
		Timestamp: time.UnixMilli(1700000000000),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMessageFromRawContent(t *testing.T) {
	// /messages responses arrive unparsed and without a type class.
	evt := &event.Event{
		Type:      event.Type{Type: "m.room.message"},
		ID:        "$1",
		RoomID:    "!r:hs",
		Sender:    "@bob:hs",
		Timestamp: 1000,
		Content:   event.Content{VeryRaw: json.RawMessage(`{"msgtype":"m.image","body":"cat.png","url":"mxc://hs/abc","info":{"size":42}}`)},
	}
	got, ok := parseMessage(me, evt)
	if !ok {
		t.Fatal("parseMessage() rejected raw content")
	}
	want := chat.Content{Kind: chat.KindImage, Body: "cat.png", MediaURL: "mxc://hs/abc", Size: 42}
	if diff := cmp.Diff(want, got.Content); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}
}

func TestParseReplyStripsFallback(t *testing.T) {
	evt := textEvent("$2", "> <@bob:hs> original\n\nanswer", 2000)
	c := evt.Content.Parsed.(*event.MessageEventContent)
	c.RelatesTo = (&event.RelatesTo{}).SetReplyTo("$1")

	got, ok := parseMessage(me, evt)
	if !ok {
		t.Fatal("parseMessage() rejected a reply")
	}
	if got.ReplyTo != "$1" || got.Content.Body != "answer" {
		t.Errorf("reply = %q body = %q, want $1 and answer", got.ReplyTo, got.Content.Body)
	}
}

func TestParseEditUsesNewContent(t *testing.T) {
	evt := textEvent("$3", "* fixed", 3000)
	c := evt.Content.Parsed.(*event.MessageEventContent)
	c.NewContent = &event.MessageEventContent{MsgType: event.MsgText, Body: "fixed"}
	c.RelatesTo = (&event.RelatesTo{}).SetReplace("$1")

	got, ok := parseMessage(me, evt)
	if !ok {
		t.Fatal("parseMessage() rejected an edit")
	}
	if got.Replaces != "$1" || got.Content.Body != "fixed" || got.ReplyTo != "" {
		t.Errorf("edit = %+v", got)
	}
}

func TestParseEncryptedPlaceholder(t *testing.T) {
	evt := &event.Event{Type: event.EventEncrypted, ID: "$4", RoomID: "!r:hs", Sender: "@bob:hs"}
	got, ok := parseMessage(me, evt)
	if !ok || got.Content.Kind != chat.KindEncrypted {
		t.Errorf("parseMessage() = %+v, %v; want encrypted placeholder", got, ok)
	}
}

func TestParseMessageIgnoresOtherTypes(t *testing.T) {
	evt := &event.Event{Type: event.EventSticker, ID: "$5", RoomID: "!r:hs"}
	if _, ok := parseMessage(me, evt); ok {
		t.Error("parseMessage() accepted a sticker")
	}
}

func TestParseReaction(t *testing.T) {
	evt := &event.Event{
		Type:   event.EventReaction,
		ID:     "$6",
		RoomID: "!r:hs",
		Sender: "@bob:hs",
		Content: event.Content{Parsed: &event.ReactionEventContent{
			RelatesTo: event.RelatesTo{Type: event.RelAnnotation, EventID: "$1", Key: "👍"},
		}},
	}
	got, ok := parseReaction(me, evt)
	if !ok {
		t.Fatal("parseReaction() rejected an annotation")
	}
	want := backend.ReactionReceived{Account: me, RoomID: "!r:hs", TargetID: "$1", Key: "👍", Sender: "@bob:hs"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reaction mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRedaction(t *testing.T) {
	tests := []struct {
		name string
		evt  *event.Event
		want string
	}{
		{"top-level redacts", &event.Event{Type: event.EventRedaction, RoomID: "!r:hs", Redacts: "$1"}, "$1"},
		{"content redacts", &event.Event{
			Type:    event.EventRedaction,
			RoomID:  "!r:hs",
			Content: event.Content{Parsed: &event.RedactionEventContent{Redacts: "$2"}},
		}, "$2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseRedaction(me, tt.evt)
			if !ok || got.EventID != tt.want || got.RoomID != "!r:hs" {
				t.Errorf("parseRedaction() = %+v, %v; want %s", got, ok, tt.want)
			}
		})
	}
}

func TestParseTyping(t *testing.T) {
	evt := &event.Event{
		Type:    event.EphemeralEventTyping,
		Content: event.Content{Parsed: &event.TypingEventContent{UserIDs: []id.UserID{"@bob:hs", "@carol:hs"}}},
	}
	got, ok := parseTyping(me, "!r:hs", evt)
	if !ok {
		t.Fatal("parseTyping() rejected typing")
	}
	if diff := cmp.Diff([]string{"@bob:hs", "@carol:hs"}, got.UserIDs); diff != "" {
		t.Errorf("users mismatch (-want +got):\n%s", diff)
	}
	if got.RoomID != "!r:hs" {
		t.Errorf("room = %q", got.RoomID)
	}
}

func TestBuildPage(t *testing.T) {
	reply := textEvent("$3", "> <@bob:hs> one\n\nre: one", 3000)
	reply.Content.Parsed.(*event.MessageEventContent).RelatesTo = (&event.RelatesTo{}).SetReplyTo("$1")

	edit := textEvent("$4", "* two!", 4000)
	ec := edit.Content.Parsed.(*event.MessageEventContent)
	ec.NewContent = &event.MessageEventContent{MsgType: event.MsgText, Body: "two!"}
	ec.RelatesTo = (&event.RelatesTo{}).SetReplace("$2")

	redacted := textEvent("$5", "", 5000)
	redacted.Unsigned.RedactedBecause = &event.Event{ID: "$6"}

	reaction := &event.Event{
		Type:    event.EventReaction,
		ID:      "$7",
		RoomID:  "!r:hs",
		Content: event.Content{Parsed: &event.ReactionEventContent{RelatesTo: event.RelatesTo{Type: event.RelAnnotation, EventID: "$1", Key: "❤"}}},
	}

	// Backward pagination returns newest first.
	chunk := []*event.Event{reaction, redacted, edit, reply, textEvent("$2", "two", 2000), textEvent("$1", "one", 1000)}
	page := buildPage(me, chunk)

	var ids []string
	for _, m := range page {
		ids = append(ids, m.EventID)
	}
	if diff := cmp.Diff([]string{"$1", "$2", "$3"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if page[0].Reactions["❤"] != 1 {
		t.Errorf("reactions = %v", page[0].Reactions)
	}
	if page[1].Content.Body != "two!" || !page[1].Edited {
		t.Errorf("edited message = %+v", page[1])
	}
	want := &chat.ReplyRef{EventID: "$1", Sender: "@bob:hs", Snippet: "one"}
	if diff := cmp.Diff(want, page[2].ReplyTo); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
	if page[2].Content.Body != "re: one" {
		t.Errorf("reply body = %q", page[2].Content.Body)
	}
}

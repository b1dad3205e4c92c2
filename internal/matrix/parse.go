package matrix

import (
	"errors"
	"time"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
)

// ensureParsed fills evt.Content.Parsed for events that came from a
// response the syncer did not process, such as /messages, and sets the
// type class so comparisons against the event type constants hold.
func ensureParsed(evt *event.Event) {
	if evt.Type.Class == event.UnknownEventType {
		if evt.StateKey != nil {
			evt.Type.Class = event.StateEventType
		} else {
			evt.Type.Class = event.MessageEventType
		}
	}
	if evt.Content.Parsed != nil || len(evt.Content.VeryRaw) == 0 {
		return
	}
	if err := evt.Content.ParseRaw(evt.Type); err != nil && !errors.Is(err, event.ErrContentAlreadyParsed) {
		evt.Content.Parsed = nil
	}
}

// contentKind maps a msgtype onto the chat content kinds.
func contentKind(t event.MessageType) chat.ContentKind {
	switch t {
	case event.MsgNotice:
		return chat.KindNotice
	case event.MsgEmote:
		return chat.KindEmote
	case event.MsgImage:
		return chat.KindImage
	case event.MsgFile:
		return chat.KindFile
	case event.MsgVideo:
		return chat.KindVideo
	case event.MsgAudio:
		return chat.KindAudio
	default:
		return chat.KindText
	}
}

// parseContent extracts the displayable body of a message.
func parseContent(c *event.MessageEventContent) chat.Content {
	out := chat.Content{
		Kind:     contentKind(c.MsgType),
		Body:     c.Body,
		MediaURL: string(c.URL),
		FileName: c.FileName,
	}
	if c.Info != nil {
		out.Size = int64(c.Info.Size)
	}
	if c.RelatesTo != nil && c.RelatesTo.GetReplyTo() != "" {
		out.Body = chat.StripReplyFallback(out.Body)
	}
	return out
}

// parseMessage converts an m.room.message or undecryptable m.room.encrypted
// event. It reports false for anything else.
func parseMessage(account string, evt *event.Event) (backend.MessageReceived, bool) {
	msg := backend.MessageReceived{
		Account:   account,
		RoomID:    evt.RoomID.String(),
		EventID:   evt.ID.String(),
		TxnID:     evt.Unsigned.TransactionID,
		Sender:    evt.Sender.String(),
		Timestamp: time.UnixMilli(evt.Timestamp),
	}
	ensureParsed(evt)
	switch evt.Type {
	case event.EventEncrypted:
		msg.Content = chat.Content{Kind: chat.KindEncrypted}
		return msg, true
	case event.EventMessage:
	default:
		return msg, false
	}
	c, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return msg, false
	}
	if rel := c.RelatesTo; rel != nil {
		if replaces := rel.GetReplaceID(); replaces != "" {
			msg.Replaces = replaces.String()
			if c.NewContent != nil {
				c = c.NewContent
			}
		}
		if reply := rel.GetReplyTo(); reply != "" && msg.Replaces == "" {
			msg.ReplyTo = reply.String()
		}
	}
	msg.Content = parseContent(c)
	return msg, true
}

// parseReaction converts an m.reaction annotation.
func parseReaction(account string, evt *event.Event) (backend.ReactionReceived, bool) {
	ensureParsed(evt)
	if evt.Type != event.EventReaction {
		return backend.ReactionReceived{}, false
	}
	c, ok := evt.Content.Parsed.(*event.ReactionEventContent)
	if !ok || c.RelatesTo.Type != event.RelAnnotation || c.RelatesTo.EventID == "" {
		return backend.ReactionReceived{}, false
	}
	return backend.ReactionReceived{
		Account:  account,
		RoomID:   evt.RoomID.String(),
		TargetID: c.RelatesTo.EventID.String(),
		Key:      c.RelatesTo.Key,
		Sender:   evt.Sender.String(),
	}, true
}

// parseRedaction converts an m.room.redaction. Newer room versions carry
// the target in the content instead of the top-level field.
func parseRedaction(account string, evt *event.Event) (backend.MessageRedacted, bool) {
	ensureParsed(evt)
	if evt.Type != event.EventRedaction {
		return backend.MessageRedacted{}, false
	}
	target := evt.Redacts
	if target == "" {
		if c, ok := evt.Content.Parsed.(*event.RedactionEventContent); ok {
			target = c.Redacts
		}
	}
	if target == "" {
		return backend.MessageRedacted{}, false
	}
	return backend.MessageRedacted{Account: account, RoomID: evt.RoomID.String(), EventID: target.String()}, true
}

// parseTyping converts an m.typing ephemeral event.
func parseTyping(account string, roomID id.RoomID, evt *event.Event) (backend.TypingChanged, bool) {
	if evt.Type != event.EphemeralEventTyping {
		return backend.TypingChanged{}, false
	}
	ensureParsed(evt)
	c, ok := evt.Content.Parsed.(*event.TypingEventContent)
	if !ok {
		return backend.TypingChanged{}, false
	}
	users := make([]string, len(c.UserIDs))
	for i, u := range c.UserIDs {
		users[i] = u.String()
	}
	if roomID == "" {
		roomID = evt.RoomID
	}
	return backend.TypingChanged{Account: account, RoomID: roomID.String(), UserIDs: users}, true
}

// toChat turns a parsed message into a timeline entry.
func toChat(m backend.MessageReceived) chat.Message {
	out := chat.Message{
		EventID:   m.EventID,
		TxnID:     m.TxnID,
		RoomID:    m.RoomID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.ReplyTo != "" {
		out.ReplyTo = &chat.ReplyRef{EventID: m.ReplyTo}
	}
	return out
}

// buildPage assembles a /messages chunk, newest first as the server returns
// it for backward pagination, into an oldest-first page. Edits and
// reactions are folded into their targets when those are in the page.
// Redacted events are dropped.
func buildPage(account string, chunk []*event.Event) []chat.Message {
	msgs := make([]chat.Message, 0, len(chunk))
	index := make(map[string]int, len(chunk))
	var (
		edits     []backend.MessageReceived
		reactions []backend.ReactionReceived
	)
	for i := len(chunk) - 1; i >= 0; i-- {
		evt := chunk[i]
		if evt.Unsigned.RedactedBecause != nil {
			continue
		}
		if r, ok := parseReaction(account, evt); ok {
			reactions = append(reactions, r)
			continue
		}
		m, ok := parseMessage(account, evt)
		if !ok {
			continue
		}
		if m.Replaces != "" {
			edits = append(edits, m)
			continue
		}
		index[m.EventID] = len(msgs)
		msgs = append(msgs, toChat(m))
	}
	for _, e := range edits {
		if i, ok := index[e.Replaces]; ok {
			msgs[i].Content = e.Content
			msgs[i].Edited = true
		}
	}
	for _, r := range reactions {
		if i, ok := index[r.TargetID]; ok {
			msgs[i].React(r.Key)
		}
	}
	chat.ResolveReplies(msgs)
	return msgs
}

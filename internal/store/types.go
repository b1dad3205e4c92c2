package store

import (
	"time"

	"github.com/matheus3301/matrixtui/internal/chat"
)

// Room represents an archived room as seen by one account.
type Room struct {
	RoomID    string
	AccountID string
	Name      string
	Topic     string
	IsDM      bool
	UpdatedAt int64
}

// Message represents an archived message.
type Message struct {
	ID        int64
	RoomID    string
	EventID   string
	AccountID string
	Sender    string
	Kind      int
	Body      string
	ReplyTo   string
	Edited    bool
	Timestamp int64 // unix millis
}

// SearchResult holds a message and the name of the room it was found in.
type SearchResult struct {
	Message  Message
	RoomName string
}

// FromChat converts a confirmed timeline message for storage.
func FromChat(account string, m chat.Message) *Message {
	out := &Message{
		RoomID:    m.RoomID,
		EventID:   m.EventID,
		AccountID: account,
		Sender:    m.Sender,
		Kind:      int(m.Content.Kind),
		Body:      m.Content.Body,
		Edited:    m.Edited,
		Timestamp: m.Timestamp.UnixMilli(),
	}
	if m.ReplyTo != nil {
		out.ReplyTo = m.ReplyTo.EventID
	}
	return out
}

// Chat converts the row back to a timeline message. Reply references come
// back unresolved.
func (m Message) Chat() chat.Message {
	out := chat.Message{
		EventID:   m.EventID,
		RoomID:    m.RoomID,
		Sender:    m.Sender,
		Content:   chat.Content{Kind: chat.ContentKind(m.Kind), Body: m.Body},
		Timestamp: time.UnixMilli(m.Timestamp),
		Edited:    m.Edited,
	}
	if m.ReplyTo != "" {
		out.ReplyTo = &chat.ReplyRef{EventID: m.ReplyTo}
	}
	return out
}

// FromRoom converts a cached room for storage.
func FromRoom(r chat.Room) *Room {
	return &Room{RoomID: r.ID, AccountID: r.AccountID, Name: r.Name, Topic: r.Topic, IsDM: r.IsDM}
}

// Package reconcile merges local echoes, live events and reactions into
// the room cache.
package reconcile

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/rooms"
)

// Outcome says what Receive did with an event.
type Outcome int

const (
	Appended Outcome = iota
	Confirmed
	Duplicate
	Edited
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case Duplicate:
		return "duplicate"
	case Edited:
		return "edited"
	}
	return "appended"
}

type echo struct {
	roomID  string
	txnID   string
	eventID string
	body    string
}

// Reconciler tracks local echoes awaiting confirmation.
//
// Echoes are matched by transaction id, then by the event id returned from
// the send call, and only then by exact body text from a local sender. The
// last rule cannot tell apart two identical messages sent in quick
// succession when the server does not echo the transaction id.
type Reconciler struct {
	pending []echo
	logger  *zap.Logger
}

// New creates an empty reconciler.
func New(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Pending returns the number of unconfirmed echoes.
func (r *Reconciler) Pending() int { return len(r.pending) }

// Echo appends a provisional message for an outgoing send.
func (r *Reconciler) Echo(c *rooms.Cache, roomID, sender, body, txnID string, reply *chat.ReplyRef, now time.Time) chat.Message {
	msg := chat.Message{
		TxnID:     txnID,
		RoomID:    roomID,
		Sender:    sender,
		Content:   chat.Text(body),
		Timestamp: now,
		ReplyTo:   reply,
	}
	c.Append(roomID, msg)
	r.pending = append(r.pending, echo{roomID: roomID, txnID: txnID, body: body})
	return msg
}

// Acknowledge records the event id the server assigned to a send.
func (r *Reconciler) Acknowledge(c *rooms.Cache, roomID, txnID, eventID string) {
	i := slices.IndexFunc(r.pending, func(e echo) bool { return e.txnID == txnID })
	if i < 0 {
		return
	}
	r.pending[i].eventID = eventID
	if _, seen := c.Lookup(roomID, eventID); seen {
		// Sync delivered the event first.
		r.pending = slices.Delete(r.pending, i, i+1)
		c.Delete(roomID, func(m *chat.Message) bool { return m.Provisional() && m.TxnID == txnID })
		return
	}
	c.Update(roomID, provisional(txnID), func(m *chat.Message) { m.EventID = eventID })
}

// Fail removes the echo of a send that did not go through.
func (r *Reconciler) Fail(c *rooms.Cache, roomID, txnID string) {
	r.pending = slices.DeleteFunc(r.pending, func(e echo) bool { return e.txnID == txnID })
	c.Delete(roomID, provisional(txnID))
}

func provisional(txnID string) func(*chat.Message) bool {
	return func(m *chat.Message) bool { return m.TxnID == txnID && txnID != "" }
}

func (r *Reconciler) match(ev backend.MessageReceived, isLocal func(string) bool) int {
	if ev.TxnID != "" {
		if i := slices.IndexFunc(r.pending, func(e echo) bool { return e.txnID == ev.TxnID }); i >= 0 {
			return i
		}
	}
	if i := slices.IndexFunc(r.pending, func(e echo) bool { return e.eventID != "" && e.eventID == ev.EventID }); i >= 0 {
		return i
	}
	if !isLocal(ev.Sender) {
		return -1
	}
	return slices.IndexFunc(r.pending, func(e echo) bool {
		return e.roomID == ev.RoomID && e.body == ev.Content.Body
	})
}

// Receive applies a live message event.
func (r *Reconciler) Receive(c *rooms.Cache, ev backend.MessageReceived, isLocal func(string) bool) Outcome {
	if ev.Replaces != "" {
		if c.Update(ev.RoomID, byEventID(ev.Replaces), func(m *chat.Message) {
			m.Content = ev.Content
			m.Edited = true
		}) > 0 {
			return Edited
		}
	}
	if i := r.match(ev, isLocal); i >= 0 {
		e := r.pending[i]
		r.pending = slices.Delete(r.pending, i, i+1)
		upgraded := c.Update(ev.RoomID, provisional(e.txnID), func(m *chat.Message) {
			m.EventID = ev.EventID
			m.Timestamp = ev.Timestamp
		})
		if upgraded > 0 {
			r.logger.Debug("local echo confirmed", zap.String("room", ev.RoomID), zap.String("event", ev.EventID))
			return Confirmed
		}
	}
	if _, seen := c.Lookup(ev.RoomID, ev.EventID); seen {
		return Duplicate
	}

	msg := chat.Message{
		EventID:   ev.EventID,
		TxnID:     ev.TxnID,
		RoomID:    ev.RoomID,
		Sender:    ev.Sender,
		Content:   ev.Content,
		Timestamp: ev.Timestamp,
	}
	if ev.ReplyTo != "" {
		msg.ReplyTo = &chat.ReplyRef{EventID: ev.ReplyTo}
		if target, ok := c.Lookup(ev.RoomID, ev.ReplyTo); ok {
			msg.ReplyTo = chat.ReplyFor(target)
		}
	}
	c.Append(ev.RoomID, msg)
	return Appended
}

// React counts a reaction on its target message.
func (r *Reconciler) React(c *rooms.Cache, ev backend.ReactionReceived) bool {
	return c.Update(ev.RoomID, byEventID(ev.TargetID), func(m *chat.Message) { m.React(ev.Key) }) > 0
}

// Redact removes a message from the room.
func (r *Reconciler) Redact(c *rooms.Cache, roomID, eventID string) bool {
	return c.Delete(roomID, byEventID(eventID)) > 0
}

// Edit replaces the text of a message after a local edit succeeded.
func (r *Reconciler) Edit(c *rooms.Cache, roomID, eventID, body string) bool {
	return c.Update(roomID, byEventID(eventID), func(m *chat.Message) {
		m.Content = chat.Text(body)
		m.Edited = true
	}) > 0
}

func byEventID(id string) func(*chat.Message) bool {
	return func(m *chat.Message) bool { return id != "" && m.EventID == id }
}

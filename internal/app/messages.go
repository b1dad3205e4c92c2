package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/nav"
	"github.com/matheus3301/matrixtui/internal/outbox"
)

// activeClient returns the open room and the client of its account.
func (c *Coordinator) activeClient() (string, backend.Client, bool) {
	roomID, accountID := c.state.Rooms.Active()
	if roomID == "" {
		return "", nil, false
	}
	a, ok := c.state.Accounts.Get(accountID)
	if !ok {
		return "", nil, false
	}
	return roomID, a.Client, true
}

// sendMessage shows a local echo and queues the send.
func (c *Coordinator) sendMessage(cmd nav.SendMessage) {
	roomID, client, ok := c.activeClient()
	if !ok {
		return
	}
	txn := outbox.NewTxnID()
	c.state.Echoes.Echo(c.state.Rooms, roomID, client.UserID(), cmd.Body, txn, cmd.Reply, time.Now())
	c.state.Rooms.ClearSelection()

	job := outbox.Job{Kind: outbox.KindText, Client: client, RoomID: roomID, Body: cmd.Body, TxnID: txn}
	if cmd.Reply != nil {
		job.Kind = outbox.KindReply
		job.Reply = cmd.Reply
		job.Target = cmd.Reply.EventID
	}
	if err := c.sender.Submit(job); err != nil {
		c.state.Echoes.Fail(c.state.Rooms, roomID, txn)
		c.state.Status = "Send failed: " + err.Error()
		return
	}
	c.notify(outbox.Job{Kind: outbox.KindTyping, Client: client, RoomID: roomID})
}

func (c *Coordinator) typing(active bool) {
	roomID, client, ok := c.activeClient()
	if !ok {
		return
	}
	c.notify(outbox.Job{Kind: outbox.KindTyping, Client: client, RoomID: roomID, Typing: active})
}

// selected returns the selected message when it has been confirmed by the
// server. Local echoes cannot be replied to or reacted on.
func (c *Coordinator) selected() (*chat.Message, bool) {
	m, ok := c.state.Rooms.Message()
	if !ok || m.Provisional() {
		return nil, false
	}
	return m, true
}

func (c *Coordinator) startReply() {
	if m, ok := c.selected(); ok {
		c.state.Nav.SetReply(*chat.ReplyFor(m))
	}
}

func (c *Coordinator) pickReaction() {
	roomID, _ := c.state.Rooms.Active()
	if m, ok := c.selected(); ok {
		c.state.Nav.OpenEmojiPicker(roomID, m.EventID)
	}
}

func (c *Coordinator) openMessageActions() {
	roomID, _ := c.state.Rooms.Active()
	m, ok := c.selected()
	if !ok {
		return
	}
	own := c.state.Accounts.IsLocal(m.Sender)
	c.state.Nav.OpenMessageActions(roomID, m.EventID, m.Content.Body, own)
}

func (c *Coordinator) react(cmd nav.SendReaction) {
	roomID, client, ok := c.activeClient()
	if !ok || roomID != cmd.RoomID {
		return
	}
	c.submit(Task{Op: "react", Room: roomID}, outbox.Job{
		Kind:   outbox.KindReaction,
		Client: client,
		RoomID: roomID,
		Target: cmd.EventID,
		Body:   cmd.Key,
	})
}

func (c *Coordinator) editMessage(cmd nav.EditMessage) {
	t := Task{Op: "edit message", Room: cmd.RoomID, Gen: cmd.Gen}
	roomID, client, ok := c.activeClient()
	if !ok || roomID != cmd.RoomID {
		c.fail(t, &backend.NotFoundError{Kind: "room", ID: cmd.RoomID})
		return
	}
	c.submit(t, outbox.Job{
		Kind:   outbox.KindEdit,
		Client: client,
		RoomID: roomID,
		Target: cmd.EventID,
		Body:   cmd.Body,
		Gen:    cmd.Gen,
	})
}

func (c *Coordinator) deleteMessage(cmd nav.DeleteMessage) {
	t := Task{Op: "delete message", Room: cmd.RoomID, Gen: cmd.Gen}
	roomID, client, ok := c.activeClient()
	if !ok || roomID != cmd.RoomID {
		c.fail(t, &backend.NotFoundError{Kind: "room", ID: cmd.RoomID})
		return
	}
	c.submit(t, outbox.Job{
		Kind:   outbox.KindRedact,
		Client: client,
		RoomID: roomID,
		Target: cmd.EventID,
		Gen:    cmd.Gen,
	})
}

func (c *Coordinator) submit(t Task, job outbox.Job) {
	if err := c.sender.Submit(job); err != nil {
		c.fail(t, err)
	}
}

// notify queues a job nobody waits for, such as a typing notice or a read
// receipt.
func (c *Coordinator) notify(job outbox.Job) {
	if err := c.sender.Submit(job); err != nil {
		c.logger.Debug("outbox job dropped",
			zap.Stringer("kind", job.Kind),
			zap.String("room", job.RoomID),
			zap.Error(err))
	}
}

// sent applies the outcome of an outbox job.
func (c *Coordinator) sent(r outbox.Result) {
	st := c.state
	job := r.Job
	t := Task{Op: "send " + job.Kind.String(), Account: job.Account(), Room: job.RoomID, Gen: job.Gen}

	switch job.Kind {
	case outbox.KindText, outbox.KindReply:
		if r.Err != nil {
			st.Echoes.Fail(st.Rooms, job.RoomID, job.TxnID)
			c.fail(t, r.Err)
			return
		}
		st.Echoes.Acknowledge(st.Rooms, job.RoomID, job.TxnID, r.EventID)
	case outbox.KindReaction:
		if r.Err != nil {
			c.fail(t, r.Err)
		}
	case outbox.KindEdit:
		if r.Err != nil {
			c.fail(t, r.Err)
			return
		}
		st.Echoes.Edit(st.Rooms, job.RoomID, job.Target, job.Body)
		st.Nav.CloseIf(job.Gen)
	case outbox.KindRedact:
		if r.Err != nil {
			c.fail(t, r.Err)
			return
		}
		st.Echoes.Redact(st.Rooms, job.RoomID, job.Target)
		st.Nav.CloseIf(job.Gen)
		c.logger.Debug("message redacted", zap.String("room", job.RoomID), zap.String("event", job.Target))
	}
}

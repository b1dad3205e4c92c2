// Package archive persists what the client sees into the local store so
// rooms open with history while offline.
package archive

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/matrixtui/internal/backend"
	"github.com/matheus3301/matrixtui/internal/bus"
	"github.com/matheus3301/matrixtui/internal/chat"
	"github.com/matheus3301/matrixtui/internal/outbox"
	"github.com/matheus3301/matrixtui/internal/store"
)

// StateLastWrite is the sync_state key holding the unix millis of the last
// archive write.
const StateLastWrite = "archive.last_write"

// Engine handles idempotent ingestion of timeline events into the store.
// It subscribes to "message." and "room." events on the bus.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new archive engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to timeline and room events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	msgs, unsubMsgs := e.bus.Subscribe("message.", 256)
	rooms, unsubRooms := e.bus.Subscribe("room.", 64)

	go func() {
		defer close(e.done)
		defer unsubMsgs()
		defer unsubRooms()
		for {
			select {
			case evt := <-msgs:
				e.handleEvent(evt)
			case evt := <-rooms:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the pending event to finish.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// RecentMessages serves archived history to the coordinator.
func (e *Engine) RecentMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	return e.db.RecentMessages(ctx, roomID, limit)
}

func (e *Engine) handleEvent(evt bus.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case backend.MessageReceived:
		err = e.IngestMessage(p)
	case outbox.Sent:
		err = e.IngestSent(p)
	case []chat.Message:
		err = e.IngestHistory(p)
	case backend.MessageRedacted:
		err = e.db.DeleteMessage(p.RoomID, p.EventID)
	case []chat.Room:
		err = e.IngestRooms(p)
	case string:
		if evt.Kind == bus.KindRoomRemoved {
			err = e.db.DeleteRoom(p)
		}
	case nil:
		if evt.Kind == bus.KindCacheCleared {
			err = e.db.ClearMessages()
		}
	default:
		return
	}
	if err != nil {
		e.logger.Error("archive write failed", zap.String("kind", evt.Kind), zap.Error(err))
		return
	}
	e.touch(evt.Timestamp)
}

// IngestMessage stores a live message, or applies it as an edit when it
// replaces an archived one.
func (e *Engine) IngestMessage(ev backend.MessageReceived) error {
	if ev.Replaces != "" {
		if _, err := e.db.EditMessage(ev.RoomID, ev.Replaces, ev.Content.Body); err != nil {
			return fmt.Errorf("edit message: %w", err)
		}
		return nil
	}
	m := &store.Message{
		RoomID:    ev.RoomID,
		EventID:   ev.EventID,
		AccountID: ev.Account,
		Sender:    ev.Sender,
		Kind:      int(ev.Content.Kind),
		Body:      ev.Content.Body,
		ReplyTo:   ev.ReplyTo,
		Timestamp: ev.Timestamp.UnixMilli(),
	}
	if err := e.db.UpsertMessage(m); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// IngestSent stores a message this client sent once the server assigned
// its event id.
func (e *Engine) IngestSent(s outbox.Sent) error {
	m := &store.Message{
		RoomID:    s.RoomID,
		EventID:   s.EventID,
		AccountID: s.Account,
		Sender:    s.Account,
		Kind:      int(chat.KindText),
		Body:      s.Body,
		Timestamp: s.Timestamp.UnixMilli(),
	}
	if err := e.db.UpsertMessage(m); err != nil {
		return fmt.Errorf("upsert sent message: %w", err)
	}
	return nil
}

// IngestHistory stores a page of fetched history. Local echoes are skipped.
func (e *Engine) IngestHistory(msgs []chat.Message) error {
	batch := make([]*store.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Provisional() {
			continue
		}
		batch = append(batch, store.FromChat("", m))
	}
	if len(batch) == 0 {
		return nil
	}
	if err := e.db.UpsertMessages(batch); err != nil {
		return err
	}
	e.logger.Debug("history page archived", zap.Int("messages", len(batch)))
	return nil
}

// IngestRooms records the joined room list.
func (e *Engine) IngestRooms(rooms []chat.Room) error {
	for _, r := range rooms {
		if err := e.db.UpsertRoom(store.FromRoom(r)); err != nil {
			return fmt.Errorf("upsert room %s: %w", r.ID, err)
		}
	}
	return nil
}

func (e *Engine) touch(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	if err := e.db.SetState(StateLastWrite, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		e.logger.Warn("record last write", zap.Error(err))
	}
}

// LastWrite reads when the archive was last written. It is zero for a
// fresh archive.
func LastWrite(db *store.DB) (time.Time, error) {
	v, err := db.State(StateLastWrite)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", StateLastWrite, err)
	}
	return time.UnixMilli(ms), nil
}

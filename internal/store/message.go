package store

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/matrixtui/internal/chat"
)

const messageColumns = `id, room_id, event_id, account_id, sender, kind, body, reply_to, edited, timestamp`

const upsertMessageSQL = `
	INSERT INTO messages (room_id, event_id, account_id, sender, kind, body, reply_to, edited, timestamp, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(room_id, event_id) DO UPDATE SET
		sender = excluded.sender,
		kind = excluded.kind,
		body = excluded.body,
		reply_to = excluded.reply_to,
		edited = excluded.edited OR messages.edited`

func upsertArgs(m *Message, now int64) []any {
	return []any{m.RoomID, m.EventID, m.AccountID, m.Sender, m.Kind, m.Body, m.ReplyTo, m.Edited, m.Timestamp, now}
}

// UpsertMessage inserts or updates a message (idempotent on room_id + event_id).
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(upsertMessageSQL, upsertArgs(m, time.Now().UnixMilli())...)
	return err
}

// UpsertMessages stores a history page in one transaction.
func (db *DB) UpsertMessages(msgs []*Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		if _, err := tx.Exec(upsertMessageSQL, upsertArgs(m, now)...); err != nil {
			return fmt.Errorf("upsert message in batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// EditMessage replaces the body of an archived message and marks it edited.
// It reports whether the message was found.
func (db *DB) EditMessage(roomID, eventID, body string) (bool, error) {
	res, err := db.Exec(`UPDATE messages SET body = ?, edited = 1 WHERE room_id = ? AND event_id = ?`,
		body, roomID, eventID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteMessage removes a redacted message.
func (db *DB) DeleteMessage(roomID, eventID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE room_id = ? AND event_id = ?`, roomID, eventID)
	return err
}

// ListMessages returns messages for a room using keyset pagination by
// timestamp, newest first.
func (db *DB) ListMessages(roomID string, beforeTs int64, limit int) ([]Message, error) {
	return db.listMessages(context.Background(), roomID, beforeTs, limit)
}

// RecentMessages returns the newest limit messages of a room, oldest first.
func (db *DB) RecentMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	rows, err := db.listMessages(ctx, roomID, 0, limit)
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, len(rows))
	for i, m := range rows {
		out[len(rows)-1-i] = m.Chat()
	}
	return out, nil
}

func (db *DB) listMessages(ctx context.Context, roomID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, roomID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.EventID, &m.AccountID, &m.Sender, &m.Kind, &m.Body, &m.ReplyTo, &m.Edited, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ClearMessages drops every archived message and room.
func (db *DB) ClearMessages() error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM rooms`); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats summarizes the archive.
type Stats struct {
	Rooms         int
	Messages      int
	LastMessageAt int64
}

// Stats counts archived rooms and messages.
func (db *DB) Stats() (Stats, error) {
	var s Stats
	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(DISTINCT room_id) FROM rooms),
			(SELECT COUNT(*) FROM messages),
			(SELECT COALESCE(MAX(timestamp), 0) FROM messages)`).Scan(&s.Rooms, &s.Messages, &s.LastMessageAt)
	return s, err
}

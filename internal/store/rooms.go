package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertRoom inserts or updates a room row for one account.
func (db *DB) UpsertRoom(r *Room) error {
	_, err := db.Exec(`
		INSERT INTO rooms (room_id, account_id, name, topic, is_dm, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, account_id) DO UPDATE SET
			name = excluded.name,
			topic = excluded.topic,
			is_dm = excluded.is_dm,
			updated_at = excluded.updated_at`,
		r.RoomID, r.AccountID, r.Name, r.Topic, r.IsDM, time.Now().UnixMilli())
	return err
}

// ListRooms returns archived rooms, optionally filtered by account, ordered
// by name.
func (db *DB) ListRooms(accountID string) ([]Room, error) {
	q := `SELECT room_id, account_id, name, topic, is_dm, updated_at FROM rooms`
	var args []any
	if accountID != "" {
		q += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	q += ` ORDER BY lower(name), room_id`

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rooms []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.RoomID, &r.AccountID, &r.Name, &r.Topic, &r.IsDM, &r.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// DeleteRoom removes a room and its messages for every account.
func (db *DB) DeleteRoom(roomID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM messages WHERE room_id = ?`, roomID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM rooms WHERE room_id = ?`, roomID); err != nil {
		return err
	}
	return tx.Commit()
}

// SetState records a key in sync_state.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// State reads a key from sync_state. Missing keys read as "".
func (db *DB) State(key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

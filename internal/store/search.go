package store

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchMessages finds messages whose body contains query, case-insensitively,
// newest first. An empty roomID searches every room.
func (db *DB) SearchMessages(query string, roomID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.room_id, m.event_id, m.account_id, m.sender, m.kind,
		       m.body, m.reply_to, m.edited, m.timestamp, COALESCE(r.name, '')
		FROM messages m
		LEFT JOIN (SELECT room_id, MAX(name) AS name FROM rooms GROUP BY room_id) r
		       ON r.room_id = m.room_id
		WHERE m.body LIKE ? ESCAPE '\'`

	args := []any{"%" + likeEscaper.Replace(query) + "%"}
	if roomID != "" {
		q += " AND m.room_id = ?"
		args = append(args, roomID)
	}
	q += " ORDER BY m.timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Message.ID, &r.Message.RoomID, &r.Message.EventID,
			&r.Message.AccountID, &r.Message.Sender, &r.Message.Kind,
			&r.Message.Body, &r.Message.ReplyTo, &r.Message.Edited,
			&r.Message.Timestamp, &r.RoomName,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

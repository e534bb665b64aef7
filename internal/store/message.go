package store

import (
	"encoding/json"
	"fmt"
	"time"
)

const upsertMessageSQL = `
	INSERT INTO messages (msg_id, conversation_id, sender_id, sender_name, receiver_id, body, files, read, edited, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(msg_id) DO UPDATE SET
		sender_name = CASE WHEN excluded.sender_name != '' THEN excluded.sender_name ELSE messages.sender_name END,
		body = excluded.body,
		files = excluded.files,
		read = MAX(messages.read, excluded.read),
		edited = MAX(messages.edited, excluded.edited),
		updated_at = excluded.updated_at`

// UpsertMessage inserts or updates a message (idempotent on msg_id).
// A message once mirrored as read never reverts to unread.
func (db *DB) UpsertMessage(m *Message) error {
	return db.UpsertMessages([]Message{*m})
}

// UpsertMessages upserts a batch of messages in one transaction.
func (db *DB) UpsertMessages(msgs []Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range msgs {
		files, err := json.Marshal(nonNil(m.Files))
		if err != nil {
			return fmt.Errorf("encode files: %w", err)
		}
		updated := m.UpdatedAt
		if updated == 0 {
			updated = time.Now().UnixMilli()
		}
		if _, err := tx.Exec(upsertMessageSQL,
			m.MsgID, m.ConversationID, m.SenderID, m.SenderName, m.ReceiverID, m.Body, string(files),
			m.Read, m.Edited, m.CreatedAt, updated); err != nil {
			return fmt.Errorf("upsert message %q: %w", m.MsgID, err)
		}
	}
	return tx.Commit()
}

// DeleteMessage removes a message by its server id. Unknown ids are ignored.
func (db *DB) DeleteMessage(msgID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE msg_id = ?`, msgID)
	return err
}

// ListMessages returns messages of a conversation using keyset pagination by
// creation time, newest first.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ? AND created_at < ?
		ORDER BY created_at DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

const messageColumns = `id, msg_id, conversation_id, sender_id, sender_name, receiver_id, body, files, read, edited, created_at, updated_at`

func scanMessage(s scanner, extra ...any) (*Message, error) {
	var m Message
	var files string
	dest := append([]any{&m.ID, &m.MsgID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.ReceiverID,
		&m.Body, &files, &m.Read, &m.Edited, &m.CreatedAt, &m.UpdatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(files), &m.Files); err != nil {
		return nil, fmt.Errorf("decode files of %q: %w", m.MsgID, err)
	}
	return &m, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

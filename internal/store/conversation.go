package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ReplaceConversations makes the mirrored conversation list equal to convs.
// Participant profiles are upserted along the way. Messages are kept.
func (db *DB) ReplaceConversations(convs []Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, c := range convs {
		if err := insertConversation(tx, &c, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertConversation inserts or replaces a single conversation.
func (db *DB) UpsertConversation(c *Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear conversation %q: %w", c.ID, err)
	}
	if err := insertConversation(tx, c, time.Now().UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

func insertConversation(tx *sql.Tx, c *Conversation, now int64) error {
	if _, err := tx.Exec(`
		INSERT INTO conversations (id, unread_count, last_message_id, last_message_preview,
			last_message_sender_id, last_message_read, last_activity_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UnreadCount, c.LastMessageID, c.LastMessagePreview,
		c.LastMessageSenderID, c.LastMessageRead, c.LastActivityAt, c.CreatedAt, c.UpdatedAt); err != nil {
		return fmt.Errorf("insert conversation %q: %w", c.ID, err)
	}
	for i, u := range c.Participants {
		if err := upsertUser(tx, u, now); err != nil {
			return fmt.Errorf("upsert user %q: %w", u.ID, err)
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO conversation_participants (conversation_id, user_id, position)
			VALUES (?, ?, ?)`, c.ID, u.ID, i); err != nil {
			return fmt.Errorf("insert participant %q: %w", u.ID, err)
		}
	}
	return nil
}

// ListConversations returns conversations sorted by last activity descending.
func (db *DB) ListConversations(limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, unread_count, last_message_id, last_message_preview, last_message_sender_id,
			last_message_read, last_activity_at, created_at, updated_at
		FROM conversations
		ORDER BY last_activity_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range convs {
		if convs[i].Participants, err = db.participants(convs[i].ID); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

// GetConversation returns a single conversation, or nil when not mirrored.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	row := db.QueryRow(`
		SELECT id, unread_count, last_message_id, last_message_preview, last_message_sender_id,
			last_message_read, last_activity_at, created_at, updated_at
		FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Participants, err = db.participants(id); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteConversation removes a conversation and its messages.
func (db *DB) DeleteConversation(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*Conversation, error) {
	var c Conversation
	if err := s.Scan(&c.ID, &c.UnreadCount, &c.LastMessageID, &c.LastMessagePreview, &c.LastMessageSenderID,
		&c.LastMessageRead, &c.LastActivityAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// participants resolves profiles via LEFT JOIN so an unknown user still
// shows up with its id.
func (db *DB) participants(conversationID string) ([]User, error) {
	rows, err := db.Query(`
		SELECT p.user_id, COALESCE(u.fullname, ''), COALESCE(u.username, ''), COALESCE(u.email, '')
		FROM conversation_participants p
		LEFT JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = ?
		ORDER BY p.position`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Fullname, &u.Username, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

package store

import (
	"database/sql"
	"fmt"
	"time"
)

const upsertUserSQL = `
	INSERT INTO users (id, fullname, username, email, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		fullname = CASE WHEN excluded.fullname != '' THEN excluded.fullname ELSE users.fullname END,
		username = CASE WHEN excluded.username != '' THEN excluded.username ELSE users.username END,
		email = CASE WHEN excluded.email != '' THEN excluded.email ELSE users.email END,
		updated_at = excluded.updated_at`

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertUser(ex execer, u User, now int64) error {
	_, err := ex.Exec(upsertUserSQL, u.ID, u.Fullname, u.Username, u.Email, now)
	return err
}

// UpsertUsers inserts or updates profiles in a single transaction. Empty
// fields never overwrite known ones, since previews carry partial profiles.
func (db *DB) UpsertUsers(users []User) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, u := range users {
		if err := upsertUser(tx, u, now); err != nil {
			return fmt.Errorf("upsert user %q: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// GetUser returns a profile by id, or nil when unknown.
func (db *DB) GetUser(id string) (*User, error) {
	var u User
	err := db.QueryRow(`SELECT id, fullname, username, email FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Fullname, &u.Username, &u.Email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

package store

import (
	"database/sql"
	"time"
)

// Keys used in sync_state.
const (
	StateToken         = "auth.token"
	StateIdentity      = "auth.identity"
	StateUnreadCount   = "sync.unread_count"
	StateLastRefreshAt = "sync.last_refresh_at"
)

// SetState stores a sync_state value.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// GetState returns a sync_state value and whether it was set.
func (db *DB) GetState(key string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// DeleteState removes keys from sync_state.
func (db *DB) DeleteState(keys ...string) error {
	for _, k := range keys {
		if _, err := db.Exec(`DELETE FROM sync_state WHERE key = ?`, k); err != nil {
			return err
		}
	}
	return nil
}

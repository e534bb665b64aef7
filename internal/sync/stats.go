package sync

import (
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/inbox/internal/store"
)

// Stats summarizes what the mirror holds.
type Stats struct {
	Owner         string
	Conversations int64
	Messages      int64
	UnreadCount   int
	LastRefreshAt time.Time
	SchemaVersion uint
}

// ReadStats collects mirror statistics and the last sync checkpoints.
func ReadStats(db *store.DB) (*Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.Conversations, err = db.ConversationCount(); err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}
	if st.Messages, err = db.MessageCount(); err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if st.SchemaVersion, err = db.SchemaVersion(); err != nil {
		return nil, fmt.Errorf("schema version: %w", err)
	}
	if st.Owner, _, err = db.GetState(stateOwner); err != nil {
		return nil, err
	}

	if v, ok, err := db.GetState(store.StateUnreadCount); err != nil {
		return nil, err
	} else if ok {
		st.UnreadCount, _ = strconv.Atoi(v)
	}
	if v, ok, err := db.GetState(store.StateLastRefreshAt); err != nil {
		return nil, err
	} else if ok {
		st.LastRefreshAt, _ = time.Parse(time.RFC3339, v)
	}
	return &st, nil
}

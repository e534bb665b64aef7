package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/poll"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/store"
	"go.uber.org/zap"
)

// EventUpdated is published after each successful mirror write.
const EventUpdated = "mirror.updated"

// stateOwner records which identity the mirrored rows belong to.
const stateOwner = "mirror.owner"

// Update is the payload of EventUpdated.
type Update struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Engine mirrors the synchronizer's confirmed state into the local store.
// It subscribes to "chat." and "poll." events on the bus; pending messages are
// never written.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new mirror engine.
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

// Start subscribes to synchronizer events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	chatCh, unsubChat := e.bus.Subscribe("chat.", 256)
	pollCh, unsubPoll := e.bus.Subscribe(poll.EventTick, 16)

	go func() {
		defer close(e.done)
		defer unsubChat()
		defer unsubPoll()
		for {
			select {
			case evt := <-chatCh:
				e.handleEvent(evt)
			case evt := <-pollCh:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	var (
		n   int
		err error
	)
	switch evt.Kind {
	case chat.EventIdentity:
		u, _ := evt.Payload.(*remote.User)
		err = e.SwitchOwner(u)
	case chat.EventConversations:
		convs, ok := evt.Payload.([]remote.Conversation)
		if !ok {
			return
		}
		n, err = len(convs), e.MirrorConversations(convs)
	case chat.EventMessages:
		msgs, ok := evt.Payload.([]chat.Message)
		if !ok {
			return
		}
		n, err = e.MirrorMessages(msgs)
	case chat.EventMessageDeleted:
		id, ok := evt.Payload.(string)
		if !ok {
			return
		}
		n, err = 1, e.db.DeleteMessage(id)
	case chat.EventUnread:
		count, ok := evt.Payload.(int)
		if !ok {
			return
		}
		err = e.db.SetState(store.StateUnreadCount, fmt.Sprint(count))
	case poll.EventTick:
		tick, ok := evt.Payload.(poll.Tick)
		if !ok || tick.Err != nil {
			return
		}
		err = e.db.SetState(store.StateLastRefreshAt, tick.Started.UTC().Format(time.RFC3339))
	default:
		return
	}

	if err != nil {
		e.logger.Error("failed to mirror event", zap.String("kind", evt.Kind), zap.Error(err))
		return
	}
	e.bus.Emit(EventUpdated, Update{Source: evt.Kind, Count: n})
}

// SwitchOwner clears the mirror when the signed-in identity differs from the
// one its rows belong to. A nil user clears it unconditionally.
func (e *Engine) SwitchOwner(u *remote.User) error {
	owner, _, err := e.db.GetState(stateOwner)
	if err != nil {
		return fmt.Errorf("read owner: %w", err)
	}
	if u != nil && u.ID == owner {
		return nil
	}
	if err := e.db.Reset(); err != nil {
		return fmt.Errorf("reset mirror: %w", err)
	}
	if err := e.db.DeleteState(store.StateUnreadCount, store.StateLastRefreshAt); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}
	if u == nil {
		return e.db.DeleteState(stateOwner)
	}
	e.logger.Info("mirror owner changed", zap.String("identity", u.ID))
	return e.db.SetState(stateOwner, u.ID)
}

// MirrorConversations replaces the mirrored conversation list.
func (e *Engine) MirrorConversations(convs []remote.Conversation) error {
	rows := make([]store.Conversation, len(convs))
	for i := range convs {
		rows[i] = toStoreConversation(&convs[i])
	}
	if err := e.db.ReplaceConversations(rows); err != nil {
		return fmt.Errorf("replace conversations: %w", err)
	}
	return nil
}

// MirrorMessages upserts the confirmed messages of msgs and returns how many
// were written.
func (e *Engine) MirrorMessages(msgs []chat.Message) (int, error) {
	rows := make([]store.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Pending() {
			continue
		}
		rows = append(rows, toStoreMessage(m))
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := e.db.UpsertMessages(rows); err != nil {
		return 0, fmt.Errorf("upsert messages: %w", err)
	}
	return len(rows), nil
}

func toStoreUser(u remote.User) store.User {
	return store.User{ID: u.ID, Fullname: u.Fullname, Username: u.Username, Email: u.Email}
}

func toStoreConversation(c *remote.Conversation) store.Conversation {
	sc := store.Conversation{
		ID:          c.ID,
		UnreadCount: c.UnreadCount,
		CreatedAt:   millis(c.CreatedAt),
		UpdatedAt:   millis(c.UpdatedAt),
	}
	for _, u := range c.Users {
		sc.Participants = append(sc.Participants, toStoreUser(u))
	}
	sc.LastActivityAt = sc.CreatedAt
	if lm := c.LastMessage; lm != nil {
		sc.LastMessageID = lm.ID
		sc.LastMessagePreview = truncate(lm.Message, 100)
		sc.LastMessageRead = lm.Read
		if lm.Sender != nil {
			sc.LastMessageSenderID = lm.Sender.ID
		}
		if !lm.CreatedAt.IsZero() {
			sc.LastActivityAt = millis(lm.CreatedAt)
		}
	}
	return sc
}

func toStoreMessage(m chat.Message) store.Message {
	return store.Message{
		MsgID:          m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.Sender.ID,
		SenderName:     m.Sender.DisplayName(),
		ReceiverID:     m.Receiver.ID,
		Body:           m.Body,
		Files:          m.Files,
		Read:           m.Read,
		Edited:         m.State == chat.StateEdited,
		CreatedAt:      millis(m.CreatedAt),
		UpdatedAt:      millis(m.UpdatedAt),
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

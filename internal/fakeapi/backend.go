// Package fakeapi is an in-memory implementation of the inventory messaging
// REST API. It backs local development (cmd/inboxstub) and end-to-end tests.
package fakeapi

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/inbox/internal/remote"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultConversationLimit = 20
	defaultMessageLimit      = 50
)

// apiError carries the HTTP status a handler should answer with.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func fail(status int, format string, args ...any) error {
	return &apiError{status: status, msg: fmt.Sprintf(format, args...)}
}

type account struct {
	user remote.User
	hash []byte
}

type conversation struct {
	id        string
	userIDs   []string
	createdAt time.Time
	updatedAt time.Time
}

type message struct {
	id             string
	conversationID string
	senderID       string
	receiverID     string
	body           string
	files          []string
	read           bool
	createdAt      time.Time
	updatedAt      time.Time
}

// Backend holds users, conversations and messages. All methods are safe for
// concurrent use.
type Backend struct {
	mu       sync.Mutex
	now      func() time.Time
	last     time.Time
	accounts map[string]*account
	byEmail  map[string]string
	convs    map[string]*conversation
	msgs     map[string]*message
	revoked  map[string]struct{}
}

// NewBackend returns an empty backend.
func NewBackend() *Backend {
	return &Backend{
		now:      time.Now,
		accounts: make(map[string]*account),
		byEmail:  make(map[string]string),
		convs:    make(map[string]*conversation),
		msgs:     make(map[string]*message),
		revoked:  make(map[string]struct{}),
	}
}

// tick returns a timestamp strictly after the previous one so that ordering
// by time is total even within one clock tick.
func (b *Backend) tick() time.Time {
	t := b.now().UTC().Truncate(time.Millisecond)
	if !t.After(b.last) {
		t = b.last.Add(time.Millisecond)
	}
	b.last = t
	return t
}

// AddUser registers an account. Emails are unique, case-insensitively.
func (b *Backend) AddUser(fullname, username, email, password string) (remote.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return remote.User{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := b.byEmail[key]; ok {
		return remote.User{}, fail(http.StatusConflict, "email %s already registered", email)
	}
	u := remote.User{ID: uuid.NewString(), Fullname: fullname, Username: username, Email: email}
	b.accounts[u.ID] = &account{user: u, hash: hash}
	b.byEmail[key] = u.ID
	return u, nil
}

func (b *Backend) authenticate(email, password string) (remote.User, error) {
	b.mu.Lock()
	acc, ok := b.accounts[b.byEmail[strings.ToLower(email)]]
	b.mu.Unlock()
	if !ok {
		return remote.User{}, fail(http.StatusUnauthorized, "wrong email/password")
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return remote.User{}, fail(http.StatusUnauthorized, "wrong email/password")
	}
	return acc.user, nil
}

func (b *Backend) revoke(tokenID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[tokenID] = struct{}{}
}

func (b *Backend) isRevoked(tokenID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[tokenID]
	return ok
}

func (b *Backend) user(id string) (remote.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[id]
	if !ok {
		return remote.User{}, fail(http.StatusNotFound, "user not found")
	}
	return acc.user, nil
}

func (b *Backend) userLocked(id string) remote.User {
	if acc, ok := b.accounts[id]; ok {
		return acc.user
	}
	return remote.User{ID: id}
}

// conversationLocked returns the conversation if userID takes part in it.
// Others get a 404 so ids do not leak.
func (b *Backend) conversationLocked(userID, id string) (*conversation, error) {
	c, ok := b.convs[id]
	if !ok || !slices.Contains(c.userIDs, userID) {
		return nil, fail(http.StatusNotFound, "conversation not found")
	}
	return c, nil
}

func (b *Backend) messagesOfLocked(convID string) []*message {
	var out []*message
	for _, m := range b.msgs {
		if m.conversationID == convID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(x, y *message) int { return x.createdAt.Compare(y.createdAt) })
	return out
}

func (b *Backend) viewConversationLocked(c *conversation, viewer string) remote.Conversation {
	out := remote.Conversation{
		ID:        c.id,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
	for _, id := range c.userIDs {
		out.Users = append(out.Users, b.userLocked(id))
	}
	msgs := b.messagesOfLocked(c.id)
	for _, m := range msgs {
		if m.receiverID == viewer && !m.read {
			out.UnreadCount++
		}
	}
	if n := len(msgs); n > 0 {
		last := msgs[n-1]
		sender := b.userLocked(last.senderID)
		out.LastMessage = &remote.LastMessage{
			ID:        last.id,
			Message:   last.body,
			Sender:    &sender,
			Read:      last.read,
			CreatedAt: last.createdAt,
		}
	}
	return out
}

func (b *Backend) viewMessageLocked(m *message) remote.Message {
	return remote.Message{
		ID:             m.id,
		ConversationID: m.conversationID,
		Sender:         b.userLocked(m.senderID),
		Receiver:       b.userLocked(m.receiverID),
		Body:           m.body,
		Files:          slices.Clone(m.files),
		Read:           m.read,
		CreatedAt:      m.createdAt,
		UpdatedAt:      m.updatedAt,
	}
}

// page slices a list into the given 1-based page.
func page[T any](items []T, pageNum, limit int) []T {
	start := (pageNum - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	return items[start:min(start+limit, len(items))]
}

func normalizePage(pageNum, limit, defaultLimit int) (int, int) {
	if pageNum < 1 {
		pageNum = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	return pageNum, limit
}

func (b *Backend) listConversations(userID string, pageNum, limit int) []remote.Conversation {
	pageNum, limit = normalizePage(pageNum, limit, defaultConversationLimit)

	b.mu.Lock()
	defer b.mu.Unlock()
	var mine []*conversation
	for _, c := range b.convs {
		if slices.Contains(c.userIDs, userID) {
			mine = append(mine, c)
		}
	}
	slices.SortFunc(mine, func(x, y *conversation) int { return y.updatedAt.Compare(x.updatedAt) })

	out := make([]remote.Conversation, 0, len(mine))
	for _, c := range page(mine, pageNum, limit) {
		out = append(out, b.viewConversationLocked(c, userID))
	}
	return out
}

func (b *Backend) getConversation(userID, id string) (remote.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.conversationLocked(userID, id)
	if err != nil {
		return remote.Conversation{}, err
	}
	return b.viewConversationLocked(c, userID), nil
}

// directLocked finds the conversation between exactly a and b.
func (b *Backend) directLocked(a, other string) *conversation {
	var found *conversation
	for _, c := range b.convs {
		if len(c.userIDs) == 2 && slices.Contains(c.userIDs, a) && slices.Contains(c.userIDs, other) {
			if found == nil || c.updatedAt.After(found.updatedAt) {
				found = c
			}
		}
	}
	return found
}

func (b *Backend) createLocked(userIDs []string) *conversation {
	now := b.tick()
	c := &conversation{id: uuid.NewString(), userIDs: userIDs, createdAt: now, updatedAt: now}
	b.convs[c.id] = c
	return c
}

// conversationWith returns the direct conversation with otherID, creating it
// when the two users have never talked.
func (b *Backend) conversationWith(userID, otherID string) (remote.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[otherID]; !ok || otherID == userID {
		return remote.Conversation{}, fail(http.StatusNotFound, "user not found")
	}
	c := b.directLocked(userID, otherID)
	if c == nil {
		c = b.createLocked([]string{userID, otherID})
	}
	return b.viewConversationLocked(c, userID), nil
}

func (b *Backend) createConversation(userID string, participantIDs []string) (remote.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := []string{userID}
	for _, id := range participantIDs {
		if _, ok := b.accounts[id]; !ok {
			return remote.Conversation{}, fail(http.StatusBadRequest, "unknown participant %s", id)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return remote.Conversation{}, fail(http.StatusBadRequest, "a conversation needs at least two participants")
	}
	c := b.createLocked(ids)
	return b.viewConversationLocked(c, userID), nil
}

func (b *Backend) updateConversation(userID, id string, action remote.MembershipAction, target string) (remote.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.conversationLocked(userID, id)
	if err != nil {
		return remote.Conversation{}, err
	}
	if _, ok := b.accounts[target]; !ok {
		return remote.Conversation{}, fail(http.StatusBadRequest, "unknown user %s", target)
	}
	switch action {
	case remote.ActionAdd:
		if !slices.Contains(c.userIDs, target) {
			c.userIDs = append(c.userIDs, target)
		}
	case remote.ActionRemove:
		i := slices.Index(c.userIDs, target)
		if i < 0 {
			return remote.Conversation{}, fail(http.StatusBadRequest, "user is not a participant")
		}
		if len(c.userIDs) <= 2 {
			return remote.Conversation{}, fail(http.StatusBadRequest, "a conversation needs at least two participants")
		}
		c.userIDs = slices.Delete(c.userIDs, i, i+1)
	default:
		return remote.Conversation{}, fail(http.StatusBadRequest, "unknown action %q", action)
	}
	c.updatedAt = b.tick()
	return b.viewConversationLocked(c, userID), nil
}

func (b *Backend) deleteConversation(userID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.conversationLocked(userID, id); err != nil {
		return err
	}
	delete(b.convs, id)
	for mid, m := range b.msgs {
		if m.conversationID == id {
			delete(b.msgs, mid)
		}
	}
	return nil
}

// listMessages returns one page of a conversation, oldest first. Page 1 holds
// the newest messages.
func (b *Backend) listMessages(userID, convID string, pageNum, limit int) ([]remote.Message, error) {
	pageNum, limit = normalizePage(pageNum, limit, defaultMessageLimit)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.conversationLocked(userID, convID); err != nil {
		return nil, err
	}
	msgs := b.messagesOfLocked(convID)
	end := len(msgs) - (pageNum-1)*limit
	if end <= 0 {
		return []remote.Message{}, nil
	}
	start := max(0, end-limit)

	out := make([]remote.Message, 0, end-start)
	for _, m := range msgs[start:end] {
		out = append(out, b.viewMessageLocked(m))
	}
	return out, nil
}

// sendMessage stores a message in the most recently active conversation the
// sender shares with the receiver, preferring their direct conversation. A
// direct conversation is created when none exists.
func (b *Backend) sendMessage(userID string, req remote.SendMessageRequest) (remote.Message, error) {
	if strings.TrimSpace(req.Message) == "" && len(req.Files) == 0 {
		return remote.Message{}, fail(http.StatusBadRequest, "message or files required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[req.ReceiverID]; !ok || req.ReceiverID == userID {
		return remote.Message{}, fail(http.StatusBadRequest, "invalid receiver")
	}

	c := b.directLocked(userID, req.ReceiverID)
	if c == nil {
		for _, cand := range b.convs {
			if slices.Contains(cand.userIDs, userID) && slices.Contains(cand.userIDs, req.ReceiverID) {
				if c == nil || cand.updatedAt.After(c.updatedAt) {
					c = cand
				}
			}
		}
	}
	if c == nil {
		c = b.createLocked([]string{userID, req.ReceiverID})
	}

	now := b.tick()
	m := &message{
		id:             uuid.NewString(),
		conversationID: c.id,
		senderID:       userID,
		receiverID:     req.ReceiverID,
		body:           req.Message,
		files:          slices.Clone(req.Files),
		createdAt:      now,
		updatedAt:      now,
	}
	b.msgs[m.id] = m
	c.updatedAt = now
	return b.viewMessageLocked(m), nil
}

func (b *Backend) messageLocked(userID, id string) (*message, error) {
	m, ok := b.msgs[id]
	if !ok {
		return nil, fail(http.StatusNotFound, "message not found")
	}
	if _, err := b.conversationLocked(userID, m.conversationID); err != nil {
		return nil, fail(http.StatusNotFound, "message not found")
	}
	return m, nil
}

func (b *Backend) updateMessage(userID, id, body string) (remote.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.messageLocked(userID, id)
	if err != nil {
		return remote.Message{}, err
	}
	if m.senderID != userID {
		return remote.Message{}, fail(http.StatusForbidden, "only the sender can edit a message")
	}
	m.body = body
	m.updatedAt = b.tick()
	return b.viewMessageLocked(m), nil
}

func (b *Backend) markRead(userID, id string) (remote.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.messageLocked(userID, id)
	if err != nil {
		return remote.Message{}, err
	}
	if m.receiverID == userID && !m.read {
		m.read = true
		m.updatedAt = b.tick()
	}
	return b.viewMessageLocked(m), nil
}

func (b *Backend) deleteMessage(userID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.messageLocked(userID, id)
	if err != nil {
		return err
	}
	if m.senderID != userID {
		return fail(http.StatusForbidden, "only the sender can delete a message")
	}
	delete(b.msgs, id)
	return nil
}

func (b *Backend) unreadCount(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, m := range b.msgs {
		if m.receiverID == userID && !m.read {
			if _, ok := b.convs[m.conversationID]; ok {
				n++
			}
		}
	}
	return n
}

// searchMessages matches query case-insensitively against message bodies
// in the conversations userID takes part in, newest first.
func (b *Backend) searchMessages(userID, query, convID string) ([]remote.Message, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, fail(http.StatusBadRequest, "query required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if convID != "" {
		if _, err := b.conversationLocked(userID, convID); err != nil {
			return nil, err
		}
	}
	var hits []*message
	for _, m := range b.msgs {
		if convID != "" && m.conversationID != convID {
			continue
		}
		if _, err := b.conversationLocked(userID, m.conversationID); err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(m.body), q) {
			hits = append(hits, m)
		}
	}
	slices.SortFunc(hits, func(x, y *message) int { return y.createdAt.Compare(x.createdAt) })

	out := make([]remote.Message, 0, len(hits))
	for _, m := range hits {
		out = append(out, b.viewMessageLocked(m))
	}
	return out, nil
}

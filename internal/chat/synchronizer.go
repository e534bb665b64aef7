package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/remote"
	"go.uber.org/zap"
)

// Options tunes page sizes of list requests.
type Options struct {
	ConversationLimit int
	MessageLimit      int
}

func (o Options) withDefaults() Options {
	if o.ConversationLimit <= 0 {
		o.ConversationLimit = 20
	}
	if o.MessageLimit <= 0 {
		o.MessageLimit = 50
	}
	return o
}

// Synchronizer owns the conversation/message view of one identity and keeps
// it consistent with the backend. Every state change is announced on the bus.
//
// Responses are applied only while the identity (and, for message loads, the
// selected conversation) they were requested for is still current. Each
// change of identity or selection bumps a generation counter; requests carry
// the counters they started with.
type Synchronizer struct {
	backend Backend
	bus     *bus.Bus
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
	newID   func() string

	mu             sync.Mutex
	identity       *remote.User
	identityGen    uint64
	selectGen      uint64
	searchGen      uint64
	inflight       int
	st             state
	read           map[string]struct{}
	onUnauthorized func()
}

type state struct {
	conversations []remote.Conversation
	current       *remote.Conversation
	currentID     string
	messages      []Message
	unread        int
	search        []remote.Message
	searching     bool
	err           string
}

type ticket struct {
	identity  uint64
	selection uint64
	search    uint64
}

// New creates a synchronizer with no identity.
func New(backend Backend, b *bus.Bus, logger *zap.Logger, opts Options) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if b == nil {
		b = bus.New()
	}
	return &Synchronizer{
		backend: backend,
		bus:     b,
		logger:  logger,
		opts:    opts.withDefaults(),
		now:     time.Now,
		newID:   uuid.NewString,
		read:    make(map[string]struct{}),
	}
}

// SetUnauthorizedHandler registers fn to run when the backend rejects the
// identity's credentials. fn runs on its own goroutine.
func (s *Synchronizer) SetUnauthorizedHandler(fn func()) {
	s.mu.Lock()
	s.onUnauthorized = fn
	s.mu.Unlock()
}

// SetIdentity switches the identity the state belongs to. Any change resets
// the whole state and invalidates in-flight responses. Setting the same user
// again only refreshes the profile fields. Returns whether the identity changed.
func (s *Synchronizer) SetIdentity(u *remote.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u != nil && s.identity != nil && u.ID == s.identity.ID {
		cp := *u
		s.identity = &cp
		return false
	}
	if u == nil && s.identity == nil {
		return false
	}

	s.identityGen++
	s.selectGen++
	s.searchGen++
	s.st = state{}
	s.read = make(map[string]struct{})
	s.identity = nil
	var payload *remote.User
	if u != nil {
		cp := *u
		s.identity = &cp
		p := cp
		payload = &p
	}
	s.logger.Info("identity changed", zap.Bool("signed_in", u != nil))
	s.bus.Emit(EventIdentity, payload)
	return true
}

// Identity returns a copy of the current identity, or nil.
func (s *Synchronizer) Identity() *remote.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// Snapshot returns a copy of the current state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Conversations:       cloneConversations(s.st.conversations),
		CurrentConversation: cloneConversation(s.st.current),
		CurrentID:           s.st.currentID,
		Messages:            slices.Clone(s.st.messages),
		UnreadCount:         s.st.unread,
		SearchResults:       slices.Clone(s.st.search),
		Loading:             s.inflight > 0,
		Searching:           s.st.searching,
		Error:               s.st.err,
	}
	if snap.Messages == nil {
		snap.Messages = []Message{}
	}
	if snap.SearchResults == nil {
		snap.SearchResults = []remote.Message{}
	}
	if s.identity != nil {
		cp := *s.identity
		snap.Identity = &cp
	}
	return snap
}

// DismissError clears the error notice.
func (s *Synchronizer) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.err == "" {
		return
	}
	s.st.err = ""
	s.bus.Emit(EventError, "")
}

func (s *Synchronizer) ticketLocked() ticket {
	return ticket{identity: s.identityGen, selection: s.selectGen, search: s.searchGen}
}

func (s *Synchronizer) identityCurrent(t ticket) bool {
	return t.identity == s.identityGen
}

func (s *Synchronizer) selectionCurrent(t ticket) bool {
	return t.identity == s.identityGen && t.selection == s.selectGen
}

func (s *Synchronizer) staleLocked(op string) error {
	s.logger.Debug("discarding superseded response", zap.String("op", op))
	return ErrStale
}

// failLocked records err as the user-visible error and returns it wrapped.
func (s *Synchronizer) failLocked(op string, err error) error {
	msg := op + ": " + err.Error()
	s.st.err = msg
	s.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
	s.bus.Emit(EventError, msg)
	s.checkUnauthorizedLocked(err)
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Synchronizer) checkUnauthorizedLocked(err error) {
	if errors.Is(err, remote.ErrUnauthorized) && s.onUnauthorized != nil {
		go s.onUnauthorized()
	}
}

func (s *Synchronizer) emitMessagesLocked() {
	s.bus.Emit(EventMessages, slices.Clone(s.st.messages))
}

func (s *Synchronizer) emitSelectionLocked() {
	s.bus.Emit(EventSelection, s.st.currentID)
}

// begin registers an in-flight request for the current identity.
func (s *Synchronizer) begin() (ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ticket{}, ErrSignedOut
	}
	s.inflight++
	return s.ticketLocked(), nil
}

func (s *Synchronizer) endLocked() {
	if s.inflight > 0 {
		s.inflight--
	}
}

// LoadConversations replaces the conversation list with the server's.
// On failure the previous list stays and the error is recorded.
func (s *Synchronizer) LoadConversations(ctx context.Context) error {
	t, err := s.begin()
	if err != nil {
		return err
	}

	convs, err := s.backend.ListConversations(ctx, 1, s.opts.ConversationLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
	if !s.identityCurrent(t) {
		return s.staleLocked("load conversations")
	}
	if err != nil {
		return s.failLocked("load conversations", err)
	}

	convs = cloneConversations(convs)
	applyConversationReads(convs, s.read)
	sortConversations(convs)
	s.st.conversations = convs
	s.bus.Emit(EventConversations, cloneConversations(convs))
	return nil
}

// CreateConversation creates a conversation, reloads the list and selects
// the new conversation. Nothing is inserted locally before the server
// assigns an id.
func (s *Synchronizer) CreateConversation(ctx context.Context, participantIDs []string) (*remote.Conversation, error) {
	t, err := s.begin()
	if err != nil {
		return nil, err
	}

	conv, err := s.backend.CreateConversation(ctx, participantIDs)

	s.mu.Lock()
	s.endLocked()
	if !s.identityCurrent(t) {
		err = s.staleLocked("create conversation")
		s.mu.Unlock()
		return nil, err
	}
	if err != nil {
		err = s.failLocked("create conversation", err)
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if err := s.LoadConversations(ctx); errors.Is(err, ErrStale) || errors.Is(err, ErrSignedOut) {
		return nil, err
	}
	if err := s.SelectConversation(ctx, conv.ID); err != nil {
		return conv, err
	}
	return conv, nil
}

// OpenConversationWith selects the direct conversation with userID.
func (s *Synchronizer) OpenConversationWith(ctx context.Context, userID string) (*remote.Conversation, error) {
	t, err := s.begin()
	if err != nil {
		return nil, err
	}

	conv, err := s.backend.ConversationWith(ctx, userID)

	s.mu.Lock()
	s.endLocked()
	if !s.identityCurrent(t) {
		err = s.staleLocked("open conversation")
		s.mu.Unlock()
		return nil, err
	}
	if err != nil {
		err = s.failLocked("open conversation", err)
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	if err := s.SelectConversation(ctx, conv.ID); err != nil {
		return conv, err
	}
	return conv, nil
}

// UpdateConversation adds or removes a participant and reloads the list.
func (s *Synchronizer) UpdateConversation(ctx context.Context, id string, action remote.MembershipAction, userID string) (*remote.Conversation, error) {
	t, err := s.begin()
	if err != nil {
		return nil, err
	}

	conv, err := s.backend.UpdateConversation(ctx, id, action, userID)

	s.mu.Lock()
	s.endLocked()
	if !s.identityCurrent(t) {
		err = s.staleLocked("update conversation")
		s.mu.Unlock()
		return nil, err
	}
	if err != nil {
		err = s.failLocked("update conversation", err)
		s.mu.Unlock()
		return nil, err
	}
	if s.st.currentID == id {
		s.st.current = cloneConversation(conv)
		s.emitSelectionLocked()
	}
	s.mu.Unlock()

	if err := s.LoadConversations(ctx); err != nil {
		s.logger.Debug("conversation reload after update failed", zap.Error(err))
	}
	return conv, nil
}

// DeleteConversation deletes a conversation and reloads the list. Deleting
// the selected conversation clears the selection and its messages. The
// conversation is not removed locally unless the server confirmed.
func (s *Synchronizer) DeleteConversation(ctx context.Context, id string) error {
	t, err := s.begin()
	if err != nil {
		return err
	}

	err = s.backend.DeleteConversation(ctx, id)

	s.mu.Lock()
	s.endLocked()
	if !s.identityCurrent(t) {
		err = s.staleLocked("delete conversation")
		s.mu.Unlock()
		return err
	}
	if err != nil {
		err = s.failLocked("delete conversation", err)
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := s.LoadConversations(ctx); err != nil {
		s.logger.Debug("conversation reload after delete failed", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identityCurrent(t) && s.st.currentID == id {
		s.selectGen++
		s.st.currentID = ""
		s.st.current = nil
		s.st.messages = nil
		s.emitSelectionLocked()
		s.emitMessagesLocked()
	}
	return nil
}

// LoadUnreadCount replaces the unread counter with the server's value.
// Failures are logged and leave the last known value; they are not recorded
// as the user-visible error.
func (s *Synchronizer) LoadUnreadCount(ctx context.Context) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return ErrSignedOut
	}
	t := s.ticketLocked()
	s.mu.Unlock()

	n, err := s.backend.UnreadCount(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identityCurrent(t) {
		return s.staleLocked("load unread count")
	}
	if err != nil {
		s.logger.Warn("failed to load unread count", zap.Error(err))
		s.checkUnauthorizedLocked(err)
		return fmt.Errorf("load unread count: %w", err)
	}
	if n < 0 {
		n = 0
	}
	s.st.unread = n
	s.bus.Emit(EventUnread, n)
	return nil
}

package chat

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/matheus3301/inbox/internal/remote"
	"go.uber.org/zap"
)

// SelectConversation makes id the current conversation, loads its detail and
// messages, then marks the messages addressed to the identity as read. The
// previous conversation's messages are dropped immediately, so a failed or
// superseded load never shows them under the new selection.
func (s *Synchronizer) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return ErrSignedOut
	}
	s.selectGen++
	s.inflight++
	s.st.currentID = id
	s.st.current = nil
	s.st.messages = nil
	t := s.ticketLocked()
	self := s.identity.ID
	s.emitSelectionLocked()
	s.emitMessagesLocked()
	s.mu.Unlock()

	conv, err := s.backend.GetConversation(ctx, id)

	s.mu.Lock()
	if !s.selectionCurrent(t) {
		s.endLocked()
		err = s.staleLocked("select conversation")
		s.mu.Unlock()
		return err
	}
	if err != nil {
		s.endLocked()
		s.st.currentID = ""
		s.st.current = nil
		s.emitSelectionLocked()
		err = s.failLocked("load conversation", err)
		s.mu.Unlock()
		return err
	}
	s.st.current = cloneConversation(conv)
	s.emitSelectionLocked()
	s.mu.Unlock()

	fetched, err := s.backend.ListMessages(ctx, id, 1, s.opts.MessageLimit)

	s.mu.Lock()
	s.endLocked()
	if !s.selectionCurrent(t) {
		err = s.staleLocked("load messages")
		s.mu.Unlock()
		return err
	}
	if err != nil {
		err = s.failLocked("load messages", err)
		s.mu.Unlock()
		return err
	}
	s.st.messages = confirmedMessages(fetched, s.read)
	s.emitMessagesLocked()
	unread := unreadFor(s.st.messages, self)
	s.mu.Unlock()

	if len(unread) == 0 {
		return nil
	}
	return s.markViewed(ctx, t, unread)
}

// markViewed confirms the given messages as read on the server, then flips
// their local flags and decrements the unread counter by the number confirmed.
// The next unread poll corrects any drift.
func (s *Synchronizer) markViewed(ctx context.Context, t ticket, ids []string) error {
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.backend.MarkRead(ctx, id)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identityCurrent(t) {
		return s.staleLocked("mark viewed")
	}

	marked := 0
	for i, id := range ids {
		if errs[i] != nil {
			continue
		}
		s.read[id] = struct{}{}
		marked++
	}
	if s.selectionCurrent(t) && marked > 0 {
		for i := range s.st.messages {
			applyRead(&s.st.messages[i], s.read)
		}
		applyConversationReads(s.st.conversations, s.read)
		s.emitMessagesLocked()
	}
	if marked > 0 {
		s.st.unread = max(s.st.unread-marked, 0)
		s.bus.Emit(EventUnread, s.st.unread)
	}

	if err := errors.Join(errs...); err != nil {
		return s.failLocked("mark messages read", err)
	}
	return nil
}

// LoadMessages reloads the messages of the selected conversation without
// marking anything read. Pending messages survive the reload. Requests for a
// conversation other than the selected one are ignored.
func (s *Synchronizer) LoadMessages(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return ErrSignedOut
	}
	if s.st.currentID == "" || s.st.currentID != conversationID {
		s.mu.Unlock()
		return ErrNoConversation
	}
	s.inflight++
	t := s.ticketLocked()
	s.mu.Unlock()

	fetched, err := s.backend.ListMessages(ctx, conversationID, 1, s.opts.MessageLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
	if !s.selectionCurrent(t) {
		return s.staleLocked("load messages")
	}
	if err != nil {
		return s.failLocked("load messages", err)
	}
	s.st.messages = mergeFetched(confirmedMessages(fetched, s.read), s.st.messages)
	s.emitMessagesLocked()
	return nil
}

// SendMessage sends body to receiverID within the selected conversation. An
// empty receiverID picks the first participant other than the identity.
//
// A pending entry with a local id is shown until the server answers; it is
// then replaced by the confirmed record, or removed if the send failed.
// After a successful send the conversation list is reloaded so its previews
// and ordering follow.
func (s *Synchronizer) SendMessage(ctx context.Context, receiverID, body string, files []string) (*Message, error) {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return nil, ErrSignedOut
	}
	if s.st.current == nil {
		err := s.failLocked("send message", ErrNoConversation)
		s.mu.Unlock()
		return nil, err
	}
	receiver, ok := resolveReceiver(s.st.current, s.identity.ID, receiverID)
	if !ok {
		err := s.failLocked("send message", ErrNoSuchParticipant)
		s.mu.Unlock()
		return nil, err
	}

	localID := s.newID()
	pending := Message{
		Message: remote.Message{
			ID:             localID,
			ConversationID: s.st.current.ID,
			Sender:         *s.identity,
			Receiver:       receiver,
			Body:           body,
			Files:          slices.Clone(files),
			CreatedAt:      s.now(),
		},
		LocalID: localID,
		State:   StatePending,
	}
	s.st.messages = append(s.st.messages, pending)
	convID := s.st.current.ID
	t := s.ticketLocked()
	s.emitMessagesLocked()
	s.mu.Unlock()

	sent, err := s.backend.SendMessage(ctx, remote.SendMessageRequest{
		ReceiverID: receiver.ID,
		Message:    body,
		Files:      files,
	})

	s.mu.Lock()
	if !s.identityCurrent(t) {
		err = s.staleLocked("send message")
		s.mu.Unlock()
		return nil, err
	}
	if err != nil {
		s.st.messages = removeLocal(s.st.messages, localID)
		s.emitMessagesLocked()
		err = s.failLocked("send message", err)
		s.mu.Unlock()
		return nil, err
	}

	confirmed := Message{Message: *sent, State: StateConfirmed}
	if confirmed.ConversationID == "" {
		confirmed.ConversationID = convID
	}
	applyRead(&confirmed, s.read)
	// A reselect of the same conversation reloads messages without the
	// pending entry; the confirmed record still belongs there.
	if confirmed.ConversationID == s.st.currentID {
		s.st.messages = promotePending(s.st.messages, localID, confirmed)
	} else {
		s.st.messages = removeLocal(s.st.messages, localID)
	}
	s.emitMessagesLocked()
	s.mu.Unlock()

	if err := s.LoadConversations(ctx); err != nil {
		s.logger.Debug("conversation reload after send failed", zap.Error(err))
	}
	return &confirmed, nil
}

// UpdateMessage replaces the body of a confirmed message.
func (s *Synchronizer) UpdateMessage(ctx context.Context, id, body string) (*Message, error) {
	t, err := s.beginMutation(id)
	if err != nil {
		return nil, err
	}

	updated, err := s.backend.UpdateMessage(ctx, id, body)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identityCurrent(t) {
		return nil, s.staleLocked("update message")
	}
	if err != nil {
		return nil, s.failLocked("update message", err)
	}
	m := Message{Message: *updated, State: StateEdited}
	applyRead(&m, s.read)
	var ok bool
	if s.st.messages, ok = replaceMessage(s.st.messages, m); ok {
		s.emitMessagesLocked()
	}
	return &m, nil
}

// DeleteMessage deletes a confirmed message and removes it from the list.
func (s *Synchronizer) DeleteMessage(ctx context.Context, id string) error {
	t, err := s.beginMutation(id)
	if err != nil {
		return err
	}

	err = s.backend.DeleteMessage(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identityCurrent(t) {
		return s.staleLocked("delete message")
	}
	if err != nil {
		return s.failLocked("delete message", err)
	}
	var ok bool
	if s.st.messages, ok = removeMessage(s.st.messages, id); ok {
		s.emitMessagesLocked()
	}
	s.bus.Emit(EventMessageDeleted, id)
	return nil
}

// MarkAsRead marks one message read. The local read flag is taken from the
// record the server returns.
func (s *Synchronizer) MarkAsRead(ctx context.Context, id string) (*Message, error) {
	t, err := s.beginMutation(id)
	if err != nil {
		return nil, err
	}

	res, err := s.backend.MarkRead(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identityCurrent(t) {
		return nil, s.staleLocked("mark read")
	}
	if err != nil {
		return nil, s.failLocked("mark read", err)
	}
	if res.Read {
		s.read[res.ID] = struct{}{}
	}
	m := Message{Message: *res, State: StateConfirmed}
	if i := indexOf(s.st.messages, res.ID); i >= 0 {
		m.State = s.st.messages[i].State
	}
	applyRead(&m, s.read)
	var ok bool
	if s.st.messages, ok = replaceMessage(s.st.messages, m); ok {
		s.emitMessagesLocked()
	}
	return &m, nil
}

func (s *Synchronizer) beginMutation(id string) (ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ticket{}, ErrSignedOut
	}
	if i := indexOf(s.st.messages, id); i >= 0 && s.st.messages[i].Pending() {
		return ticket{}, ErrPending
	}
	return s.ticketLocked(), nil
}

package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/inbox/internal/remote"
)

var (
	alice = remote.User{ID: "u1", Fullname: "Alice"}
	bob   = remote.User{ID: "u2", Fullname: "Bob"}
	carol = remote.User{ID: "u3", Fullname: "Carol"}
)

func ts(sec int) time.Time {
	return time.Unix(1700000000+int64(sec), 0).UTC()
}

// gate holds a fake call until released, announcing when the call arrived.
type gate struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

// fakeBackend is an in-memory backend that records every call it receives.
type fakeBackend struct {
	mu       sync.Mutex
	self     remote.User
	calls    []string
	convs    map[string]*remote.Conversation
	order    []string
	messages map[string][]remote.Message
	unread   int
	sent     []remote.SendMessageRequest
	nextID   int
	gates    map[string]*gate

	listConvsErr  error
	createErr     error
	deleteConvErr error
	listMsgsErr   error
	sendErr       error
	updateErr     error
	deleteMsgErr  error
	markErr       error
	unreadErr     error
	searchErr     error

	// forgetReads makes MarkRead answer read=true without persisting it.
	forgetReads bool
}

func newFakeBackend(self remote.User) *fakeBackend {
	return &fakeBackend{
		self:     self,
		convs:    make(map[string]*remote.Conversation),
		messages: make(map[string][]remote.Message),
		gates:    make(map[string]*gate),
	}
}

func (f *fakeBackend) addConversation(c remote.Conversation, msgs ...remote.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := c
	f.convs[c.ID] = &cp
	f.order = append(f.order, c.ID)
	f.messages[c.ID] = append(f.messages[c.ID], msgs...)
}

func (f *fakeBackend) gate(key string) *gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &gate{entered: make(chan struct{}), release: make(chan struct{})}
	f.gates[key] = g
	return g
}

func (f *fakeBackend) wait(ctx context.Context, key string) error {
	f.mu.Lock()
	g := f.gates[key]
	f.mu.Unlock()
	if g == nil {
		return nil
	}
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeBackend) countCalls(call string) int {
	n := 0
	for _, c := range f.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) findMessage(id string) (string, int) {
	for convID, msgs := range f.messages {
		for i, m := range msgs {
			if m.ID == id {
				return convID, i
			}
		}
	}
	return "", -1
}

func notFound(what string) error {
	return &remote.APIError{Status: 404, Message: what + " not found"}
}

func (f *fakeBackend) ListConversations(ctx context.Context, page, limit int) ([]remote.Conversation, error) {
	f.record("GET /conversations")
	if err := f.wait(ctx, "conversations"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listConvsErr != nil {
		return nil, f.listConvsErr
	}
	out := make([]remote.Conversation, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *cloneConversation(f.convs[id]))
	}
	return out, nil
}

func (f *fakeBackend) GetConversation(ctx context.Context, id string) (*remote.Conversation, error) {
	f.record("GET /conversations/" + id)
	if err := f.wait(ctx, "get:"+id); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, notFound("conversation")
	}
	return cloneConversation(c), nil
}

func (f *fakeBackend) ConversationWith(_ context.Context, userID string) (*remote.Conversation, error) {
	f.record("GET /conversations/user/" + userID)
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		c := f.convs[id]
		if len(c.Users) == 2 && c.HasParticipant(userID) {
			return cloneConversation(c), nil
		}
	}
	return nil, notFound("conversation")
}

func (f *fakeBackend) CreateConversation(_ context.Context, participantIDs []string) (*remote.Conversation, error) {
	f.record("POST /conversations")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	c := remote.Conversation{
		ID:        fmt.Sprintf("c-new-%d", f.nextID),
		Users:     []remote.User{f.self},
		CreatedAt: ts(5000 + f.nextID),
	}
	for _, id := range participantIDs {
		c.Users = append(c.Users, remote.User{ID: id})
	}
	f.convs[c.ID] = &c
	f.order = append(f.order, c.ID)
	return cloneConversation(&c), nil
}

func (f *fakeBackend) UpdateConversation(_ context.Context, id string, action remote.MembershipAction, userID string) (*remote.Conversation, error) {
	f.record("PUT /conversations/" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, notFound("conversation")
	}
	switch action {
	case remote.ActionAdd:
		c.Users = append(c.Users, remote.User{ID: userID})
	case remote.ActionRemove:
		c.Users = slices.DeleteFunc(c.Users, func(u remote.User) bool { return u.ID == userID })
	}
	return cloneConversation(c), nil
}

func (f *fakeBackend) DeleteConversation(_ context.Context, id string) error {
	f.record("DELETE /conversations/" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteConvErr != nil {
		return f.deleteConvErr
	}
	delete(f.convs, id)
	delete(f.messages, id)
	f.order = slices.DeleteFunc(f.order, func(s string) bool { return s == id })
	return nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, conversationID string, page, limit int) ([]remote.Message, error) {
	f.record("GET /messages/conversation/" + conversationID)
	if err := f.wait(ctx, "messages:"+conversationID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listMsgsErr != nil {
		return nil, f.listMsgsErr
	}
	return slices.Clone(f.messages[conversationID]), nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, req remote.SendMessageRequest) (*remote.Message, error) {
	f.record("POST /messages")
	if err := f.wait(ctx, "send-accept"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		if werr := f.wait(ctx, "send"); werr != nil {
			return nil, werr
		}
		return nil, err
	}
	var convID string
	for _, id := range f.order {
		c := f.convs[id]
		if c.HasParticipant(f.self.ID) && c.HasParticipant(req.ReceiverID) {
			convID = id
			break
		}
	}
	f.nextID++
	m := remote.Message{
		ID:             fmt.Sprintf("m-%d", f.nextID),
		ConversationID: convID,
		Sender:         f.self,
		Receiver:       remote.User{ID: req.ReceiverID},
		Body:           req.Message,
		Files:          req.Files,
		CreatedAt:      ts(1000 + f.nextID),
	}
	f.messages[convID] = append(f.messages[convID], m)
	f.mu.Unlock()

	if err := f.wait(ctx, "send"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (f *fakeBackend) UpdateMessage(_ context.Context, id, body string) (*remote.Message, error) {
	f.record("PUT /messages/" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	convID, i := f.findMessage(id)
	if i < 0 {
		return nil, notFound("message")
	}
	f.messages[convID][i].Body = body
	m := f.messages[convID][i]
	return &m, nil
}

func (f *fakeBackend) MarkRead(_ context.Context, id string) (*remote.Message, error) {
	f.record("PUT /messages/" + id + "/read")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return nil, f.markErr
	}
	convID, i := f.findMessage(id)
	if i < 0 {
		return nil, notFound("message")
	}
	m := f.messages[convID][i]
	m.Read = true
	if !f.forgetReads {
		f.messages[convID][i].Read = true
	}
	return &m, nil
}

func (f *fakeBackend) DeleteMessage(_ context.Context, id string) error {
	f.record("DELETE /messages/" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteMsgErr != nil {
		return f.deleteMsgErr
	}
	convID, i := f.findMessage(id)
	if i < 0 {
		return notFound("message")
	}
	f.messages[convID] = slices.Delete(f.messages[convID], i, i+1)
	return nil
}

func (f *fakeBackend) UnreadCount(_ context.Context) (int, error) {
	f.record("GET /messages/unread/count")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, f.unreadErr
}

func (f *fakeBackend) SearchMessages(ctx context.Context, query, conversationID string) ([]remote.Message, error) {
	f.record("GET /messages/search")
	if err := f.wait(ctx, "search"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []remote.Message
	for _, id := range f.order {
		if conversationID != "" && id != conversationID {
			continue
		}
		for _, m := range f.messages[id] {
			if strings.Contains(m.Body, query) {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/inbox/internal/account"
	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/poll"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/status"
	"github.com/matheus3301/inbox/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// mockChat records calls and returns configured results.
type mockChat struct {
	snap    chat.Snapshot
	sendErr error
	sent    []string
	selects []string
	cleared int
}

func (m *mockChat) Snapshot() chat.Snapshot                 { return m.snap }
func (m *mockChat) LoadConversations(context.Context) error { return nil }
func (m *mockChat) LoadUnreadCount(context.Context) error   { return errors.New("unread down") }
func (m *mockChat) CreateConversation(_ context.Context, ids []string) (*remote.Conversation, error) {
	return &remote.Conversation{ID: "new", Users: []remote.User{{ID: ids[0]}}}, nil
}
func (m *mockChat) OpenConversationWith(_ context.Context, userID string) (*remote.Conversation, error) {
	return &remote.Conversation{ID: "with-" + userID}, nil
}
func (m *mockChat) UpdateConversation(_ context.Context, id string, _ remote.MembershipAction, _ string) (*remote.Conversation, error) {
	return &remote.Conversation{ID: id}, nil
}
func (m *mockChat) DeleteConversation(context.Context, string) error { return nil }
func (m *mockChat) SelectConversation(_ context.Context, id string) error {
	m.selects = append(m.selects, id)
	m.snap.CurrentID = id
	return nil
}
func (m *mockChat) LoadMessages(context.Context, string) error { return nil }
func (m *mockChat) SendMessage(_ context.Context, receiverID, body string, _ []string) (*chat.Message, error) {
	m.sent = append(m.sent, body)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &chat.Message{
		Message: remote.Message{ID: "m9", Body: body, Receiver: remote.User{ID: receiverID}},
		State:   chat.StateConfirmed,
	}, nil
}
func (m *mockChat) UpdateMessage(_ context.Context, id, body string) (*chat.Message, error) {
	return &chat.Message{Message: remote.Message{ID: id, Body: body}, State: chat.StateEdited}, nil
}
func (m *mockChat) DeleteMessage(context.Context, string) error { return nil }
func (m *mockChat) MarkAsRead(_ context.Context, id string) (*chat.Message, error) {
	return &chat.Message{Message: remote.Message{ID: id, Read: true}, State: chat.StateConfirmed}, nil
}
func (m *mockChat) SearchMessages(context.Context, string, string) ([]chat.Message, error) {
	return nil, nil
}
func (m *mockChat) ClearSearch()  { m.cleared++ }
func (m *mockChat) DismissError() {}

type mockAccounts struct {
	identity *remote.User
	loginErr error
	logins   int
}

func (m *mockAccounts) Identity() *remote.User { return m.identity }
func (m *mockAccounts) Login(_ context.Context, email, _ string) (*remote.User, error) {
	m.logins++
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	m.identity = &remote.User{ID: "u1", Email: email}
	return m.identity, nil
}
func (m *mockAccounts) Logout(context.Context) error {
	if m.identity == nil {
		return account.ErrNotSignedIn
	}
	m.identity = nil
	return nil
}

type mockPoll struct{}

func (mockPoll) State() poll.State       { return poll.Polling }
func (mockPoll) Interval() time.Duration { return 30 * time.Second }

type harness struct {
	client   *rpc.Client
	chat     *mockChat
	accounts *mockAccounts
	machine  *status.Machine
	bus      *bus.Bus
	db       *store.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{
		chat:     &mockChat{},
		accounts: &mockAccounts{},
		bus:      bus.New(),
		db:       db,
	}
	h.machine = status.NewMachine(h.bus)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	rpc.RegisterSessionServer(srv, NewSessionService("test", "http://backend", h.machine, h.accounts, mockPoll{}, db, h.bus.Dropped, nil))
	rpc.RegisterChatServer(srv, NewChatService(h.chat, db, h.bus, "test", nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	h.client = rpc.NewClient(conn)
	return h
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStatusReportsStateAndMirror(t *testing.T) {
	h := newHarness(t)
	if err := h.machine.Transition(status.AuthRequired, "no credentials"); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertConversation(&store.Conversation{ID: "c1", Participants: []store.User{{ID: "u1"}, {ID: "u2"}}}); err != nil {
		t.Fatal(err)
	}

	resp, err := h.client.Status(ctxT(t))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Profile != "test" || resp.Status != string(status.AuthRequired) || resp.StatusMessage != "no credentials" {
		t.Errorf("status = %+v", resp)
	}
	if resp.Identity != nil {
		t.Errorf("identity = %+v, want nil", resp.Identity)
	}
	if resp.Conversations != 1 || resp.SchemaVersion != 2 {
		t.Errorf("mirror counts = %d conversations, schema %d; want 1, 2", resp.Conversations, resp.SchemaVersion)
	}
	if !resp.Polling || resp.PollInterval != "30s" {
		t.Errorf("polling = %v %q, want true 30s", resp.Polling, resp.PollInterval)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.Login(ctxT(t), "alice@example.com", "")
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
	if h.accounts.logins != 0 {
		t.Error("accounts called without a password")
	}
}

func TestLoginAndLogout(t *testing.T) {
	h := newHarness(t)
	ctx := ctxT(t)

	resp, err := h.client.Login(ctx, "alice@example.com", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if resp.User.ID != "u1" || resp.User.Email != "alice@example.com" {
		t.Errorf("user = %+v", resp.User)
	}
	if err := h.client.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.client.Logout(ctx); grpcstatus.Code(err) != codes.Unauthenticated {
		t.Errorf("second logout code = %v, want Unauthenticated", grpcstatus.Code(err))
	}
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)
	h.accounts.loginErr = fmt.Errorf("login: %w", &remote.APIError{Status: 401, Message: "bad credentials"})
	_, err := h.client.Login(ctxT(t), "alice@example.com", "wrong")
	if grpcstatus.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", grpcstatus.Code(err))
	}
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)
	resp, err := h.client.SendMessage(ctxT(t), &rpc.SendMessageRequest{ReceiverID: "u2", Body: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message.ID != "m9" || resp.Message.Receiver.ID != "u2" || resp.Message.State != chat.StateConfirmed {
		t.Errorf("message = %+v", resp.Message)
	}
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.SendMessage(ctxT(t), &rpc.SendMessageRequest{Body: "   "})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
	if len(h.chat.sent) != 0 {
		t.Error("empty message reached the synchronizer")
	}
}

func TestSendMessageErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"no participant", chat.ErrNoSuchParticipant, codes.InvalidArgument},
		{"no selection", chat.ErrNoConversation, codes.FailedPrecondition},
		{"signed out", chat.ErrSignedOut, codes.Unauthenticated},
		{"not found", &remote.APIError{Status: 404}, codes.NotFound},
		{"server down", &remote.APIError{Status: 503}, codes.Unavailable},
	}
	h := newHarness(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.chat.sendErr = tt.err
			_, err := h.client.SendMessage(ctxT(t), &rpc.SendMessageRequest{Body: "hi"})
			if got := grpcstatus.Code(err); got != tt.want {
				t.Errorf("code = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectConversationReturnsSnapshot(t *testing.T) {
	h := newHarness(t)
	snap, err := h.client.SelectConversation(ctxT(t), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.CurrentID != "c1" {
		t.Errorf("current = %q, want c1", snap.CurrentID)
	}
	if len(h.chat.selects) != 1 {
		t.Errorf("selects = %v", h.chat.selects)
	}
}

func TestRefreshIgnoresUnreadFailure(t *testing.T) {
	h := newHarness(t)
	if _, err := h.client.Refresh(ctxT(t)); err != nil {
		t.Errorf("Refresh() = %v, want nil", err)
	}
}

func TestUpdateConversationValidatesAction(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.UpdateConversation(ctxT(t), &rpc.UpdateConversationRequest{ID: "c1", Action: "kick", UserID: "u3"})
	if grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
}

func TestLocalSearch(t *testing.T) {
	h := newHarness(t)
	if err := h.db.UpsertConversation(&store.Conversation{ID: "c1", Participants: []store.User{{ID: "u1"}, {ID: "u2"}}}); err != nil {
		t.Fatal(err)
	}
	if err := h.db.UpsertMessages([]store.Message{
		{MsgID: "m1", ConversationID: "c1", SenderID: "u2", SenderName: "Bob", Body: "the pallet arrived", CreatedAt: 10},
		{MsgID: "m2", ConversationID: "c1", SenderID: "u1", Body: "thanks", CreatedAt: 20},
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := h.client.LocalSearch(ctxT(t), &rpc.LocalSearchRequest{Query: "pallet"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].MsgID != "m1" || resp.Results[0].SenderName != "Bob" {
		t.Errorf("results = %+v, want m1 from Bob", resp.Results)
	}
}

func TestClearSearchReachesSynchronizer(t *testing.T) {
	h := newHarness(t)
	if err := h.client.ClearSearch(ctxT(t)); err != nil {
		t.Fatal(err)
	}
	if h.chat.cleared != 1 {
		t.Errorf("cleared = %d, want 1", h.chat.cleared)
	}
}

func waitSubscribers(t *testing.T, b *bus.Bus, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.Subscribers() < n {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for watch subscription")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchFiltersByPrefix(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(ctxT(t))
	defer cancel()

	stream, err := h.client.Watch(ctx, "chat.")
	if err != nil {
		t.Fatal(err)
	}
	waitSubscribers(t, h.bus, 1)

	h.bus.Emit("poll.state", poll.Polling)
	h.bus.Emit(chat.EventUnread, 3)

	evt, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if evt.Kind != chat.EventUnread || evt.Profile != "test" || evt.ID == "" {
		t.Errorf("event = %+v", evt)
	}
	var n int
	if err := json.Unmarshal(evt.Payload, &n); err != nil || n != 3 {
		t.Errorf("payload = %s, want 3", evt.Payload)
	}
}

func TestWatchEncodesTickErrors(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(ctxT(t))
	defer cancel()

	stream, err := h.client.Watch(ctx, "poll.tick")
	if err != nil {
		t.Fatal(err)
	}
	waitSubscribers(t, h.bus, 1)

	h.bus.Emit(poll.EventTick, poll.Tick{Identity: "u1", Started: time.Now(), Duration: time.Second, Err: errors.New("backend down")})

	evt, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}
	var tp tickPayload
	if err := json.Unmarshal(evt.Payload, &tp); err != nil {
		t.Fatal(err)
	}
	if tp.Identity != "u1" || tp.Error != "backend down" || tp.DurationMs != 1000 {
		t.Errorf("tick = %+v", tp)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{context.Canceled, codes.Canceled},
		{fmt.Errorf("x: %w", remote.ErrUnauthorized), codes.Unauthenticated},
		{&remote.APIError{Status: 401}, codes.Unauthenticated},
		{account.ErrSignedIn, codes.AlreadyExists},
		{chat.ErrPending, codes.FailedPrecondition},
		{chat.ErrStale, codes.Aborted},
		{&remote.APIError{Status: 403}, codes.PermissionDenied},
		{&remote.APIError{Status: 418}, codes.Unknown},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		if got := codeOf(tt.err); got != tt.want {
			t.Errorf("codeOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

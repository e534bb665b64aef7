package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/config"
	"github.com/matheus3301/inbox/internal/profile"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var (
	alice = remote.User{ID: "u1", Fullname: "Alice", Email: "alice@example.com"}
	bob   = remote.User{ID: "u2", Fullname: "Bob", Email: "bob@example.com"}
)

type fakeSession struct {
	email, password string
}

func (f *fakeSession) Status(context.Context, *rpc.Empty) (*rpc.StatusResponse, error) {
	return &rpc.StatusResponse{Profile: "main", Status: "READY", Identity: &alice, PollInterval: "30s", Polling: true, UnreadCount: 2}, nil
}

func (f *fakeSession) Login(_ context.Context, r *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	f.email, f.password = r.Email, r.Password
	if r.Password != "password" {
		return nil, grpcstatus.Error(codes.Unauthenticated, "invalid credentials")
	}
	return &rpc.LoginResponse{User: alice}, nil
}

func (f *fakeSession) Logout(context.Context, *rpc.Empty) (*rpc.Empty, error) {
	return &rpc.Empty{}, nil
}

// fakeChat implements the calls the commands under test make; the embedded
// interface panics on anything else.
type fakeChat struct {
	rpc.ChatServer
	selected string
	sent     *rpc.SendMessageRequest
}

func (f *fakeChat) snapshot() *chat.Snapshot {
	return &chat.Snapshot{
		Identity: &alice,
		Conversations: []remote.Conversation{{
			ID:          "c1",
			Users:       []remote.User{alice, bob},
			UnreadCount: 2,
			LastMessage: &remote.LastMessage{ID: "m3", Message: "photos are in the shared folder", Sender: &bob},
		}},
		CurrentID:   f.selected,
		UnreadCount: 2,
		Messages: []chat.Message{
			{Message: remote.Message{ID: "m1", Sender: bob, Receiver: alice, Body: "the pallet arrived damaged", Read: true}, State: chat.StateConfirmed},
			{Message: remote.Message{ID: "m2", Sender: alice, Receiver: bob, Body: "opening a claim", Read: true}, State: chat.StateEdited},
		},
	}
}

func (f *fakeChat) Refresh(context.Context, *rpc.Empty) (*chat.Snapshot, error) {
	return f.snapshot(), nil
}

func (f *fakeChat) SelectConversation(_ context.Context, r *rpc.ConversationRequest) (*chat.Snapshot, error) {
	if r.ID != "c1" {
		return nil, grpcstatus.Error(codes.NotFound, "conversation not found")
	}
	f.selected = r.ID
	return f.snapshot(), nil
}

func (f *fakeChat) SendMessage(_ context.Context, r *rpc.SendMessageRequest) (*rpc.MessageResponse, error) {
	f.sent = r
	return &rpc.MessageResponse{Message: chat.Message{
		Message: remote.Message{ID: "m4", ConversationID: f.selected, Sender: alice, Receiver: bob, Body: r.Body},
		State:   chat.StateConfirmed,
	}}, nil
}

func (f *fakeChat) LocalSearch(_ context.Context, r *rpc.LocalSearchRequest) (*rpc.LocalSearchResponse, error) {
	return &rpc.LocalSearchResponse{Results: []rpc.LocalResult{{
		MsgID: "m1", ConversationID: "c1", SenderName: "Bob", Snippet: "the [pallet] arrived", CreatedAtMs: time.Now().UnixMilli(),
	}}}, nil
}

type harness struct {
	session *fakeSession
	chat    *fakeChat
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	color.NoColor = true

	home, err := os.MkdirTemp("/tmp", "inbox-cli-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv(profile.HomeEnv, home)

	if err := profile.EnsureDir("main"); err != nil {
		t.Fatal(err)
	}
	lis, err := net.Listen("unix", profile.SocketPath("main"))
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{session: &fakeSession{}, chat: &fakeChat{}}
	srv := grpc.NewServer()
	rpc.RegisterSessionServer(srv, h.session)
	rpc.RegisterChatServer(srv, h.chat)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return h
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := Root()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStatus(t *testing.T) {
	newHarness(t)
	out, err := run(t, "", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Profile:       main", "READY", "Alice <alice@example.com>", "every 30s", "Unread:        2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusJSON(t *testing.T) {
	newHarness(t)
	out, err := run(t, "", "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st rpc.StatusResponse
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if st.Status != "READY" || st.Identity == nil || st.Identity.ID != "u1" {
		t.Errorf("status = %+v", st)
	}
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	h := newHarness(t)
	out, err := run(t, "password\n", "login", "--email", "alice@example.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if h.session.email != "alice@example.com" || h.session.password != "password" {
		t.Errorf("daemon got %q / %q", h.session.email, h.session.password)
	}
	if !strings.Contains(out, "Signed in as Alice") {
		t.Errorf("output = %q", out)
	}
}

func TestLoginUsesConfiguredEmail(t *testing.T) {
	h := newHarness(t)
	cfg := &config.Config{}
	cfg.SetProfile("main", config.Profile{Email: "alice@example.com"})
	if err := config.Save(profile.ConfigPath(), cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "", "login", "--password", "password"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if h.session.email != "alice@example.com" {
		t.Errorf("email = %q, want the configured one", h.session.email)
	}
}

func TestLoginRejected(t *testing.T) {
	newHarness(t)
	_, err := run(t, "", "login", "--email", "alice@example.com", "--password", "nope")
	if err == nil {
		t.Fatal("login succeeded")
	}
	if got := ErrorMessage(err); got != "invalid credentials" {
		t.Errorf("ErrorMessage = %q", got)
	}
}

func TestLoginNeedsEmail(t *testing.T) {
	newHarness(t)
	if _, err := run(t, "", "login", "--password", "password"); err == nil || !strings.Contains(err.Error(), "no email") {
		t.Fatalf("err = %v, want missing email", err)
	}
}

func TestConversations(t *testing.T) {
	newHarness(t)
	out, err := run(t, "", "ls")
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1:\n%s", len(lines), out)
	}
	for _, want := range []string{"c1", "Bob", "2", "photos are in the shared folder"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row missing %q: %s", want, lines[1])
		}
	}
	if strings.Contains(lines[1], "Alice") {
		t.Errorf("row lists the signed-in user: %s", lines[1])
	}
}

func TestMessages(t *testing.T) {
	newHarness(t)
	out, err := run(t, "", "messages", "c1")
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	for _, want := range []string{"Bob", "the pallet arrived damaged", "you", "(edited, read)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	_, err = run(t, "", "messages", "nope")
	if grpcstatus.Code(err) != codes.NotFound {
		t.Errorf("unknown conversation: code = %v, want NotFound", grpcstatus.Code(err))
	}
}

func TestSendSelectsConversation(t *testing.T) {
	h := newHarness(t)
	out, err := run(t, "", "send", "c1", "--to", "u2", "photos", "received")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if h.chat.selected != "c1" {
		t.Errorf("selected = %q, want c1", h.chat.selected)
	}
	if h.chat.sent == nil || h.chat.sent.Body != "photos received" || h.chat.sent.ReceiverID != "u2" {
		t.Errorf("sent = %+v", h.chat.sent)
	}
	if !strings.Contains(out, "Sent message m4") {
		t.Errorf("output = %q", out)
	}
}

func TestUnread(t *testing.T) {
	newHarness(t)
	out, err := run(t, "", "unread")
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if strings.TrimSpace(out) != "2" {
		t.Errorf("unread = %q, want 2", out)
	}
}

func TestLocalSearch(t *testing.T) {
	newHarness(t)
	out, err := run(t, "", "local", "search", "pallet")
	if err != nil {
		t.Fatalf("local search: %v", err)
	}
	if !strings.Contains(out, "the [pallet] arrived") || !strings.Contains(out, "m1") {
		t.Errorf("output = %q", out)
	}
}

func TestDaemonNotRunning(t *testing.T) {
	home, err := os.MkdirTemp("/tmp", "inbox-cli-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv(profile.HomeEnv, home)

	if _, err := run(t, "", "status", "--timeout", "2s"); err == nil {
		t.Fatal("status succeeded without a daemon")
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"multi\nline   text", 20, "multi line text"},
		{"abcdefghij", 5, "abcd…"},
	}
	for _, tt := range tests {
		if got := preview(tt.in, tt.n); got != tt.want {
			t.Errorf("preview(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

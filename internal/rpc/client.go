package rpc

import (
	"context"
	"fmt"

	"github.com/matheus3301/inbox/internal/chat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client talks to a daemon over its unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily by the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection. Calls still force the JSON codec.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, service, method string, in, out any) error {
	return c.conn.Invoke(ctx, fullMethod(service, method), in, out, grpc.CallContentSubtype(CodecName))
}

func (c *Client) session(ctx context.Context, method string, in, out any) error {
	return c.invoke(ctx, sessionServiceName, method, in, out)
}

func (c *Client) chat(ctx context.Context, method string, in, out any) error {
	return c.invoke(ctx, chatServiceName, method, in, out)
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.session(ctx, "Status", &Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.session(ctx, "Login", &LoginRequest{Email: email, Password: password}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.session(ctx, "Logout", &Empty{}, &Empty{})
}

func (c *Client) snapshot(ctx context.Context, method string, in any) (*chat.Snapshot, error) {
	out := new(chat.Snapshot)
	if err := c.chat(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot returns the synchronizer state without touching the network.
func (c *Client) Snapshot(ctx context.Context) (*chat.Snapshot, error) {
	return c.snapshot(ctx, "Snapshot", &Empty{})
}

// Refresh reloads conversations and the unread count, then returns the state.
func (c *Client) Refresh(ctx context.Context) (*chat.Snapshot, error) {
	return c.snapshot(ctx, "Refresh", &Empty{})
}

func (c *Client) SelectConversation(ctx context.Context, id string) (*chat.Snapshot, error) {
	return c.snapshot(ctx, "SelectConversation", &ConversationRequest{ID: id})
}

func (c *Client) LoadMessages(ctx context.Context, id string) (*chat.Snapshot, error) {
	return c.snapshot(ctx, "LoadMessages", &ConversationRequest{ID: id})
}

func (c *Client) conversation(ctx context.Context, method string, in any) (*ConversationResponse, error) {
	out := new(ConversationResponse)
	if err := c.chat(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateConversation(ctx context.Context, participantIDs []string) (*ConversationResponse, error) {
	return c.conversation(ctx, "CreateConversation", &CreateConversationRequest{ParticipantIDs: participantIDs})
}

func (c *Client) OpenConversation(ctx context.Context, userID string) (*ConversationResponse, error) {
	return c.conversation(ctx, "OpenConversation", &OpenConversationRequest{UserID: userID})
}

func (c *Client) UpdateConversation(ctx context.Context, in *UpdateConversationRequest) (*ConversationResponse, error) {
	return c.conversation(ctx, "UpdateConversation", in)
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.chat(ctx, "DeleteConversation", &ConversationRequest{ID: id}, &Empty{})
}

func (c *Client) message(ctx context.Context, method string, in any) (*MessageResponse, error) {
	out := new(MessageResponse)
	if err := c.chat(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, in *SendMessageRequest) (*MessageResponse, error) {
	return c.message(ctx, "SendMessage", in)
}

func (c *Client) UpdateMessage(ctx context.Context, id, body string) (*MessageResponse, error) {
	return c.message(ctx, "UpdateMessage", &UpdateMessageRequest{ID: id, Body: body})
}

func (c *Client) MarkRead(ctx context.Context, id string) (*MessageResponse, error) {
	return c.message(ctx, "MarkRead", &MessageRequest{ID: id})
}

func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.chat(ctx, "DeleteMessage", &MessageRequest{ID: id}, &Empty{})
}

func (c *Client) Search(ctx context.Context, query, conversationID string) (*SearchResponse, error) {
	out := new(SearchResponse)
	if err := c.chat(ctx, "Search", &SearchRequest{Query: query, ConversationID: conversationID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ClearSearch(ctx context.Context) error {
	return c.chat(ctx, "ClearSearch", &Empty{}, &Empty{})
}

func (c *Client) DismissError(ctx context.Context) error {
	return c.chat(ctx, "DismissError", &Empty{}, &Empty{})
}

func (c *Client) LocalSearch(ctx context.Context, in *LocalSearchRequest) (*LocalSearchResponse, error) {
	out := new(LocalSearchResponse)
	if err := c.chat(ctx, "LocalSearch", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// EventStream receives events from a Watch call.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks until the next event arrives or the stream ends.
func (s *EventStream) Recv() (*Event, error) {
	e := new(Event)
	if err := s.stream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Watch streams daemon events whose kind starts with one of prefixes.
// Cancel ctx to end the stream.
func (c *Client) Watch(ctx context.Context, prefixes ...string) (*EventStream, error) {
	stream, err := c.conn.NewStream(ctx, &chatServiceDesc.Streams[0], fullMethod(chatServiceName, "Watch"), grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{Prefixes: prefixes}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

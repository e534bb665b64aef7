package api

import (
	"context"
	"strings"

	"github.com/matheus3301/inbox/internal/bus"
	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/remote"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const (
	defaultLocalSearchLimit = 50
	maxLocalSearchLimit     = 500
)

// Chat is the synchronizer surface served over RPC. *chat.Synchronizer
// implements it.
type Chat interface {
	Snapshot() chat.Snapshot
	LoadConversations(ctx context.Context) error
	LoadUnreadCount(ctx context.Context) error
	CreateConversation(ctx context.Context, participantIDs []string) (*remote.Conversation, error)
	OpenConversationWith(ctx context.Context, userID string) (*remote.Conversation, error)
	UpdateConversation(ctx context.Context, id string, action remote.MembershipAction, userID string) (*remote.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	SelectConversation(ctx context.Context, id string) error
	LoadMessages(ctx context.Context, conversationID string) error
	SendMessage(ctx context.Context, receiverID, body string, files []string) (*chat.Message, error)
	UpdateMessage(ctx context.Context, id, body string) (*chat.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	MarkAsRead(ctx context.Context, id string) (*chat.Message, error)
	SearchMessages(ctx context.Context, query, conversationID string) ([]chat.Message, error)
	ClearSearch()
	DismissError()
}

// ChatService implements rpc.ChatServer on top of the synchronizer and the
// local mirror.
type ChatService struct {
	chat    Chat
	db      *store.DB
	bus     *bus.Bus
	profile string
	logger  *zap.Logger
}

// NewChatService creates a new chat service.
func NewChatService(c Chat, db *store.DB, b *bus.Bus, profile string, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{chat: c, db: db, bus: b, profile: profile, logger: logger}
}

func (s *ChatService) snapshot() *chat.Snapshot {
	snap := s.chat.Snapshot()
	return &snap
}

func (s *ChatService) Snapshot(_ context.Context, _ *rpc.Empty) (*chat.Snapshot, error) {
	return s.snapshot(), nil
}

func (s *ChatService) Refresh(ctx context.Context, _ *rpc.Empty) (*chat.Snapshot, error) {
	if err := s.chat.LoadConversations(ctx); err != nil {
		return nil, toStatus("load conversations", err)
	}
	if err := s.chat.LoadUnreadCount(ctx); err != nil {
		s.logger.Warn("refresh unread count", zap.Error(err))
	}
	return s.snapshot(), nil
}

func (s *ChatService) CreateConversation(ctx context.Context, req *rpc.CreateConversationRequest) (*rpc.ConversationResponse, error) {
	if len(req.ParticipantIDs) == 0 {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "at least one participant is required")
	}
	c, err := s.chat.CreateConversation(ctx, req.ParticipantIDs)
	if err != nil {
		return nil, toStatus("create conversation", err)
	}
	return &rpc.ConversationResponse{Conversation: *c}, nil
}

func (s *ChatService) OpenConversation(ctx context.Context, req *rpc.OpenConversationRequest) (*rpc.ConversationResponse, error) {
	if req.UserID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "user id is required")
	}
	c, err := s.chat.OpenConversationWith(ctx, req.UserID)
	if err != nil {
		return nil, toStatus("open conversation", err)
	}
	return &rpc.ConversationResponse{Conversation: *c}, nil
}

func (s *ChatService) UpdateConversation(ctx context.Context, req *rpc.UpdateConversationRequest) (*rpc.ConversationResponse, error) {
	if req.Action != remote.ActionAdd && req.Action != remote.ActionRemove {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "action must be %q or %q", remote.ActionAdd, remote.ActionRemove)
	}
	if req.ID == "" || req.UserID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id and user id are required")
	}
	c, err := s.chat.UpdateConversation(ctx, req.ID, req.Action, req.UserID)
	if err != nil {
		return nil, toStatus("update conversation", err)
	}
	return &rpc.ConversationResponse{Conversation: *c}, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, req *rpc.ConversationRequest) (*rpc.Empty, error) {
	if req.ID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id is required")
	}
	if err := s.chat.DeleteConversation(ctx, req.ID); err != nil {
		return nil, toStatus("delete conversation", err)
	}
	return &rpc.Empty{}, nil
}

func (s *ChatService) SelectConversation(ctx context.Context, req *rpc.ConversationRequest) (*chat.Snapshot, error) {
	if req.ID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "conversation id is required")
	}
	if err := s.chat.SelectConversation(ctx, req.ID); err != nil {
		return nil, toStatus("select conversation", err)
	}
	return s.snapshot(), nil
}

func (s *ChatService) LoadMessages(ctx context.Context, req *rpc.ConversationRequest) (*chat.Snapshot, error) {
	if err := s.chat.LoadMessages(ctx, req.ID); err != nil {
		return nil, toStatus("load messages", err)
	}
	return s.snapshot(), nil
}

func (s *ChatService) SendMessage(ctx context.Context, req *rpc.SendMessageRequest) (*rpc.MessageResponse, error) {
	if strings.TrimSpace(req.Body) == "" && len(req.Files) == 0 {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "message body or files are required")
	}
	m, err := s.chat.SendMessage(ctx, req.ReceiverID, req.Body, req.Files)
	if err != nil {
		return nil, toStatus("send message", err)
	}
	return &rpc.MessageResponse{Message: *m}, nil
}

func (s *ChatService) UpdateMessage(ctx context.Context, req *rpc.UpdateMessageRequest) (*rpc.MessageResponse, error) {
	if req.ID == "" || strings.TrimSpace(req.Body) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "message id and body are required")
	}
	m, err := s.chat.UpdateMessage(ctx, req.ID, req.Body)
	if err != nil {
		return nil, toStatus("update message", err)
	}
	return &rpc.MessageResponse{Message: *m}, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, req *rpc.MessageRequest) (*rpc.Empty, error) {
	if req.ID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "message id is required")
	}
	if err := s.chat.DeleteMessage(ctx, req.ID); err != nil {
		return nil, toStatus("delete message", err)
	}
	return &rpc.Empty{}, nil
}

func (s *ChatService) MarkRead(ctx context.Context, req *rpc.MessageRequest) (*rpc.MessageResponse, error) {
	if req.ID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "message id is required")
	}
	m, err := s.chat.MarkAsRead(ctx, req.ID)
	if err != nil {
		return nil, toStatus("mark read", err)
	}
	return &rpc.MessageResponse{Message: *m}, nil
}

func (s *ChatService) Search(ctx context.Context, req *rpc.SearchRequest) (*rpc.SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "query is required")
	}
	found, err := s.chat.SearchMessages(ctx, req.Query, req.ConversationID)
	if err != nil {
		return nil, toStatus("search messages", err)
	}
	if found == nil {
		found = []chat.Message{}
	}
	return &rpc.SearchResponse{Results: found}, nil
}

func (s *ChatService) ClearSearch(_ context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	s.chat.ClearSearch()
	return &rpc.Empty{}, nil
}

func (s *ChatService) DismissError(_ context.Context, _ *rpc.Empty) (*rpc.Empty, error) {
	s.chat.DismissError()
	return &rpc.Empty{}, nil
}

// LocalSearch runs a full-text query against the mirror. It works while the
// backend is unreachable.
func (s *ChatService) LocalSearch(_ context.Context, req *rpc.LocalSearchRequest) (*rpc.LocalSearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLocalSearchLimit
	}
	limit = min(limit, maxLocalSearchLimit)

	results, err := s.db.SearchMessages(req.Query, req.ConversationID, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search mirror: %v", err)
	}

	out := make([]rpc.LocalResult, 0, len(results))
	for _, r := range results {
		out = append(out, rpc.LocalResult{
			MsgID:          r.Message.MsgID,
			ConversationID: r.Message.ConversationID,
			SenderName:     r.Message.SenderName,
			Body:           r.Message.Body,
			Snippet:        r.Snippet,
			CreatedAtMs:    r.Message.CreatedAt,
		})
	}
	return &rpc.LocalSearchResponse{Results: out}, nil
}

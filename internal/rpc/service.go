package rpc

import (
	"context"

	"github.com/matheus3301/inbox/internal/chat"
	"google.golang.org/grpc"
)

const (
	sessionServiceName = "inbox.v1.SessionService"
	chatServiceName    = "inbox.v1.ChatService"
)

// SessionServer serves the daemon status and sign-in calls.
type SessionServer interface {
	Status(context.Context, *Empty) (*StatusResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
}

// ChatServer exposes the synchronizer.
type ChatServer interface {
	Snapshot(context.Context, *Empty) (*chat.Snapshot, error)
	Refresh(context.Context, *Empty) (*chat.Snapshot, error)
	CreateConversation(context.Context, *CreateConversationRequest) (*ConversationResponse, error)
	OpenConversation(context.Context, *OpenConversationRequest) (*ConversationResponse, error)
	UpdateConversation(context.Context, *UpdateConversationRequest) (*ConversationResponse, error)
	DeleteConversation(context.Context, *ConversationRequest) (*Empty, error)
	SelectConversation(context.Context, *ConversationRequest) (*chat.Snapshot, error)
	LoadMessages(context.Context, *ConversationRequest) (*chat.Snapshot, error)
	SendMessage(context.Context, *SendMessageRequest) (*MessageResponse, error)
	UpdateMessage(context.Context, *UpdateMessageRequest) (*MessageResponse, error)
	DeleteMessage(context.Context, *MessageRequest) (*Empty, error)
	MarkRead(context.Context, *MessageRequest) (*MessageResponse, error)
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
	ClearSearch(context.Context, *Empty) (*Empty, error)
	DismissError(context.Context, *Empty) (*Empty, error)
	LocalSearch(context.Context, *LocalSearchRequest) (*LocalSearchResponse, error)
	Watch(*WatchRequest, WatchStream) error
}

// WatchStream is the server side of a Watch call.
type WatchStream interface {
	Send(*Event) error
	Context() context.Context
}

// RegisterSessionServer registers srv on s.
func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&sessionServiceDesc, srv)
}

// RegisterChatServer registers srv on s.
func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&chatServiceDesc, srv)
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// unary builds a method descriptor that decodes Req and dispatches to call,
// honouring any server interceptor.
func unary[S, Req, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(service, method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var sessionServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionServiceName,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(sessionServiceName, "Status", SessionServer.Status),
		unary(sessionServiceName, "Login", SessionServer.Login),
		unary(sessionServiceName, "Logout", SessionServer.Logout),
	},
	Metadata: "inbox/v1/session.json",
}

var chatServiceDesc = grpc.ServiceDesc{
	ServiceName: chatServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(chatServiceName, "Snapshot", ChatServer.Snapshot),
		unary(chatServiceName, "Refresh", ChatServer.Refresh),
		unary(chatServiceName, "CreateConversation", ChatServer.CreateConversation),
		unary(chatServiceName, "OpenConversation", ChatServer.OpenConversation),
		unary(chatServiceName, "UpdateConversation", ChatServer.UpdateConversation),
		unary(chatServiceName, "DeleteConversation", ChatServer.DeleteConversation),
		unary(chatServiceName, "SelectConversation", ChatServer.SelectConversation),
		unary(chatServiceName, "LoadMessages", ChatServer.LoadMessages),
		unary(chatServiceName, "SendMessage", ChatServer.SendMessage),
		unary(chatServiceName, "UpdateMessage", ChatServer.UpdateMessage),
		unary(chatServiceName, "DeleteMessage", ChatServer.DeleteMessage),
		unary(chatServiceName, "MarkRead", ChatServer.MarkRead),
		unary(chatServiceName, "Search", ChatServer.Search),
		unary(chatServiceName, "ClearSearch", ChatServer.ClearSearch),
		unary(chatServiceName, "DismissError", ChatServer.DismissError),
		unary(chatServiceName, "LocalSearch", ChatServer.LocalSearch),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(WatchRequest)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ChatServer).Watch(in, &watchServerStream{stream})
			},
		},
	},
	Metadata: "inbox/v1/chat.json",
}

type watchServerStream struct {
	grpc.ServerStream
}

func (s *watchServerStream) Send(e *Event) error {
	return s.ServerStream.SendMsg(e)
}

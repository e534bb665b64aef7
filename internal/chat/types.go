package chat

import (
	"context"
	"errors"

	"github.com/matheus3301/inbox/internal/remote"
)

// Event kinds published on the bus whenever the matching part of the state changes.
const (
	EventIdentity       = "chat.identity"
	EventConversations  = "chat.conversations"
	EventSelection      = "chat.selection"
	EventMessages       = "chat.messages"
	EventMessageDeleted = "chat.message_deleted"
	EventUnread         = "chat.unread"
	EventSearch         = "chat.search"
	EventError          = "chat.error"
)

var (
	// ErrSignedOut is returned by every operation while no identity is set.
	ErrSignedOut = errors.New("no signed-in identity")
	// ErrNoConversation is returned when an operation needs a selected conversation.
	ErrNoConversation = errors.New("no conversation selected")
	// ErrNoSuchParticipant is returned when the receiver cannot be resolved
	// among the participants of the selected conversation.
	ErrNoSuchParticipant = errors.New("no such participant in conversation")
	// ErrPending is returned when an operation targets a message the server has not confirmed yet.
	ErrPending = errors.New("message not confirmed yet")
	// ErrStale is returned when a response arrived after its selection or
	// identity was superseded; the response was discarded.
	ErrStale = errors.New("response superseded")
)

// MessageState is the local lifecycle stage of a message.
type MessageState string

const (
	StatePending   MessageState = "pending"
	StateConfirmed MessageState = "confirmed"
	StateEdited    MessageState = "edited"
)

// Message is a message as held in the local message list. Pending messages
// carry a locally generated id in both ID and LocalID until the server
// confirms them.
type Message struct {
	remote.Message
	LocalID string       `json:"localId,omitempty"`
	State   MessageState `json:"state"`
}

// Pending reports whether the message still waits for server confirmation.
func (m Message) Pending() bool {
	return m.State == StatePending
}

// Snapshot is a consistent copy of the synchronizer state.
type Snapshot struct {
	Identity            *remote.User          `json:"identity,omitempty"`
	Conversations       []remote.Conversation `json:"conversations"`
	CurrentConversation *remote.Conversation  `json:"currentConversation,omitempty"`
	CurrentID           string                `json:"currentId,omitempty"`
	Messages            []Message             `json:"messages"`
	UnreadCount         int                   `json:"unreadCount"`
	SearchResults       []remote.Message      `json:"searchResults"`
	Loading             bool                  `json:"loading"`
	Searching           bool                  `json:"searching"`
	Error               string                `json:"error,omitempty"`
}

// Backend is the remote source of truth. *remote.Client implements it.
type Backend interface {
	ListConversations(ctx context.Context, page, limit int) ([]remote.Conversation, error)
	GetConversation(ctx context.Context, id string) (*remote.Conversation, error)
	ConversationWith(ctx context.Context, userID string) (*remote.Conversation, error)
	CreateConversation(ctx context.Context, participantIDs []string) (*remote.Conversation, error)
	UpdateConversation(ctx context.Context, id string, action remote.MembershipAction, userID string) (*remote.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	ListMessages(ctx context.Context, conversationID string, page, limit int) ([]remote.Message, error)
	SendMessage(ctx context.Context, req remote.SendMessageRequest) (*remote.Message, error)
	UpdateMessage(ctx context.Context, id, body string) (*remote.Message, error)
	MarkRead(ctx context.Context, id string) (*remote.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	UnreadCount(ctx context.Context) (int, error)
	SearchMessages(ctx context.Context, query, conversationID string) ([]remote.Message, error)
}

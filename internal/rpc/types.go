package rpc

import (
	"encoding/json"
	"time"

	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/remote"
)

// Empty is used by calls without arguments or results.
type Empty struct{}

// StatusResponse describes the daemon and its mirror.
type StatusResponse struct {
	Profile       string       `json:"profile"`
	Status        string       `json:"status"`
	StatusMessage string       `json:"statusMessage,omitempty"`
	Identity      *remote.User `json:"identity,omitempty"`
	BaseURL       string       `json:"baseUrl"`
	UptimeMs      int64        `json:"uptimeMs"`
	Polling       bool         `json:"polling"`
	PollInterval  string       `json:"pollInterval"`
	UnreadCount   int          `json:"unreadCount"`
	Conversations int64        `json:"conversations"`
	Messages      int64        `json:"messages"`
	LastRefreshAt time.Time    `json:"lastRefreshAt,omitempty"`
	SchemaVersion uint         `json:"schemaVersion"`
	DroppedEvents uint64       `json:"droppedEvents"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User remote.User `json:"user"`
}

type CreateConversationRequest struct {
	ParticipantIDs []string `json:"participantIds"`
}

type OpenConversationRequest struct {
	UserID string `json:"userId"`
}

type UpdateConversationRequest struct {
	ID     string                  `json:"id"`
	Action remote.MembershipAction `json:"action"`
	UserID string                  `json:"userId"`
}

// ConversationRequest names one conversation.
type ConversationRequest struct {
	ID string `json:"id"`
}

type ConversationResponse struct {
	Conversation remote.Conversation `json:"conversation"`
}

type SendMessageRequest struct {
	ReceiverID string   `json:"receiverId,omitempty"`
	Body       string   `json:"body"`
	Files      []string `json:"files,omitempty"`
}

type UpdateMessageRequest struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

// MessageRequest names one message.
type MessageRequest struct {
	ID string `json:"id"`
}

type MessageResponse struct {
	Message chat.Message `json:"message"`
}

type SearchRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
}

type SearchResponse struct {
	Results []chat.Message `json:"results"`
}

type LocalSearchRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// LocalResult is a match from the offline mirror.
type LocalResult struct {
	MsgID          string `json:"msgId"`
	ConversationID string `json:"conversationId"`
	SenderName     string `json:"senderName"`
	Body           string `json:"body"`
	Snippet        string `json:"snippet"`
	CreatedAtMs    int64  `json:"createdAtMs"`
}

type LocalSearchResponse struct {
	Results []LocalResult `json:"results"`
}

// WatchRequest selects event kinds by prefix. No prefixes means all events.
type WatchRequest struct {
	Prefixes []string `json:"prefixes,omitempty"`
}

// Event is a bus event forwarded to a watching client.
type Event struct {
	ID               string          `json:"id"`
	Profile          string          `json:"profile"`
	Kind             string          `json:"kind"`
	OccurredAtUnixMs int64           `json:"occurredAtUnixMs"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

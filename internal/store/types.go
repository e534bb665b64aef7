package store

// Conversation is a mirrored conversation with its participants in server order.
type Conversation struct {
	ID                  string
	Participants        []User
	UnreadCount         int
	LastMessageID       string
	LastMessagePreview  string
	LastMessageSenderID string
	LastMessageRead     bool
	LastActivityAt      int64
	CreatedAt           int64
	UpdatedAt           int64
}

// User is a mirrored participant profile.
type User struct {
	ID       string
	Fullname string
	Username string
	Email    string
}

// Message represents a mirrored, server-confirmed message.
type Message struct {
	ID             int64
	MsgID          string
	ConversationID string
	SenderID       string
	SenderName     string
	ReceiverID     string
	Body           string
	Files          []string
	Read           bool
	Edited         bool
	CreatedAt      int64
	UpdatedAt      int64
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}

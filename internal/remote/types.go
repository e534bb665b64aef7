package remote

import "time"

// User is the public profile of an account as embedded in conversations and messages.
type User struct {
	ID       string `json:"_id"`
	Fullname string `json:"fullname,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	switch {
	case u.Fullname != "":
		return u.Fullname
	case u.Username != "":
		return u.Username
	case u.Email != "":
		return u.Email
	}
	return u.ID
}

// LastMessage is the denormalized preview carried by a conversation.
type LastMessage struct {
	ID        string    `json:"_id"`
	Message   string    `json:"message,omitempty"`
	Sender    *User     `json:"sender"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is a thread between a fixed participant set.
type Conversation struct {
	ID          string       `json:"_id"`
	Users       []User       `json:"users"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
	UnreadCount int          `json:"unreadCount"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, u := range c.Users {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Message is a single authored entry within a conversation.
type Message struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"conversation"`
	Sender         User      `json:"sender"`
	Receiver       User      `json:"receiver"`
	Body           string    `json:"message"`
	Files          []string  `json:"files,omitempty"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SendMessageRequest is the payload of POST /messages.
type SendMessageRequest struct {
	ReceiverID string   `json:"receiverId"`
	Message    string   `json:"message"`
	Files      []string `json:"files,omitempty"`
}

// MembershipAction is the kind of participant change applied by UpdateConversation.
type MembershipAction string

const (
	ActionAdd    MembershipAction = "add"
	ActionRemove MembershipAction = "remove"
)

// Session is the result of a successful login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

package remote

import (
	"context"
	"net/http"
	"net/url"
)

// ListConversations returns the conversations of the signed-in user.
func (c *Client) ListConversations(ctx context.Context, page, limit int) ([]Conversation, error) {
	var out []Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations", pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation returns a single conversation with its participants.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var out Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConversationWith returns the direct conversation between the signed-in user and userID.
func (c *Client) ConversationWith(ctx context.Context, userID string) (*Conversation, error) {
	var out Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/user/"+url.PathEscape(userID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversation creates a conversation with the given participants.
func (c *Client) CreateConversation(ctx context.Context, participantIDs []string) (*Conversation, error) {
	body := map[string]any{"participantIds": participantIDs}
	var out Conversation
	if err := c.do(ctx, http.MethodPost, "/conversations", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConversation adds or removes a participant.
func (c *Client) UpdateConversation(ctx context.Context, id string, action MembershipAction, userID string) (*Conversation, error) {
	body := map[string]any{"action": action, "userId": userID}
	var out Conversation
	if err := c.do(ctx, http.MethodPut, "/conversations/"+url.PathEscape(id), nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(id), nil, nil, nil)
}

// ListMessages returns a page of messages of one conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string, page, limit int) ([]Message, error) {
	var out []Message
	path := "/messages/conversation/" + url.PathEscape(conversationID)
	if err := c.do(ctx, http.MethodGet, path, pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts a new message and returns the stored record.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	var out Message
	if err := c.do(ctx, http.MethodPost, "/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateMessage replaces the body of a message.
func (c *Client) UpdateMessage(ctx context.Context, id, body string) (*Message, error) {
	var out Message
	if err := c.do(ctx, http.MethodPut, "/messages/"+url.PathEscape(id), nil, map[string]string{"message": body}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks a message as read and returns the updated record.
func (c *Client) MarkRead(ctx context.Context, id string) (*Message, error) {
	var out Message
	if err := c.do(ctx, http.MethodPut, "/messages/"+url.PathEscape(id)+"/read", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil, nil)
}

// UnreadCount returns the number of unread messages across all conversations.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unreadCount"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/unread/count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// SearchMessages runs a full-text query, optionally scoped to one conversation.
func (c *Client) SearchMessages(ctx context.Context, query, conversationID string) ([]Message, error) {
	q := url.Values{}
	q.Set("query", query)
	if conversationID != "" {
		q.Set("conversationId", conversationID)
	}
	var out []Message
	if err := c.do(ctx, http.MethodGet, "/messages/search", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

package api

import (
	"context"
	"io"
	"net/http"

	"github.com/strrl/aurora-cli/pkg/models"
)

// ChatRequest is one assistant submission
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Chat submits a message and returns the token stream. The caller closes it.
// A plan limit is reported as an *APIError with status 429.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (io.ReadCloser, error) {
	req, err := NewJSONRequest(http.MethodPost, "/assistant/chat", in)
	if err != nil {
		return nil, err
	}
	return c.Stream(ctx, req)
}

// Conversations lists past conversations (Pro and Enterprise only)
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/assistant/conversations"}, &resp)
	return resp.Conversations, err
}

package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

type chatMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage posts a user message and returns the assistant's reply.
func (c *Client) SendMessage(ctx context.Context, text string) (*ChatMessage, error) {
	var reply ChatMessage
	if err := c.do(ctx, http.MethodPost, "chat/message", nil, chatMessageRequest{Message: text}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ChatHistory returns past messages in chronological order.
func (c *Client) ChatHistory(ctx context.Context, limit int) ([]ChatMessage, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var msgs []ChatMessage
	if err := c.do(ctx, http.MethodGet, "chat/history", query, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ClearChatHistory deletes the conversation server-side.
func (c *Client) ClearChatHistory(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "chat/history", nil, nil, nil)
}

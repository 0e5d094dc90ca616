package api

import (
	"context"
	"fmt"
	"net/http"
)

type connectIntegrationRequest struct {
	Type     string `json:"type"`
	AuthCode string `json:"auth_code"`
}

// NotionPageRequest describes a page export to Notion.
type NotionPageRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ConnectIntegration links an external account (twitter, linkedin,
// notion) using an OAuth authorization code.
func (c *Client) ConnectIntegration(ctx context.Context, typ, authCode string) (*Integration, error) {
	var integration Integration
	req := connectIntegrationRequest{Type: typ, AuthCode: authCode}
	if err := c.do(ctx, http.MethodPost, "integrations/connect", nil, req, &integration); err != nil {
		return nil, err
	}
	return &integration, nil
}

// Integrations lists the user's connected accounts.
func (c *Client) Integrations(ctx context.Context) ([]Integration, error) {
	var integrations []Integration
	if err := c.do(ctx, http.MethodGet, "integrations", nil, nil, &integrations); err != nil {
		return nil, err
	}
	return integrations, nil
}

// DisconnectIntegration unlinks an external account.
func (c *Client) DisconnectIntegration(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("integrations/%d", id), nil, nil, nil)
}

// CreateNotionPage exports content to a connected Notion workspace.
func (c *Client) CreateNotionPage(ctx context.Context, req NotionPageRequest) (*NotionPage, error) {
	var page NotionPage
	if err := c.do(ctx, http.MethodPost, "notion/pages", nil, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SendFeedback submits a user rating.
func (c *Client) SendFeedback(ctx context.Context, fb Feedback) error {
	return c.do(ctx, http.MethodPost, "feedback", nil, fb, nil)
}

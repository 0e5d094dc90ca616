package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// GenerateRequest describes a content-generation call.
type GenerateRequest struct {
	Prompt   string `json:"prompt,omitempty"`
	Count    int    `json:"count,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type approveRequest struct {
	ScheduleTime *time.Time `json:"schedule_time,omitempty"`
}

type rejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

// GenerateDrafts asks the backend to generate new drafts. The server
// assigns ids; returned drafts start in pending status.
func (c *Client) GenerateDrafts(ctx context.Context, req GenerateRequest) ([]Draft, error) {
	var drafts []Draft
	if err := c.do(ctx, http.MethodPost, "content/generate", nil, req, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

// ListDrafts returns the user's drafts, optionally filtered by status.
func (c *Client) ListDrafts(ctx context.Context, status string) ([]Draft, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {status}}
	}
	var drafts []Draft
	if err := c.do(ctx, http.MethodGet, "content/drafts", query, nil, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

// GetDraft fetches a single draft by id.
func (c *Client) GetDraft(ctx context.Context, id int64) (*Draft, error) {
	var draft Draft
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("content/drafts/%d", id), nil, nil, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// ApproveDraft approves a draft. With a schedule time the server moves
// it to scheduled instead of approved; the returned draft is the
// server's authoritative representation.
func (c *Client) ApproveDraft(ctx context.Context, id int64, scheduleTime *time.Time) (*Draft, error) {
	var draft Draft
	path := fmt.Sprintf("content/drafts/%d/approve", id)
	if err := c.do(ctx, http.MethodPost, path, nil, approveRequest{ScheduleTime: scheduleTime}, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

// RejectDraft rejects a draft with an optional reason.
func (c *Client) RejectDraft(ctx context.Context, id int64, reason string) (*Draft, error) {
	var draft Draft
	path := fmt.Sprintf("content/drafts/%d/reject", id)
	if err := c.do(ctx, http.MethodPost, path, nil, rejectRequest{Reason: reason}, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

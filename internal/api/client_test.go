package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Version: "v1", Timeout: 2 * time.Second}, zap.NewNop())
	return c, srv
}

func writeEnvelope(w http.ResponseWriter, data any) {
	raw, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": json.RawMessage(raw)})
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, []Draft{})
	}))

	c.SetToken("tok-123")
	if _, err := c.ListDrafts(context.Background(), ""); err != nil {
		t.Fatalf("ListDrafts() error = %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", gotAuth)
	}

	c.ClearToken()
	if _, err := c.ListDrafts(context.Background(), ""); err != nil {
		t.Fatalf("ListDrafts() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization after ClearToken = %q, want empty", gotAuth)
	}
}

func TestVersionPrefixAndQuery(t *testing.T) {
	var gotPath, gotStatus string
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotStatus = r.URL.Query().Get("status")
		writeEnvelope(w, []Draft{})
	}))

	if _, err := c.ListDrafts(context.Background(), DraftPending); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/v1/content/drafts" {
		t.Errorf("path = %q, want /v1/content/drafts", gotPath)
	}
	if gotStatus != "pending" {
		t.Errorf("status query = %q, want pending", gotStatus)
	}
}

func TestGenerateDraftsDecodesPayload(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "AI trends" {
			t.Errorf("prompt = %q, want AI trends", req.Prompt)
		}
		writeEnvelope(w, []Draft{
			{ID: 1, Content: "first", Platform: PlatformTwitter, Status: DraftPending},
			{ID: 2, Content: "second", Platform: PlatformTwitter, Status: DraftPending},
		})
	}))

	drafts, err := c.GenerateDrafts(context.Background(), GenerateRequest{Prompt: "AI trends", Count: 2})
	if err != nil {
		t.Fatalf("GenerateDrafts() error = %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	if drafts[0].ID != 1 || drafts[0].Status != DraftPending {
		t.Errorf("draft[0] = %+v", drafts[0])
	}
}

func TestApproveDraftSendsScheduleTime(t *testing.T) {
	scheduled := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/content/drafts/7/approve" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["schedule_time"]; !ok {
			t.Error("schedule_time missing from request body")
		}
		writeEnvelope(w, Draft{ID: 7, Status: DraftScheduled, ScheduledFor: &scheduled})
	}))

	draft, err := c.ApproveDraft(context.Background(), 7, &scheduled)
	if err != nil {
		t.Fatalf("ApproveDraft() error = %v", err)
	}
	if draft.Status != DraftScheduled {
		t.Errorf("status = %q, want scheduled", draft.Status)
	}
	if draft.ScheduledFor == nil || !draft.ScheduledFor.Equal(scheduled) {
		t.Errorf("scheduledFor = %v, want %v", draft.ScheduledFor, scheduled)
	}
}

func TestErrorNormalization(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantMsg    string
	}{
		{
			name: "enveloped failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"success":false,"error":"Internal server error"}`))
			},
			wantStatus: 500,
			wantMsg:    "Internal server error",
		},
		{
			name: "fastapi detail",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"detail":"Draft not found"}`))
			},
			wantStatus: 404,
			wantMsg:    "Draft not found",
		},
		{
			name: "success false with 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":false,"message":"quota exceeded"}`))
			},
			wantStatus: 200,
			wantMsg:    "quota exceeded",
		},
		{
			name: "non-json error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("upstream down"))
			},
			wantStatus: 502,
			wantMsg:    "Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := testClient(t, tt.handler)
			_, err := c.ListDrafts(context.Background(), "")
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestTransportErrorNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := New(Config{BaseURL: srv.URL}, zap.NewNop())
	srv.Close()

	_, err := c.ListDrafts(context.Background(), "")
	if err == nil {
		t.Fatal("expected error against closed server")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("status = %d, want 0 for transport failure", apiErr.StatusCode)
	}
}

func TestSendMessageRoundTrip(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["message"] != "hello" {
			t.Errorf("message = %q, want hello", req["message"])
		}
		writeEnvelope(w, ChatMessage{
			ID:        42,
			Role:      RoleAssistant,
			Content:   "hi there",
			Timestamp: time.Now().UTC(),
			Actions: []MessageAction{
				{Type: "generate_content", Label: "Generate drafts"},
			},
		})
	}))

	reply, err := c.SendMessage(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply.Role != RoleAssistant || reply.Content != "hi there" {
		t.Errorf("reply = %+v", reply)
	}
	if len(reply.Actions) != 1 || reply.Actions[0].Type != "generate_content" {
		t.Errorf("actions = %+v", reply.Actions)
	}
}

func TestVerifyIDToken(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/auth/verify" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeEnvelope(w, VerifyResult{
			Token: "api-token",
			User:  AuthUser{ID: "uid-1", Email: "a@b.c", DisplayName: "A"},
		})
	}))

	res, err := c.VerifyIDToken(context.Background(), "firebase-id-token")
	if err != nil {
		t.Fatalf("VerifyIDToken() error = %v", err)
	}
	if res.Token != "api-token" || res.User.ID != "uid-1" {
		t.Errorf("result = %+v", res)
	}
}

package state

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexushq/nexus/internal/api"
	"github.com/nexushq/nexus/internal/bus"
)

// memCache is an in-memory Cache recording write-through calls.
type memCache struct {
	mu       sync.Mutex
	drafts   []api.Draft
	messages []api.ChatMessage
}

func (c *memCache) ReplaceDrafts(drafts []api.Draft) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drafts = append([]api.Draft{}, drafts...)
	return nil
}

func (c *memCache) UpsertDraft(d *api.Draft) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.drafts {
		if c.drafts[i].ID == d.ID {
			c.drafts[i] = *d
			return nil
		}
	}
	c.drafts = append([]api.Draft{*d}, c.drafts...)
	return nil
}

func (c *memCache) ListDrafts() ([]api.Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.Draft{}, c.drafts...), nil
}

func (c *memCache) ReplaceMessages(msgs []api.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append([]api.ChatMessage{}, msgs...)
	return nil
}

func (c *memCache) AppendMessage(m *api.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, *m)
	return nil
}

func (c *memCache) UpdateDelivery(clientID, delivery string, serverID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].ClientID == clientID {
			c.messages[i].Delivery = delivery
			return nil
		}
	}
	return errors.New("no message")
}

func (c *memCache) ListMessages() ([]api.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]api.ChatMessage{}, c.messages...), nil
}

func (c *memCache) ClearMessages() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	return nil
}

func writeData(w http.ResponseWriter, data any) {
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

func testStore(t *testing.T, mux *http.ServeMux, cache Cache) *Store {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := api.New(api.Config{BaseURL: srv.URL}, zap.NewNop())
	s := New(client, cache, bus.New(), zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func TestLoadDraftsReplaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/content/drafts", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []api.Draft{
			{ID: 2, Content: "b", Status: api.DraftPending},
			{ID: 1, Content: "a", Status: api.DraftApproved},
		})
	})
	cache := &memCache{}
	s := testStore(t, mux, cache)

	// Pre-populate so we can observe replacement, not merge.
	s.drafts = []api.Draft{{ID: 99, Content: "stale"}}

	if err := s.LoadDrafts(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	got := s.Drafts()
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 1 {
		t.Errorf("drafts = %+v", got)
	}
	if s.Loading().Drafts {
		t.Error("loading flag should be cleared")
	}
	if len(cache.drafts) != 2 {
		t.Errorf("cache not written through, have %d drafts", len(cache.drafts))
	}
}

func TestLoadDraftsErrorSetsSlot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/content/drafts", func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusInternalServerError, "backend down")
	})
	s := testStore(t, mux, nil)

	if err := s.LoadDrafts(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	if s.LastError() == "" {
		t.Error("error slot should be set")
	}
	if s.Loading().Drafts {
		t.Error("loading flag should be cleared on error")
	}
}

func TestErrorSlotClearedAtOperationStart(t *testing.T) {
	fail := true
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/content/drafts", func(w http.ResponseWriter, r *http.Request) {
		if fail {
			writeFailure(w, http.StatusInternalServerError, "boom")
			return
		}
		writeData(w, []api.Draft{})
	})
	s := testStore(t, mux, nil)

	_ = s.LoadDrafts(context.Background(), "")
	if s.LastError() == "" {
		t.Fatal("first load should record an error")
	}

	fail = false
	if err := s.LoadDrafts(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if s.LastError() != "" {
		t.Errorf("error slot = %q, want cleared", s.LastError())
	}
}

func TestGenerateDraftsPrepends(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/content/generate", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []api.Draft{
			{ID: 10, Content: "fresh one", Status: api.DraftPending},
			{ID: 11, Content: "fresh two", Status: api.DraftPending},
		})
	})
	s := testStore(t, mux, &memCache{})
	s.drafts = []api.Draft{{ID: 1, Content: "old", Status: api.DraftApproved}}

	drafts, err := s.GenerateDrafts(context.Background(), api.GenerateRequest{Prompt: "go tips", Count: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 2 {
		t.Fatalf("returned %d drafts", len(drafts))
	}

	got := s.Drafts()
	if len(got) != 3 {
		t.Fatalf("store has %d drafts, want 3 (generation is additive)", len(got))
	}
	if got[0].ID != 10 || got[1].ID != 11 || got[2].ID != 1 {
		t.Errorf("order = %d,%d,%d, want new drafts first", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestApproveDraftUpdatesStatus(t *testing.T) {
	scheduled := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/content/drafts/1/approve", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, api.Draft{ID: 1, Content: "a", Status: api.DraftScheduled, ScheduledFor: &scheduled})
	})
	cache := &memCache{}
	s := testStore(t, mux, cache)
	s.drafts = []api.Draft{{ID: 1, Content: "a", Status: api.DraftPending}}

	if err := s.ApproveDraft(context.Background(), 1, &scheduled); err != nil {
		t.Fatal(err)
	}

	got := s.Drafts()
	if got[0].Status != api.DraftScheduled {
		t.Errorf("status = %q, want scheduled", got[0].Status)
	}
	if got[0].ScheduledFor == nil || !got[0].ScheduledFor.Equal(scheduled) {
		t.Errorf("scheduledFor = %v", got[0].ScheduledFor)
	}
	if len(cache.drafts) != 1 || cache.drafts[0].Status != api.DraftScheduled {
		t.Error("approval not written through to cache")
	}
}

func TestApproveDraftNotFound(t *testing.T) {
	s := testStore(t, http.NewServeMux(), nil)

	err := s.ApproveDraft(context.Background(), 42, nil)
	if !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("error = %v, want ErrDraftNotFound", err)
	}
}

func TestRejectDraftServerNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/content/drafts/1/reject", func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "draft not found")
	})
	s := testStore(t, mux, nil)
	s.drafts = []api.Draft{{ID: 1, Status: api.DraftPending}}

	err := s.RejectDraft(context.Background(), 1, "off brand")
	if !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("error = %v, want ErrDraftNotFound for server 404", err)
	}
}

func TestSendMessageSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/message", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, api.ChatMessage{ID: 7, Role: api.RoleAssistant, Content: "sure thing"})
	})
	cache := &memCache{}
	s := testStore(t, mux, cache)

	reply, err := s.SendMessage(context.Background(), "draft me a post")
	if err != nil {
		t.Fatal(err)
	}
	if reply == nil || reply.Content != "sure thing" {
		t.Fatalf("reply = %+v", reply)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("have %d messages, want user + assistant", len(msgs))
	}
	if msgs[0].Role != api.RoleUser || msgs[0].Delivery != api.DeliverySent {
		t.Errorf("user message = %+v, want sent", msgs[0])
	}
	if msgs[0].ClientID == "" {
		t.Error("tentative message should carry a client id")
	}
	if msgs[1].Role != api.RoleAssistant {
		t.Errorf("second message role = %q", msgs[1].Role)
	}
	if len(cache.messages) != 2 {
		t.Errorf("cache has %d messages", len(cache.messages))
	}
}

func TestSendMessageFailureKeepsEntry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/message", func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusBadGateway, "model unavailable")
	})
	s := testStore(t, mux, &memCache{})

	if _, err := s.SendMessage(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("have %d messages, want failed entry kept", len(msgs))
	}
	if msgs[0].Delivery != api.DeliveryFailed {
		t.Errorf("delivery = %q, want failed", msgs[0].Delivery)
	}
	if s.LastError() == "" {
		t.Error("error slot should be set")
	}
}

func TestRetryMessage(t *testing.T) {
	fail := true
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/message", func(w http.ResponseWriter, r *http.Request) {
		if fail {
			writeFailure(w, http.StatusBadGateway, "model unavailable")
			return
		}
		writeData(w, api.ChatMessage{ID: 8, Role: api.RoleAssistant, Content: "done"})
	})
	s := testStore(t, mux, &memCache{})

	_, _ = s.SendMessage(context.Background(), "hello")
	failed := s.Messages()[0]

	fail = false
	reply, err := s.RetryMessage(context.Background(), failed.ClientID)
	if err != nil {
		t.Fatal(err)
	}
	if reply == nil || reply.Content != "done" {
		t.Fatalf("reply = %+v", reply)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("have %d messages", len(msgs))
	}
	if msgs[0].Delivery != api.DeliverySent || msgs[0].Content != "hello" {
		t.Errorf("retried message = %+v", msgs[0])
	}
}

func TestStaleLoadResponseDiscarded(t *testing.T) {
	s := testStore(t, http.NewServeMux(), nil)

	old, err := s.begin(resDrafts)
	if err != nil {
		t.Fatal(err)
	}
	newer, err := s.begin(resDrafts)
	if err != nil {
		t.Fatal(err)
	}

	var staleApplied, applied bool
	if s.finish(resDrafts, old, nil, func() { staleApplied = true }) {
		t.Error("overtaken response should be dropped")
	}
	if staleApplied {
		t.Error("overtaken response must not touch state")
	}
	if !s.finish(resDrafts, newer, nil, func() { applied = true }) {
		t.Error("current response should apply")
	}
	if !applied {
		t.Error("current response should run its apply")
	}
}

// Two overlapping loads where the earlier-issued request responds last.
// Only the later-issued response may end up in the store and the cache.
func TestOverlappingLoadsLatestWins(t *testing.T) {
	firstArrived := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/content/drafts", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(firstArrived)
			<-release
			writeData(w, []api.Draft{{ID: 1, Content: "slow and stale"}})
			return
		}
		writeData(w, []api.Draft{{ID: 2, Content: "fresh"}})
	})
	cache := &memCache{}
	s := testStore(t, mux, cache)

	done := make(chan error, 1)
	go func() { done <- s.LoadDrafts(context.Background(), "") }()
	<-firstArrived

	if err := s.LoadDrafts(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	got := s.Drafts()
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("drafts = %+v, want only the later load's result", got)
	}
	cached, _ := cache.ListDrafts()
	if len(cached) != 1 || cached[0].ID != 2 {
		t.Errorf("cache = %+v, want the later load's result", cached)
	}
}

func TestLoadChatHistoryKeepsFailedEntry(t *testing.T) {
	var mu sync.Mutex
	history := []api.ChatMessage{
		{ID: 1, Role: api.RoleAssistant, Content: "earlier", Delivery: api.DeliverySent},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/message", func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusBadGateway, "model unavailable")
	})
	mux.HandleFunc("GET /v1/chat/history", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		writeData(w, history)
	})
	cache := &memCache{}
	s := testStore(t, mux, cache)

	_, _ = s.SendMessage(context.Background(), "hello")
	failed := s.Messages()[0]

	if err := s.LoadChatHistory(context.Background(), 50); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("have %d messages, want server entry + kept failed entry", len(msgs))
	}
	if msgs[1].ClientID != failed.ClientID || msgs[1].Delivery != api.DeliveryFailed {
		t.Errorf("kept entry = %+v, want the failed send", msgs[1])
	}
	var inCache bool
	for _, m := range cache.messages {
		if m.ClientID == failed.ClientID {
			inCache = true
		}
	}
	if !inCache {
		t.Error("failed entry dropped from cache on history replace")
	}

	// Once the server knows the client id, the local copy yields to it.
	mu.Lock()
	history = append(history, api.ChatMessage{
		ID: 2, ClientID: failed.ClientID, Role: api.RoleUser, Content: "hello", Delivery: api.DeliverySent,
	})
	mu.Unlock()

	if err := s.LoadChatHistory(context.Background(), 50); err != nil {
		t.Fatal(err)
	}
	msgs = s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("have %d messages after confirmation, want 2", len(msgs))
	}
	if msgs[1].Delivery != api.DeliverySent || msgs[1].ID != 2 {
		t.Errorf("confirmed entry = %+v, want the server's copy", msgs[1])
	}
}

func TestStaleErrorDoesNotClobberSlot(t *testing.T) {
	s := testStore(t, http.NewServeMux(), nil)

	old, _ := s.begin(resChat)
	_, _ = s.begin(resChat)

	s.finish(resChat, old, errors.New("stale failure"), nil)
	if s.LastError() != "" {
		t.Errorf("error slot = %q, stale failure should be dropped", s.LastError())
	}
}

func TestCloseDropsOperations(t *testing.T) {
	s := testStore(t, http.NewServeMux(), nil)
	s.Close()

	if err := s.LoadDrafts(context.Background(), ""); !errors.Is(err, ErrClosed) {
		t.Errorf("LoadDrafts after close = %v, want ErrClosed", err)
	}
	if _, err := s.SendMessage(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("SendMessage after close = %v, want ErrClosed", err)
	}
}

func TestHydrateSeedsFromCache(t *testing.T) {
	cache := &memCache{
		drafts:   []api.Draft{{ID: 1, Content: "cached", Status: api.DraftPending}},
		messages: []api.ChatMessage{{ID: 1, Role: api.RoleUser, Content: "hi", Delivery: api.DeliverySent}},
	}
	s := testStore(t, http.NewServeMux(), cache)

	if err := s.Hydrate(); err != nil {
		t.Fatal(err)
	}
	if len(s.Drafts()) != 1 || s.Drafts()[0].Content != "cached" {
		t.Errorf("drafts = %+v", s.Drafts())
	}
	if len(s.Messages()) != 1 {
		t.Errorf("messages = %+v", s.Messages())
	}
}

func TestLoadAnalytics(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/analytics", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("range"); got != "month" {
			t.Errorf("range = %q", got)
		}
		writeData(w, api.AnalyticsData{TimeRange: "month", DraftsGenerated: 12})
	})
	s := testStore(t, mux, nil)

	if err := s.LoadAnalytics(context.Background(), "month"); err != nil {
		t.Fatal(err)
	}
	a := s.Analytics()
	if a == nil || a.DraftsGenerated != 12 {
		t.Errorf("analytics = %+v", a)
	}
}

func TestClearChatHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /v1/chat/history", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, nil)
	})
	cache := &memCache{messages: []api.ChatMessage{{ID: 1, Content: "hi"}}}
	s := testStore(t, mux, cache)
	s.messages = []api.ChatMessage{{ID: 1, Content: "hi"}}

	if err := s.ClearChatHistory(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(s.Messages()) != 0 {
		t.Error("messages should be cleared")
	}
	if len(cache.messages) != 0 {
		t.Error("cache should be cleared")
	}
}

func TestBusEventsOnChange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/content/drafts", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []api.Draft{{ID: 1}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	b := bus.New()
	ch, unsub := b.Subscribe("state.", 32)
	defer unsub()

	client := api.New(api.Config{BaseURL: srv.URL}, zap.NewNop())
	s := New(client, nil, b, zap.NewNop())
	t.Cleanup(s.Close)

	if err := s.LoadDrafts(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	var kinds []string
	deadline := time.After(time.Second)
	for len(kinds) < 3 {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		case <-deadline:
			t.Fatalf("timed out, saw %v", kinds)
		}
	}
	var sawDrafts bool
	for _, k := range kinds {
		if k == bus.KindDraftsChanged {
			sawDrafts = true
		}
	}
	if !sawDrafts {
		t.Errorf("no drafts_changed event in %v", kinds)
	}
}

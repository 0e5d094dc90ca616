package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexushq/nexus/internal/api"
	"github.com/nexushq/nexus/internal/bus"
)

// ErrClosed is returned by operations dispatched after Close.
var ErrClosed = errors.New("state: store closed")

// ErrDraftNotFound is returned by draft mutations targeting an id that
// is not present in the store.
var ErrDraftNotFound = errors.New("state: draft not found")

// resource identifies a replaceable slice of application state. Each
// resource carries its own sequence token so a stale load response can
// never clobber the result of a newer one.
type resource int

const (
	resDrafts resource = iota
	resChat
	resAnalytics
	resourceCount
)

// Loading holds the per-resource busy flags exposed to the UI.
type Loading struct {
	Drafts    bool
	Chat      bool
	Analytics bool
}

// Cache is the local persistence consumed by the store. Writes are
// best-effort; a cache failure is logged, never surfaced.
type Cache interface {
	ReplaceDrafts(drafts []api.Draft) error
	UpsertDraft(d *api.Draft) error
	ListDrafts() ([]api.Draft, error)
	ReplaceMessages(msgs []api.ChatMessage) error
	AppendMessage(m *api.ChatMessage) error
	UpdateDelivery(clientID, delivery string, serverID int64) error
	ListMessages() ([]api.ChatMessage, error)
	ClearMessages() error
}

// Store is the single source of truth for application data. All reads
// and writes go through it; the UI observes changes via the bus and
// pulls snapshots with the accessor methods.
type Store struct {
	client *api.Client
	cache  Cache
	bus    *bus.Bus
	logger *zap.Logger

	mu              sync.Mutex
	drafts          []api.Draft
	messages        []api.ChatMessage
	analytics       *api.AnalyticsData
	recommendations []api.Recommendation
	loading         Loading
	lastError       string
	seq             [resourceCount]uint64
	closed          bool
}

// New creates a store. cache may be nil for a purely in-memory store.
func New(client *api.Client, cache Cache, b *bus.Bus, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		cache:  cache,
		bus:    b,
		logger: logger.Named("state"),
	}
}

// Hydrate seeds the store from the local cache so the UI has content
// before the first network round trip completes.
func (s *Store) Hydrate() error {
	if s.cache == nil {
		return nil
	}
	drafts, err := s.cache.ListDrafts()
	if err != nil {
		return err
	}
	msgs, err := s.cache.ListMessages()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.drafts = drafts
	s.messages = msgs
	s.publishLocked(bus.KindDraftsChanged, len(drafts))
	s.publishLocked(bus.KindChatChanged, len(msgs))
	return nil
}

// Close stops the store. In-flight operations complete their network
// call but their responses are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Drafts returns a snapshot of the draft list.
func (s *Store) Drafts() []api.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Draft, len(s.drafts))
	copy(out, s.drafts)
	return out
}

// Messages returns a snapshot of the conversation.
func (s *Store) Messages() []api.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Analytics returns the latest analytics snapshot, or nil.
func (s *Store) Analytics() *api.AnalyticsData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analytics
}

// Recommendations returns the latest recommendations.
func (s *Store) Recommendations() []api.Recommendation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Recommendation, len(s.recommendations))
	copy(out, s.recommendations)
	return out
}

// Loading returns the per-resource busy flags.
func (s *Store) Loading() Loading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the most recent operation error message, or "".
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// begin starts an operation on a resource: clears the error slot, bumps
// the resource's sequence token and raises its loading flag. The token
// lets finish discard responses that were overtaken by a newer load.
func (s *Store) begin(res resource) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.seq[res]++
	s.setErrorLocked("")
	s.setLoadingLocked(res, true)
	return s.seq[res], nil
}

// finish settles an operation. It reports whether the result is still
// current; stale or post-close results are dropped without touching
// state, and the error slot is only written by the current operation.
// apply, when non-nil, runs for a current successful result under the
// same lock acquisition as the token check, so no newer operation can
// begin between the check and the state write.
func (s *Store) finish(res resource, token uint64, opErr error, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.seq[res] != token {
		return false
	}
	s.setLoadingLocked(res, false)
	if opErr != nil {
		s.setErrorLocked(opErr.Error())
		return true
	}
	if apply != nil {
		apply()
	}
	return true
}

func (s *Store) setLoadingLocked(res resource, v bool) {
	switch res {
	case resDrafts:
		s.loading.Drafts = v
	case resChat:
		s.loading.Chat = v
	case resAnalytics:
		s.loading.Analytics = v
	}
	s.publishLocked(bus.KindLoadingChanged, s.loading)
}

func (s *Store) setErrorLocked(msg string) {
	if s.lastError == msg {
		return
	}
	s.lastError = msg
	s.publishLocked(bus.KindErrorChanged, msg)
}

func (s *Store) publishLocked(kind string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// LoadDrafts replaces the draft list with the server's view.
func (s *Store) LoadDrafts(ctx context.Context, status string) error {
	token, err := s.begin(resDrafts)
	if err != nil {
		return err
	}

	drafts, err := s.client.ListDrafts(ctx, status)
	if !s.finish(resDrafts, token, err, func() {
		s.drafts = drafts
		s.publishLocked(bus.KindDraftsChanged, len(drafts))
		s.writeThrough(func(c Cache) error { return c.ReplaceDrafts(drafts) })
	}) {
		return nil
	}
	return err
}

// GenerateDrafts requests new drafts and prepends them to the list.
// Generation is additive, so the result is applied even if a LoadDrafts
// was issued in the meantime.
func (s *Store) GenerateDrafts(ctx context.Context, req api.GenerateRequest) ([]api.Draft, error) {
	token, err := s.begin(resDrafts)
	if err != nil {
		return nil, err
	}

	drafts, err := s.client.GenerateDrafts(ctx, req)
	current := s.finish(resDrafts, token, err, nil)
	if err != nil {
		if current {
			return nil, err
		}
		return nil, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.drafts = append(append([]api.Draft{}, drafts...), s.drafts...)
	s.publishLocked(bus.KindDraftsChanged, len(s.drafts))
	s.mu.Unlock()

	for i := len(drafts) - 1; i >= 0; i-- {
		d := drafts[i]
		s.writeThrough(func(c Cache) error { return c.UpsertDraft(&d) })
	}
	return drafts, nil
}

// ApproveDraft approves a pending draft, optionally scheduling it.
// Returns ErrDraftNotFound when the id is not in the store.
func (s *Store) ApproveDraft(ctx context.Context, id int64, scheduleTime *time.Time) error {
	return s.mutateDraft(ctx, id, func(ctx context.Context) (*api.Draft, error) {
		return s.client.ApproveDraft(ctx, id, scheduleTime)
	})
}

// RejectDraft rejects a pending draft with an optional reason.
// Returns ErrDraftNotFound when the id is not in the store.
func (s *Store) RejectDraft(ctx context.Context, id int64, reason string) error {
	return s.mutateDraft(ctx, id, func(ctx context.Context) (*api.Draft, error) {
		return s.client.RejectDraft(ctx, id, reason)
	})
}

func (s *Store) mutateDraft(ctx context.Context, id int64, call func(context.Context) (*api.Draft, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.indexOfDraftLocked(id) < 0 {
		s.mu.Unlock()
		return ErrDraftNotFound
	}
	s.setErrorLocked("")
	s.mu.Unlock()

	updated, err := call(ctx)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			err = ErrDraftNotFound
		}
		s.mu.Lock()
		if !s.closed {
			s.setErrorLocked(err.Error())
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if i := s.indexOfDraftLocked(updated.ID); i >= 0 {
		s.drafts[i] = *updated
	}
	s.publishLocked(bus.KindDraftsChanged, len(s.drafts))
	s.mu.Unlock()

	s.writeThrough(func(c Cache) error { return c.UpsertDraft(updated) })
	return nil
}

func (s *Store) indexOfDraftLocked(id int64) int {
	for i := range s.drafts {
		if s.drafts[i].ID == id {
			return i
		}
	}
	return -1
}

// LoadChatHistory replaces the conversation with the server's view.
// Local tentative entries the server has not seen (delivery sending or
// failed) are carried over, so a failed send stays visible for retry
// across refreshes.
func (s *Store) LoadChatHistory(ctx context.Context, limit int) error {
	token, err := s.begin(resChat)
	if err != nil {
		return err
	}

	msgs, err := s.client.ChatHistory(ctx, limit)
	if !s.finish(resChat, token, err, func() {
		merged := mergeUnconfirmed(msgs, s.messages)
		s.messages = merged
		s.publishLocked(bus.KindChatChanged, len(merged))
		s.writeThrough(func(c Cache) error { return c.ReplaceMessages(merged) })
	}) {
		return nil
	}
	return err
}

// mergeUnconfirmed re-appends local tentative entries whose client id the
// server list does not carry. Confirmed entries are the server's to
// replace.
func mergeUnconfirmed(server, local []api.ChatMessage) []api.ChatMessage {
	known := make(map[string]bool, len(server))
	for _, m := range server {
		if m.ClientID != "" {
			known[m.ClientID] = true
		}
	}
	merged := append([]api.ChatMessage{}, server...)
	for _, m := range local {
		if m.ClientID == "" || known[m.ClientID] {
			continue
		}
		if m.Delivery == api.DeliverySending || m.Delivery == api.DeliveryFailed {
			merged = append(merged, m)
		}
	}
	return merged
}

// SendMessage appends a tentative user message, posts it, and
// reconciles the tentative entry with the outcome. On success the
// assistant's reply is appended; on failure the entry is marked failed
// and stays visible for retry.
func (s *Store) SendMessage(ctx context.Context, text string) (*api.ChatMessage, error) {
	tentative := api.ChatMessage{
		ClientID:  uuid.New().String(),
		Role:      api.RoleUser,
		Content:   text,
		Delivery:  api.DeliverySending,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.setErrorLocked("")
	s.messages = append(s.messages, tentative)
	s.publishLocked(bus.KindChatChanged, len(s.messages))
	s.mu.Unlock()

	s.writeThrough(func(c Cache) error { return c.AppendMessage(&tentative) })

	reply, err := s.client.SendMessage(ctx, text)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	i := s.indexOfClientIDLocked(tentative.ClientID)
	if err != nil {
		if i >= 0 {
			s.messages[i].Delivery = api.DeliveryFailed
		}
		s.setErrorLocked(err.Error())
		s.publishLocked(bus.KindChatSendFailed, tentative.ClientID)
		s.publishLocked(bus.KindChatChanged, len(s.messages))
		s.mu.Unlock()
		s.writeThrough(func(c Cache) error {
			return c.UpdateDelivery(tentative.ClientID, api.DeliveryFailed, 0)
		})
		return nil, err
	}

	if i >= 0 {
		s.messages[i].Delivery = api.DeliverySent
	}
	if reply != nil {
		s.messages = append(s.messages, *reply)
	}
	s.publishLocked(bus.KindChatSendAck, tentative.ClientID)
	s.publishLocked(bus.KindChatChanged, len(s.messages))
	s.mu.Unlock()

	s.writeThrough(func(c Cache) error {
		return c.UpdateDelivery(tentative.ClientID, api.DeliverySent, 0)
	})
	if reply != nil {
		s.writeThrough(func(c Cache) error { return c.AppendMessage(reply) })
	}
	return reply, nil
}

// RetryMessage re-sends a failed tentative message. The failed entry is
// removed first; SendMessage appends a fresh tentative in its place.
func (s *Store) RetryMessage(ctx context.Context, clientID string) (*api.ChatMessage, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	i := s.indexOfClientIDLocked(clientID)
	if i < 0 || s.messages[i].Delivery != api.DeliveryFailed {
		s.mu.Unlock()
		return nil, errors.New("state: no failed message with that id")
	}
	text := s.messages[i].Content
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	s.publishLocked(bus.KindChatChanged, len(s.messages))
	s.mu.Unlock()

	return s.SendMessage(ctx, text)
}

func (s *Store) indexOfClientIDLocked(clientID string) int {
	for i := range s.messages {
		if s.messages[i].ClientID == clientID {
			return i
		}
	}
	return -1
}

// ClearChatHistory deletes the conversation on the server and locally.
func (s *Store) ClearChatHistory(ctx context.Context) error {
	token, err := s.begin(resChat)
	if err != nil {
		return err
	}

	err = s.client.ClearChatHistory(ctx)
	if !s.finish(resChat, token, err, func() {
		s.messages = nil
		s.publishLocked(bus.KindChatChanged, 0)
		s.writeThrough(func(c Cache) error { return c.ClearMessages() })
	}) {
		return nil
	}
	return err
}

// LoadAnalytics replaces the analytics snapshot for the given range
// (week when empty).
func (s *Store) LoadAnalytics(ctx context.Context, timeRange string) error {
	if timeRange == "" {
		timeRange = "week"
	}
	token, err := s.begin(resAnalytics)
	if err != nil {
		return err
	}

	data, err := s.client.Analytics(ctx, timeRange)
	if !s.finish(resAnalytics, token, err, func() {
		s.analytics = data
		s.publishLocked(bus.KindAnalyticsChanged, timeRange)
	}) {
		return nil
	}
	return err
}

// LoadRecommendations refreshes the recommendations list.
func (s *Store) LoadRecommendations(ctx context.Context) error {
	token, err := s.begin(resAnalytics)
	if err != nil {
		return err
	}

	recs, err := s.client.Recommendations(ctx)
	if !s.finish(resAnalytics, token, err, func() {
		s.recommendations = recs
		s.publishLocked(bus.KindAnalyticsChanged, "recommendations")
	}) {
		return nil
	}
	return err
}

// writeThrough applies a cache mutation, logging failures. The cache is
// a convenience layer; a failed write never surfaces to callers.
func (s *Store) writeThrough(fn func(Cache) error) {
	if s.cache == nil {
		return
	}
	if err := fn(s.cache); err != nil {
		s.logger.Warn("cache write failed", zap.Error(err))
	}
}

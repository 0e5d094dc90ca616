package api

import (
	"encoding/json"
	"time"
)

// Draft statuses. Approve/reject only ever move a pending draft; the
// scheduled and published states are server-driven.
const (
	DraftPending   = "pending"
	DraftApproved  = "approved"
	DraftRejected  = "rejected"
	DraftScheduled = "scheduled"
	DraftPublished = "published"
)

// Supported target platforms.
const (
	PlatformTwitter  = "twitter"
	PlatformLinkedIn = "linkedin"
)

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Draft is a generated, not-yet-published content item awaiting
// disposition. Content is immutable after creation; only the status
// (and scheduling) changes.
type Draft struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id,omitempty"`
	Content          string          `json:"content"`
	Platform         string          `json:"platform"`
	Status           string          `json:"status"`
	Variants         []string        `json:"variants,omitempty"`
	Themes           []string        `json:"themes,omitempty"`
	ScheduledFor     *time.Time      `json:"scheduled_for,omitempty"`
	BestTimeScore    *float64        `json:"best_time_score,omitempty"`
	Scores           *DraftScores    `json:"scores,omitempty"`
	ModerationStatus string          `json:"moderation_status,omitempty"`
	ModerationFlags  json.RawMessage `json:"moderation_flags,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

// DraftScores holds backend-computed quality signals. Opaque to the
// client; rendered as-is.
type DraftScores struct {
	Readability          float64 `json:"readability"`
	Sentiment            float64 `json:"sentiment"`
	HookStrength         float64 `json:"hook_strength"`
	Personalization      float64 `json:"personalization"`
	EngagementPrediction float64 `json:"engagement_prediction"`
}

// ChatMessage is one entry in the assistant conversation. Messages the
// client created optimistically carry a ClientID and Delivery state
// until the server confirms them; server-confirmed messages have ID set.
type ChatMessage struct {
	ID        int64           `json:"id,omitempty"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Actions   []MessageAction `json:"actions,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	ClientID string `json:"client_id,omitempty"`
	Delivery string `json:"delivery,omitempty"`
}

// Delivery states for optimistically appended messages.
const (
	DeliverySending = "sending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

// MessageAction is a tagged action suggestion attached to an assistant
// reply (e.g. "generate drafts about X").
type MessageAction struct {
	Type    string          `json:"type"`
	Label   string          `json:"label"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AnalyticsData is a point-in-time aggregate for one time range. It is
// replaced wholesale on every fetch, never merged.
type AnalyticsData struct {
	UserID                int64                `json:"userId"`
	TimeRange             string               `json:"timeRange"`
	DraftsGenerated       int                  `json:"draftsGenerated"`
	DraftsApproved        int                  `json:"draftsApproved"`
	PostsPublished        int                  `json:"postsPublished"`
	EngagementGrowth      float64              `json:"engagementGrowth"`
	TimeSaved             int                  `json:"timeSaved"`
	ApprovalRate          float64              `json:"approvalRate"`
	TopThemes             []ThemeStat          `json:"topThemes,omitempty"`
	BestPerformingContent []ContentPerformance `json:"bestPerformingContent,omitempty"`
}

// ThemeStat aggregates posts and engagement for one content theme.
type ThemeStat struct {
	Theme      string `json:"theme"`
	Posts      int    `json:"posts"`
	Engagement int    `json:"engagement"`
}

// ContentPerformance describes one published item and its engagement.
type ContentPerformance struct {
	ID          int64           `json:"id"`
	Content     string          `json:"content"`
	Platform    string          `json:"platform"`
	PublishedAt string          `json:"publishedAt"`
	Engagement  EngagementStats `json:"engagement"`
}

// EngagementStats are raw engagement counters plus a composite score.
type EngagementStats struct {
	Likes       int `json:"likes"`
	Shares      int `json:"shares"`
	Comments    int `json:"comments"`
	Impressions int `json:"impressions"`
	Score       int `json:"score"`
}

// EngagementTrend is one day of the engagement-trends series.
type EngagementTrend struct {
	Date        string `json:"date"`
	Impressions int    `json:"impressions"`
	Engagement  int    `json:"engagement"`
	Posts       int    `json:"posts"`
}

// Recommendation is an AI-generated suggestion for the user.
type Recommendation struct {
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Action      string  `json:"action,omitempty"`
}

// UserProfile is the per-user settings document.
type UserProfile struct {
	UserID       string        `json:"userId,omitempty"`
	Goals        []string      `json:"goals"`
	Themes       []string      `json:"themes"`
	VoiceProfile VoiceProfile  `json:"voiceProfile"`
	Preferences  Preferences   `json:"preferences"`
	Integrations []Integration `json:"integrations,omitempty"`
	CreatedAt    time.Time     `json:"createdAt,omitempty"`
	UpdatedAt    *time.Time    `json:"updatedAt,omitempty"`
}

// VoiceProfile captures the user's writing voice.
type VoiceProfile struct {
	Tone    Tone     `json:"tone"`
	Style   []string `json:"style,omitempty"`
	Summary string   `json:"summary,omitempty"`
}

// Tone sliders, 0-100 each.
type Tone struct {
	Formal     int `json:"formal"`
	Punchy     int `json:"punchy"`
	Contrarian int `json:"contrarian"`
}

// Preferences bundles notification, posting and consultation settings.
type Preferences struct {
	Notifications NotificationPrefs `json:"notifications"`
	Posting       PostingPrefs      `json:"posting"`
	Consultation  ConsultationPrefs `json:"consultation"`
}

// NotificationPrefs toggles event notifications per category.
type NotificationPrefs struct {
	Drafts     bool `json:"drafts"`
	Approvals  bool `json:"approvals"`
	Analytics  bool `json:"analytics"`
	Engagement bool `json:"engagement"`
}

// PostingPrefs controls automatic publication behavior.
type PostingPrefs struct {
	AutoApprove       bool `json:"autoApprove"`
	BestTimeOnly      bool `json:"bestTimeOnly"`
	RequireModeration bool `json:"requireModeration"`
}

// ConsultationPrefs controls proactive assistant behavior.
type ConsultationPrefs struct {
	Proactive bool   `json:"proactive"`
	Frequency string `json:"frequency"`
}

// Integration is a connected external account.
type Integration struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Permissions []string   `json:"permissions,omitempty"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
	LastSyncAt  *time.Time `json:"lastSyncAt,omitempty"`
}

// VoiceAnalysis is the result of analyzing writing samples.
type VoiceAnalysis struct {
	Tone    Tone       `json:"tone"`
	Style   VoiceStyle `json:"style"`
	Summary string     `json:"summary"`
}

// VoiceStyle decomposes the analyzed writing style.
type VoiceStyle struct {
	Personality []string `json:"personality,omitempty"`
	Vocabulary  []string `json:"vocabulary,omitempty"`
	Structure   []string `json:"structure,omitempty"`
}

// AuthUser is the backend's view of the authenticated user.
type AuthUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// VerifyResult is returned by the identity-token exchange.
type VerifyResult struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

// NotionPage is a page exported to a connected Notion workspace.
type NotionPage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Feedback is a user rating of a draft, consultation or the product.
type Feedback struct {
	Type    string          `json:"type"`
	Rating  int             `json:"rating"`
	Comment string          `json:"comment,omitempty"`
	Context json.RawMessage `json:"context,omitempty"`
}

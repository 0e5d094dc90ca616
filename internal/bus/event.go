package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published by the application. Subscribers filter by
// namespace prefix, e.g. "state." receives every store change.
const (
	KindDraftsChanged    = "state.drafts_changed"
	KindChatChanged      = "state.chat_changed"
	KindAnalyticsChanged = "state.analytics_changed"
	KindLoadingChanged   = "state.loading_changed"
	KindErrorChanged     = "state.error_changed"

	KindChatSendAck    = "chat.send_ack"
	KindChatSendFailed = "chat.send_failed"

	KindAuthStatusChanged = "auth.status_changed"
	KindAuthSignedIn      = "auth.signed_in"
	KindAuthSignedOut     = "auth.signed_out"
)

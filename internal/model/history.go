package model

import "time"

// UnsubscribeMethod records how a message was acted on.
type UnsubscribeMethod string

const (
	MethodAutoHeader    UnsubscribeMethod = "auto_header"
	MethodWebLink       UnsubscribeMethod = "web_link"
	MethodDeleteOnly    UnsubscribeMethod = "delete_only"
	MethodScheduledAuto UnsubscribeMethod = "scheduled_auto"
)

// Unsubscribe outcome statuses.
const (
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusOpenedLink = "opened_link"
)

// CleanupHistoryEntry is one append-only audit row per attempted message.
// Rows with Deleted=true double as the scheduler's idempotency source.
type CleanupHistoryEntry struct {
	ID                string
	UserID            string
	EmailID           string
	Sender            string
	Subject           string
	SpamConfidence    SpamConfidence
	AIReasoning       string
	UnsubscribeMethod UnsubscribeMethod
	UnsubscribeStatus string
	Deleted           bool
	ProcessedAt       time.Time
}

package model

import "time"

// TopSender is one entry of a run's deleted-per-sender ranking.
type TopSender struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}

// CleanupRunSummary is the aggregate record of one scheduler execution for
// one user. A run that found nothing still produces a summary.
type CleanupRunSummary struct {
	ID                 string
	UserID             string
	RunAt              time.Time
	EmailsScanned      int
	EmailsDeleted      int
	EmailsUnsubscribed int
	TopSenders         []TopSender
	IsDismissed        bool
}

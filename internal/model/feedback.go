package model

import "time"

// SenderFeedback is a user correction for one sender address, unique per
// (user, lowercased sender). Repeated feedback updates the flag and bumps the
// count instead of inserting a new row.
type SenderFeedback struct {
	ID            string
	UserID        string
	SenderEmail   string
	SenderName    string
	MarkedAsSpam  bool
	FeedbackCount int
	UpdatedAt     time.Time
}

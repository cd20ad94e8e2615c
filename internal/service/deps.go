package service

import (
	"context"
	"time"

	"mailsweep/internal/model"
)

// Narrow views of the repositories and clients the services depend on, so
// the pipeline can be exercised against fakes.

type AccountStore interface {
	FindByID(ctx context.Context, userID, accountID string) (*model.MailboxAccount, error)
	FindPrimary(ctx context.Context, userID string) (*model.MailboxAccount, error)
	FindAnyConnected(ctx context.Context, userID string) (*model.MailboxAccount, error)
	ListConnected(ctx context.Context, userID string) ([]model.MailboxAccount, error)
	UpdateAccessToken(ctx context.Context, accountID, accessTokenEnc string, expiresAt time.Time) error
}

type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time) ([]model.ScheduleConfig, error)
	Advance(ctx context.Context, scheduleID string, lastRunAt, nextRunAt time.Time) error
}

type FeedbackStore interface {
	GetMap(ctx context.Context, userID string) (map[string]bool, error)
}

type HistoryStore interface {
	Insert(ctx context.Context, e *model.CleanupHistoryEntry) (string, error)
	DeletedEmailIDs(ctx context.Context, userID string) (map[string]struct{}, error)
}

type RunStore interface {
	Insert(ctx context.Context, run *model.CleanupRunSummary) (string, error)
}

// MailProvider is the mailbox surface the pipeline consumes.
type MailProvider interface {
	ListAllMessageIDs(ctx context.Context, accessToken, label string) []string
	FetchDetails(ctx context.Context, accessToken string, ids []string, accountID, sourceLabel string) []model.MessageSummary
	DeleteMessage(ctx context.Context, accessToken, id string) model.DeleteResult
}

// TokenExchanger is the provider token endpoint.
type TokenExchanger interface {
	Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error)
}

// SpamClassifier labels message batches.
type SpamClassifier interface {
	Classify(ctx context.Context, messages []model.MessageSummary) ([]model.ClassificationResult, error)
}

// EventPublisher emits run events for downstream consumers.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// RunLocker guards against concurrent scheduler invocations.
type RunLocker interface {
	Acquire(ctx context.Context) bool
	Release(ctx context.Context)
}

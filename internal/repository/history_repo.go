package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailsweep/internal/model"
)

type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Insert appends one audit row. History is append-only; every attempted
// message produces a row whether it succeeded or not.
func (r *HistoryRepository) Insert(ctx context.Context, e *model.CleanupHistoryEntry) (string, error) {
	query := `
        INSERT INTO cleanup_history (user_id, email_id, sender, subject, spam_confidence, ai_reasoning, unsubscribe_method, unsubscribe_status, deleted, processed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
        RETURNING id
    `
	var id string
	err := r.db.QueryRow(ctx, query,
		e.UserID,
		e.EmailID,
		e.Sender,
		e.Subject,
		e.SpamConfidence,
		e.AIReasoning,
		e.UnsubscribeMethod,
		e.UnsubscribeStatus,
		e.Deleted,
	).Scan(&id)
	return id, err
}

// ListByUser returns the newest history rows for display.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.CleanupHistoryEntry, error) {
	query := `
        SELECT id, user_id, email_id, sender, subject, spam_confidence, ai_reasoning, unsubscribe_method, unsubscribe_status, deleted, processed_at
        FROM cleanup_history
        WHERE user_id = $1
        ORDER BY processed_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.CleanupHistoryEntry{}
	for rows.Next() {
		var e model.CleanupHistoryEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.EmailID,
			&e.Sender,
			&e.Subject,
			&e.SpamConfidence,
			&e.AIReasoning,
			&e.UnsubscribeMethod,
			&e.UnsubscribeStatus,
			&e.Deleted,
			&e.ProcessedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeletedEmailIDs returns the set of message ids already deleted for the
// user. The scheduler consults it so re-runs never double-process a message.
func (r *HistoryRepository) DeletedEmailIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	query := `
        SELECT DISTINCT email_id
        FROM cleanup_history
        WHERE user_id = $1 AND deleted = true
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Stats aggregates history counts for the dashboard.
type Stats struct {
	TotalProcessed int `json:"total_processed"`
	Deleted        int `json:"deleted"`
	Unsubscribed   int `json:"unsubscribed"`
	Failed         int `json:"failed"`
}

// GetStats returns aggregate counts over the user's whole history.
func (r *HistoryRepository) GetStats(ctx context.Context, userID string) (*Stats, error) {
	query := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE deleted = true),
            COUNT(*) FILTER (WHERE unsubscribe_method = 'auto_header' AND unsubscribe_status = 'success'),
            COUNT(*) FILTER (WHERE unsubscribe_status = 'failed')
        FROM cleanup_history
        WHERE user_id = $1
    `
	var s Stats
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.TotalProcessed,
		&s.Deleted,
		&s.Unsubscribed,
		&s.Failed,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailsweep/internal/model"
)

type RunRepository struct {
	db *pgxpool.Pool
}

func NewRunRepository(db *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: db}
}

// Insert writes exactly one summary row per scheduler invocation per user,
// including runs that found nothing to clean.
func (r *RunRepository) Insert(ctx context.Context, run *model.CleanupRunSummary) (string, error) {
	topSenders, err := json.Marshal(run.TopSenders)
	if err != nil {
		return "", err
	}

	query := `
        INSERT INTO cleanup_runs (user_id, run_at, emails_scanned, emails_deleted, emails_unsubscribed, top_senders, is_dismissed)
        VALUES ($1, $2, $3, $4, $5, $6, false)
        RETURNING id
    `
	var id string
	err = r.db.QueryRow(ctx, query,
		run.UserID,
		run.RunAt,
		run.EmailsScanned,
		run.EmailsDeleted,
		run.EmailsUnsubscribed,
		topSenders,
	).Scan(&id)
	return id, err
}

// ListByUser returns the newest run summaries.
func (r *RunRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.CleanupRunSummary, error) {
	query := `
        SELECT id, user_id, run_at, emails_scanned, emails_deleted, emails_unsubscribed, top_senders, is_dismissed
        FROM cleanup_runs
        WHERE user_id = $1
        ORDER BY run_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.CleanupRunSummary{}
	for rows.Next() {
		var run model.CleanupRunSummary
		var topSenders []byte
		if err := rows.Scan(
			&run.ID,
			&run.UserID,
			&run.RunAt,
			&run.EmailsScanned,
			&run.EmailsDeleted,
			&run.EmailsUnsubscribed,
			&topSenders,
			&run.IsDismissed,
		); err != nil {
			return nil, err
		}
		if len(topSenders) > 0 {
			// Malformed stored JSON leaves the ranking empty rather than
			// failing the listing.
			_ = json.Unmarshal(topSenders, &run.TopSenders)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Dismiss hides a run summary from the dashboard.
func (r *RunRepository) Dismiss(ctx context.Context, userID, runID string) error {
	query := `
        UPDATE cleanup_runs
        SET is_dismissed = true
        WHERE user_id = $1 AND id = $2
    `
	_, err := r.db.Exec(ctx, query, userID, runID)
	return err
}

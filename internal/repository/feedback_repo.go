package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailsweep/internal/model"
)

type FeedbackRepository struct {
	db *pgxpool.Pool
}

func NewFeedbackRepository(db *pgxpool.Pool) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// GetMap bulk-loads the user's sender feedback as lowercased address ->
// marked-as-spam, for pre-filtering a sync result.
func (r *FeedbackRepository) GetMap(ctx context.Context, userID string) (map[string]bool, error) {
	query := `
        SELECT sender_email, marked_as_spam
        FROM sender_feedback
        WHERE user_id = $1
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feedback := make(map[string]bool)
	for rows.Next() {
		var sender string
		var markedAsSpam bool
		if err := rows.Scan(&sender, &markedAsSpam); err != nil {
			return nil, err
		}
		feedback[strings.ToLower(sender)] = markedAsSpam
	}
	return feedback, rows.Err()
}

// Upsert records feedback for one sender. Repeated feedback updates the flag
// and increments the count instead of inserting a duplicate row.
func (r *FeedbackRepository) Upsert(ctx context.Context, userID, senderEmail, senderName string, markedAsSpam bool) error {
	query := `
        INSERT INTO sender_feedback (user_id, sender_email, sender_name, marked_as_spam, feedback_count, updated_at)
        VALUES ($1, $2, $3, $4, 1, NOW())
        ON CONFLICT (user_id, sender_email) DO UPDATE SET
            marked_as_spam = EXCLUDED.marked_as_spam,
            sender_name = EXCLUDED.sender_name,
            feedback_count = sender_feedback.feedback_count + 1,
            updated_at = NOW()
    `
	_, err := r.db.Exec(ctx, query, userID, strings.ToLower(senderEmail), senderName, markedAsSpam)
	return err
}

// List returns the user's feedback rows, most recently updated first.
func (r *FeedbackRepository) List(ctx context.Context, userID string) ([]model.SenderFeedback, error) {
	query := `
        SELECT id, user_id, sender_email, sender_name, marked_as_spam, feedback_count, updated_at
        FROM sender_feedback
        WHERE user_id = $1
        ORDER BY updated_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	feedback := []model.SenderFeedback{}
	for rows.Next() {
		var f model.SenderFeedback
		if err := rows.Scan(
			&f.ID,
			&f.UserID,
			&f.SenderEmail,
			&f.SenderName,
			&f.MarkedAsSpam,
			&f.FeedbackCount,
			&f.UpdatedAt,
		); err != nil {
			return nil, err
		}
		feedback = append(feedback, f)
	}
	return feedback, rows.Err()
}

// Delete removes feedback for one sender; rows are only ever removed by
// explicit user action.
func (r *FeedbackRepository) Delete(ctx context.Context, userID, senderEmail string) error {
	query := `
        DELETE FROM sender_feedback
        WHERE user_id = $1 AND sender_email = $2
    `
	_, err := r.db.Exec(ctx, query, userID, strings.ToLower(senderEmail))
	return err
}

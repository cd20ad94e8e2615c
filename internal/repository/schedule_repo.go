package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailsweep/internal/model"
)

type ScheduleRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewScheduleRepository(db *pgxpool.Pool, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

const scheduleColumns = `id, user_id, frequency, auto_approve, is_active, last_run_at, next_run_at`

func scanSchedule(row interface{ Scan(...any) error }) (*model.ScheduleConfig, error) {
	var s model.ScheduleConfig
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Frequency,
		&s.AutoApprove,
		&s.IsActive,
		&s.LastRunAt,
		&s.NextRunAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUser returns the user's single schedule row.
func (r *ScheduleRepository) GetByUser(ctx context.Context, userID string) (*model.ScheduleConfig, error) {
	query := `
        SELECT ` + scheduleColumns + `
        FROM schedule_config
        WHERE user_id = $1
    `
	return scanSchedule(r.db.QueryRow(ctx, query, userID))
}

// Upsert creates or updates the user's schedule settings. At most one row
// exists per user.
func (r *ScheduleRepository) Upsert(ctx context.Context, s *model.ScheduleConfig) (string, error) {
	query := `
        INSERT INTO schedule_config (user_id, frequency, auto_approve, is_active, next_run_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO UPDATE SET
            frequency = EXCLUDED.frequency,
            auto_approve = EXCLUDED.auto_approve,
            is_active = EXCLUDED.is_active,
            next_run_at = EXCLUDED.next_run_at
        RETURNING id
    `
	var id string
	err := r.db.QueryRow(ctx, query,
		s.UserID,
		s.Frequency,
		s.AutoApprove,
		s.IsActive,
		s.NextRunAt,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to upsert schedule",
			zap.String("user_id", s.UserID),
			zap.Error(err),
		)
		return "", err
	}
	return id, nil
}

// ListDue returns active schedules whose next run is at or before now, in
// due order. The scheduler processes them sequentially.
func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]model.ScheduleConfig, error) {
	query := `
        SELECT ` + scheduleColumns + `
        FROM schedule_config
        WHERE is_active = true AND next_run_at <= $1
        ORDER BY next_run_at
    `
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := []model.ScheduleConfig{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// Advance moves a schedule past the run that was just attempted. It is
// called unconditionally after every attempt, success or failure.
func (r *ScheduleRepository) Advance(ctx context.Context, scheduleID string, lastRunAt, nextRunAt time.Time) error {
	query := `
        UPDATE schedule_config
        SET last_run_at = $1, next_run_at = $2
        WHERE id = $3
    `
	_, err := r.db.Exec(ctx, query, lastRunAt, nextRunAt, scheduleID)
	if err != nil {
		r.logger.Error("Failed to advance schedule",
			zap.String("schedule_id", scheduleID),
			zap.Error(err),
		)
	}
	return err
}

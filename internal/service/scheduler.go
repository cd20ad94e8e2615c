package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/model"
	"mailsweep/pkg/metrics"
)

// ErrRunInProgress is returned when another scheduler invocation already
// holds the run lock.
var ErrRunInProgress = errors.New("a cleanup run is already in progress")

// RunCompletedKey is the routing key for per-user run completion events.
const RunCompletedKey = "cleanup.run.completed"

// Scheduler drains due cleanup schedules. It is driven externally (cron
// endpoint or ticker) and processes users one at a time.
type Scheduler struct {
	schedules ScheduleStore
	cleanup   *CleanupService
	lock      RunLocker
	events    EventPublisher
	logger    *zap.Logger
}

func NewScheduler(schedules ScheduleStore, cleanup *CleanupService, lock RunLocker, events EventPublisher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		schedules: schedules,
		cleanup:   cleanup,
		lock:      lock,
		events:    events,
		logger:    logger,
	}
}

// TriggerResponse is the aggregate result of one scheduler invocation.
type TriggerResponse struct {
	Processed int        `json:"processed"`
	Results   []RunStats `json:"results"`
}

// RunDue executes every schedule that is active and past its next-run time.
// Each schedule advances unconditionally, whatever its run's outcome: a
// failing user retries on the next cycle, not on the next poll.
func (s *Scheduler) RunDue(ctx context.Context) (*TriggerResponse, error) {
	if !s.lock.Acquire(ctx) {
		return nil, ErrRunInProgress
	}
	defer s.lock.Release(ctx)

	now := time.Now()
	due, err := s.schedules.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	resp := &TriggerResponse{Results: make([]RunStats, 0, len(due))}
	for _, schedule := range due {
		stats := s.runOne(ctx, schedule)
		resp.Results = append(resp.Results, stats)
		resp.Processed++
	}

	s.logger.Info("Scheduler cycle finished",
		zap.Int("due", len(due)),
		zap.Int("processed", resp.Processed),
	)
	return resp, nil
}

func (s *Scheduler) runOne(ctx context.Context, schedule model.ScheduleConfig) RunStats {
	start := time.Now()
	stats, err := s.cleanup.RunForUser(ctx, schedule)
	if err != nil {
		stats.Success = false
		stats.Error = err.Error()
		metrics.IncrementRunExecuted("failed")
		s.logger.Error("Cleanup run failed",
			zap.String("user_id", schedule.UserID),
			zap.Error(err),
		)
	} else {
		metrics.IncrementRunExecuted("success")
		s.logger.Info("Cleanup run finished",
			zap.String("user_id", schedule.UserID),
			zap.Int("scanned", stats.Scanned),
			zap.Int("deleted", stats.Deleted),
			zap.Int("unsubscribed", stats.Unsubscribed),
			zap.Duration("took", time.Since(start)),
		)
	}

	now := time.Now()
	next := schedule.Frequency.NextRun(now)
	if err := s.schedules.Advance(ctx, schedule.ID, now, next); err != nil {
		s.logger.Error("Failed to advance schedule",
			zap.String("schedule_id", schedule.ID),
			zap.Error(err),
		)
	}

	s.publishCompleted(stats)
	return stats
}

func (s *Scheduler) publishCompleted(stats RunStats) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(RunCompletedKey, stats); err != nil {
		s.logger.Warn("Failed to publish run event",
			zap.String("user_id", stats.UserID),
			zap.Error(err),
		)
	}
}

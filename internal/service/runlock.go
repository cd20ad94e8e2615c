package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	runLockKey = "cleanup:run-lock"
	runLockTTL = 10 * time.Minute
)

// RunLock is a Redis-backed single-flight guard for the scheduler. The TTL
// bounds how long a crashed run can block its successors. When Redis is
// unreachable the lock fails open: a duplicate run is harmless, a stalled
// scheduler is not.
type RunLock struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRunLock(client *redis.Client, logger *zap.Logger) *RunLock {
	return &RunLock{client: client, logger: logger}
}

func (l *RunLock) Acquire(ctx context.Context) bool {
	ok, err := l.client.SetNX(ctx, runLockKey, time.Now().Format(time.RFC3339), runLockTTL).Result()
	if err != nil {
		l.logger.Warn("Run lock unavailable, proceeding without it", zap.Error(err))
		return true
	}
	return ok
}

func (l *RunLock) Release(ctx context.Context) {
	if err := l.client.Del(ctx, runLockKey).Err(); err != nil {
		l.logger.Warn("Failed to release run lock", zap.Error(err))
	}
}

package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheRevalidate drops cached page output after an admin write.
	TaskCacheRevalidate = "cache:revalidate"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// RevalidatePayload lists page paths whose cached output is stale.
type RevalidatePayload struct {
	Paths []string `json:"paths"`
}

// NewRevalidateTask constructs a cache revalidation task.
func NewRevalidateTask(paths []string) (*asynq.Task, error) {
	if len(paths) == 0 {
		return nil, errors.New("jobs: revalidate requires at least one path")
	}
	data, err := json.Marshal(RevalidatePayload{Paths: paths})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheRevalidate, data, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// CleanupPayload configures one idempotency cleanup run.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task used by the scheduler.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(CleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.MaxRetry(1)), nil
}

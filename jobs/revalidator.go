package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// RevalidationObserver counts revalidated paths per mode.
type RevalidationObserver interface {
	ObserveRevalidation(mode string, paths int)
}

// Enqueuer submits revalidation tasks.
type Enqueuer interface {
	EnqueueRevalidate(ctx context.Context, paths []string) (*asynq.TaskInfo, error)
}

// Revalidator invalidates cached pages after admin writes. With a queue it
// defers to the worker; otherwise, or when enqueueing fails, it invalidates inline.
type Revalidator struct {
	queue   Enqueuer
	cache   PathInvalidator
	metrics RevalidationObserver
	logger  *slog.Logger
}

// NewRevalidator constructs a Revalidator. queue and metrics may be nil.
func NewRevalidator(queue Enqueuer, cache PathInvalidator, metrics RevalidationObserver, logger *slog.Logger) *Revalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Revalidator{queue: queue, cache: cache, metrics: metrics, logger: logger}
}

// Revalidate schedules or performs invalidation of paths.
func (r *Revalidator) Revalidate(ctx context.Context, paths ...string) error {
	paths = dedupe(paths)
	if len(paths) == 0 {
		return nil
	}
	if r.queue != nil {
		if _, err := r.queue.EnqueueRevalidate(ctx, paths); err == nil {
			r.observe("queued", len(paths))
			return nil
		} else {
			r.logger.Warn("enqueue revalidate, falling back to inline", slog.Any("error", err))
		}
	}
	if r.cache == nil {
		return nil
	}
	if _, err := RevalidatePaths(ctx, r.cache, paths, 4); err != nil {
		return err
	}
	r.observe("inline", len(paths))
	return nil
}

func (r *Revalidator) observe(mode string, n int) {
	if r.metrics != nil {
		r.metrics.ObserveRevalidation(mode, n)
	}
}

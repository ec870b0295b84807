package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/jurnal-press/jurnal/internal/jobs"
)

// PathInvalidator drops the cached output of one page path.
type PathInvalidator interface {
	Revalidate(ctx context.Context, path string) (int, error)
}

// RevalidateJob handles TaskCacheRevalidate.
type RevalidateJob struct {
	Cache       PathInvalidator
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Parallelism int
}

// NewRevalidateJob wires dependencies for the revalidation handler.
func NewRevalidateJob(cache PathInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *RevalidateJob {
	return &RevalidateJob{Cache: cache, Logger: logger, Metrics: metrics, Parallelism: 4}
}

// Handle processes cache revalidation tasks.
func (j *RevalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("cache revalidate: handler not configured")
	}
	var payload RevalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Paths) == 0 {
		return nil
	}

	tracker := j.Metrics.Track(TaskCacheRevalidate)
	removed, err := RevalidatePaths(ctx, j.Cache, payload.Paths, j.Parallelism)
	if err != nil {
		j.logger().Error("revalidate paths", slog.Any("paths", payload.Paths), slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddItems(TaskCacheRevalidate, len(payload.Paths))
	j.logger().Info("revalidated page cache", slog.Int("paths", len(payload.Paths)), slog.Int("keys", removed))
	return tracker.End(nil)
}

func (j *RevalidateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// RevalidatePaths invalidates paths concurrently and returns the number of
// cache keys removed.
func RevalidatePaths(ctx context.Context, cache PathInvalidator, paths []string, parallelism int) (int, error) {
	if parallelism <= 0 {
		parallelism = 4
	}
	var removed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, path := range dedupe(paths) {
		g.Go(func() error {
			n, err := cache.Revalidate(gctx, path)
			if err != nil {
				return err
			}
			removed.Add(int64(n))
			return nil
		})
	}
	err := g.Wait()
	return int(removed.Load()), err
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

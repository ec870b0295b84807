package perf

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/jurnal-press/jurnal/internal/jobs"
	"github.com/jurnal-press/jurnal/jobs"
)

// flakyCache fails every failEvery-th call after a fixed delay.
type flakyCache struct {
	delay     time.Duration
	failEvery int64
	calls     atomic.Int64
}

func (c *flakyCache) Revalidate(ctx context.Context, _ string) (int, error) {
	n := c.calls.Add(1)
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	if c.failEvery > 0 && n%c.failEvery == 0 {
		return 0, errors.New("redis timeout")
	}
	return 1, nil
}

func TestRevalidateJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	cache := &flakyCache{delay: 2 * time.Millisecond, failEvery: 40}
	job := jobs.NewRevalidateJob(cache, nil, metrics)

	task, err := jobs.NewRevalidateTask([]string{"/admin/tenants", "/admin/roles", "/admin/users"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	failures := 0
	for i := 0; i < 60; i++ {
		if err := job.Handle(context.Background(), task); err != nil {
			failures++
		}
	}
	if failures == 0 {
		t.Fatal("expected injected failures to surface")
	}

	// A slow single-path task still completes well within the task timeout.
	slow := jobs.NewRevalidateJob(&flakyCache{delay: 40 * time.Millisecond}, nil, metrics)
	slowTask, err := jobs.NewRevalidateTask([]string{"/admin/tenants"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := slow.Handle(context.Background(), slowTask); err != nil {
			t.Fatalf("slow revalidate: %v", err)
		}
	}

	malformed := asynq.NewTask(jobs.TaskCacheRevalidate, []byte("not-json"))
	if err := job.Handle(context.Background(), malformed); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for malformed payload, got %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	labels := func(status string) map[string]string {
		return map[string]string{"job": jobs.TaskCacheRevalidate, "status": status}
	}
	success := metricValue(t, families, "jurnal_jobs_total", labels("success"))
	failure := metricValue(t, families, "jurnal_jobs_total", labels("failure"))
	if int(failure) != failures {
		t.Fatalf("failure counter %f does not match observed failures %d", failure, failures)
	}
	ratio := success / (success + failure)
	if ratio < 0.9 {
		t.Fatalf("revalidate success ratio too low: %f", ratio)
	}

	mean := histogramMean(t, families, "jurnal_job_duration_seconds", map[string]string{"job": jobs.TaskCacheRevalidate})
	if mean > 0.5 {
		t.Fatalf("revalidate duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	found := 0
	for _, lp := range metric.GetLabel() {
		val, ok := labels[lp.GetName()]
		if !ok {
			continue
		}
		if lp.GetValue() != val {
			return false
		}
		found++
	}
	return found == len(labels)
}

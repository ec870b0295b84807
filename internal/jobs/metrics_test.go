package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("cache:revalidate").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("cache:revalidate").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cache:revalidate", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cache:revalidate", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("cache:revalidate")))
}

func TestAddItems(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddItems("idempotency:cleanup", 4)
	m.AddItems("idempotency:cleanup", 0)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.items.WithLabelValues("idempotency:cleanup")))

	var nilMetrics *Metrics
	nilMetrics.AddItems("x", 1)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorDisabled(t *testing.T) {
	c := NewCollector(false)
	assert.Nil(t, c.GetRegistry())

	c.RecordOperation("SIFT", LoadOperation, nil)
	c.RecordOperation("SIFT", SaveOperation, errors.New("disk full"))
	c.RecordLoadLatency("SIFT", 4*time.Millisecond)
	c.RecordHoldings(2, 300)

	m := c.GetRecentMetrics()
	assert.Equal(t, int64(1), m.Loads)
	assert.Equal(t, int64(0), m.Saves)
	assert.Equal(t, int64(1), m.Failures)
	assert.InDelta(t, 4.0, m.AvgLoadLatencyMs, 1e-9)
	assert.Equal(t, 2, m.Views)
	assert.Equal(t, 300, m.Regions)
}

func TestCollectorPrometheus(t *testing.T) {
	c := NewCollector(true)
	require.NotNil(t, c.GetRegistry())

	c.RecordOperation("SIFT", LoadOperation, nil)
	c.RecordOperation("SIFT", LoadOperation, nil)
	c.RecordOperation("SIFT", LoadOperation, errors.New("missing"))
	c.RecordOperation("AKAZE_MLDB", FilterOperation, nil)
	c.RecordHoldings(1, 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("SIFT", "load", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("SIFT", "load", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("AKAZE_MLDB", "filter", "ok")))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.regions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.views))

	c.RecordLoadLatency("SIFT", 10*time.Millisecond)
	c.RecordLoadLatency("SIFT", 20*time.Millisecond)
	assert.InDelta(t, 15.0, c.GetRecentMetrics().AvgLoadLatencyMs, 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(c.loadLatency))
}

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels the region file operation being measured.
type Operation string

const (
	// LoadOperation reads a feature and descriptor file pair
	LoadOperation Operation = "load"
	// SaveOperation writes a feature and descriptor file pair
	SaveOperation Operation = "save"
	// FilterOperation builds a filtered region set
	FilterOperation Operation = "filter"
)

// Snapshot holds the most recent aggregated values
type Snapshot struct {
	// Successful operations
	Loads   int64
	Saves   int64
	Filters int64
	// Failed operations of any kind
	Failures int64
	// Running average load latency in milliseconds
	AvgLoadLatencyMs float64
	// Regions currently held
	Regions int
	// Views currently held
	Views int
	// Time of the last update
	Timestamp time.Time
}

// Collector manages the collection of metrics
type Collector struct {
	// Prometheus registry
	registry *prometheus.Registry
	// Operations counter by describer, operation and status
	operations *prometheus.CounterVec
	// Load latency histogram by describer
	loadLatency *prometheus.HistogramVec
	// Regions held gauge
	regions prometheus.Gauge
	// Views held gauge
	views prometheus.Gauge
	// Whether Prometheus metrics are enabled
	prometheusEnabled bool
	// Lock for concurrent access
	mu sync.RWMutex
	// Recent metrics
	recent Snapshot
}

// NewCollector creates a new metrics collector
func NewCollector(prometheusEnabled bool) *Collector {
	c := &Collector{
		prometheusEnabled: prometheusEnabled,
		recent: Snapshot{
			Timestamp: time.Now(),
		},
	}

	if prometheusEnabled {
		c.registry = prometheus.NewRegistry()

		c.operations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regions_operations_total",
				Help: "Total number of region file operations",
			},
			[]string{"describer", "operation", "status"},
		)

		c.loadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "regions_load_latency_ms",
				Help:    "Region set load latency in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms-2s
			},
			[]string{"describer"},
		)

		c.regions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regions_held",
				Help: "Number of regions held in memory",
			},
		)

		c.views = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regions_views_held",
				Help: "Number of views with a loaded region set",
			},
		)

		c.registry.MustRegister(c.operations)
		c.registry.MustRegister(c.loadLatency)
		c.registry.MustRegister(c.regions)
		c.registry.MustRegister(c.views)
	}

	return c
}

// RecordOperation records the outcome of one operation
func (c *Collector) RecordOperation(describer string, op Operation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := "ok"
	if err != nil {
		status = "error"
		c.recent.Failures++
	} else {
		switch op {
		case LoadOperation:
			c.recent.Loads++
		case SaveOperation:
			c.recent.Saves++
		case FilterOperation:
			c.recent.Filters++
		}
	}
	c.recent.Timestamp = time.Now()

	if c.prometheusEnabled {
		c.operations.WithLabelValues(describer, string(op), status).Inc()
	}
}

// RecordLoadLatency records the duration of one load
func (c *Collector) RecordLoadLatency(describer string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	latencyMs := float64(d) / float64(time.Millisecond)
	if c.recent.AvgLoadLatencyMs == 0 {
		c.recent.AvgLoadLatencyMs = latencyMs
	} else {
		c.recent.AvgLoadLatencyMs = (c.recent.AvgLoadLatencyMs + latencyMs) / 2
	}
	c.recent.Timestamp = time.Now()

	if c.prometheusEnabled {
		c.loadLatency.WithLabelValues(describer).Observe(latencyMs)
	}
}

// RecordHoldings records the number of views and regions currently held
func (c *Collector) RecordHoldings(views, regions int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recent.Views = views
	c.recent.Regions = regions
	c.recent.Timestamp = time.Now()

	if c.prometheusEnabled {
		c.views.Set(float64(views))
		c.regions.Set(float64(regions))
	}
}

// GetRecentMetrics retrieves the most recent metrics
func (c *Collector) GetRecentMetrics() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recent
}

// GetRegistry returns the Prometheus registry, nil when Prometheus is disabled
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

package openmemory

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts declined or failed logins.
	MetricLoginFailure
	// MetricLogout counts logouts.
	MetricLogout
	// MetricSessionRestored counts restores that confirmed a live session.
	MetricSessionRestored
	// MetricSessionExpired counts credential expiries detected by the
	// session manager.
	MetricSessionExpired
	// MetricQueryCall counts dispatches over the read path.
	MetricQueryCall
	// MetricUpdateCall counts dispatches over the write path.
	MetricUpdateCall
	// MetricDispatchRejected counts mutating dispatches refused before any
	// network I/O for lack of a confirmed session.
	MetricDispatchRejected
	// MetricDispatchFailure counts transport and status failures.
	MetricDispatchFailure
	// MetricDecodeFailure counts 200 responses with undecodable bodies and
	// unrecognized response shapes.
	MetricDecodeFailure
	// MetricDispatchLatency is the dispatch latency histogram.
	MetricDispatchLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// Histogram bucket upper bounds in milliseconds; the last bucket is +Inf.
var latencyBucketBoundsMS = [histBucketCount - 1]uint64{1, 5, 10, 50, 100, 500, 2000}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// All methods are safe for concurrent use and are no-ops when disabled.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates the counter set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc bumps one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one latency sample.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id >= metricIDCount {
		return
	}
	ms := uint64(d / time.Millisecond)
	bucket := histBucketCount - 1
	for i, bound := range latencyBucketBoundsMS {
		if ms <= bound {
			bucket = i
			break
		}
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucket], 1)
}

// Snapshot copies every non-zero counter and histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return snapshot
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if v := atomic.LoadUint64(&m.counters[id].value); v > 0 {
			snapshot.Counters[id] = v
		}
	}
	if m.enableLatency {
		for id := MetricID(0); id < metricIDCount; id++ {
			var buckets []uint64
			for b := 0; b < histBucketCount; b++ {
				v := atomic.LoadUint64(&m.histograms[id].buckets[b])
				if buckets == nil && v == 0 {
					continue
				}
				if buckets == nil {
					buckets = make([]uint64, histBucketCount)
				}
				buckets[b] = v
			}
			if buckets != nil {
				snapshot.Histograms[id] = buckets
			}
		}
	}
	return snapshot
}

package edgeauth

import (
	"sync/atomic"
	"time"

	"github.com/MrEthical07/edgeauth/session"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricResolveBearer counts requests authenticated by an access token.
	MetricResolveBearer MetricID = iota
	// MetricResolveSession counts requests authenticated by a session cookie.
	MetricResolveSession
	// MetricResolveUnauthenticated counts requests no credential authenticated.
	MetricResolveUnauthenticated
	// MetricResolveBackendError counts resolutions that failed closed on a backend error.
	MetricResolveBackendError
	MetricSessionCacheHit
	MetricSessionCacheMiss
	MetricSessionCacheError
	MetricSessionStaleEntry
	MetricSessionNegativeHit
	MetricSessionDurableLookup
	MetricSessionDurableError
	MetricSessionCoalesced
	// MetricAccessAllowed counts allowed route decisions.
	MetricAccessAllowed
	// MetricAccessDenied counts denied route decisions.
	MetricAccessDenied
	// MetricUnlistedRoute counts decisions for routes without a binding.
	MetricUnlistedRoute
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRateLimited
	MetricSessionCreated
	MetricLogout
	MetricTokenRevoked
	// MetricResolveLatency is the identity resolution latency histogram.
	MetricResolveLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus the resolve latency histogram.
// The zero value is disabled; use [NewMetrics].
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histogram buckets are not
// cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics returns a collector that records nothing unless cfg.Enabled is set.
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

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments a counter. Unknown ids are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample for a histogram metric.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricResolveLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricResolveLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricResolveLatency].buckets[i])
		}
		s.Histograms[MetricResolveLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

// sessionEventMetrics maps session store events onto engine counters.
var sessionEventMetrics = [...]MetricID{
	session.EventCacheHit:      MetricSessionCacheHit,
	session.EventCacheMiss:     MetricSessionCacheMiss,
	session.EventCacheError:    MetricSessionCacheError,
	session.EventStaleEntry:    MetricSessionStaleEntry,
	session.EventNegativeHit:   MetricSessionNegativeHit,
	session.EventDurableLookup: MetricSessionDurableLookup,
	session.EventDurableError:  MetricSessionDurableError,
	session.EventCoalesced:     MetricSessionCoalesced,
}

type sessionRecorder struct {
	metrics *Metrics
}

func (r sessionRecorder) RecordSession(ev session.Event) {
	if int(ev) < len(sessionEventMetrics) {
		r.metrics.Inc(sessionEventMetrics[ev])
	}
}

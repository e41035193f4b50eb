package edgeauth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/edgeauth/session"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %d counters", len(snap.Counters))
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricResolveBearer)
	m.Inc(MetricResolveBearer)
	m.Inc(MetricResolveBearer)
	m.Inc(metricIDCount)

	if got := m.Value(MetricResolveBearer); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricResolveSession)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricResolveSession); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricResolveLatency, d)
	}
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricResolveLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Counters[MetricResolveLatency]; ok {
		t.Fatal("histogram id must not appear among counters")
	}
}

func TestMetricsLatencyRequiresEnabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{EnableLatencyHistograms: true})
	if m.LatencyEnabled() {
		t.Fatal("latency must stay off while metrics are disabled")
	}
}

func TestSessionEventsMapToCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	r := sessionRecorder{metrics: m}

	r.RecordSession(session.EventCacheHit)
	r.RecordSession(session.EventCoalesced)
	r.RecordSession(session.EventCoalesced)

	if m.Value(MetricSessionCacheHit) != 1 || m.Value(MetricSessionCoalesced) != 2 {
		t.Fatalf("unexpected counters hit=%d coalesced=%d", m.Value(MetricSessionCacheHit), m.Value(MetricSessionCoalesced))
	}
}

func TestResolveRecordsLatency(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Metrics.EnableLatencyHistograms = true
	})
	res := login(t, engine, "alice@example.com")

	if _, err := engine.Resolve(context.Background(), bearerRequest(res.AccessToken)); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_, _ = engine.Resolve(context.Background(), cookieRequest(&http.Cookie{Name: "session", Value: "missing"}))

	snap := engine.MetricsSnapshot()
	var total uint64
	for _, v := range snap.Histograms[MetricResolveLatency] {
		total += v
	}
	if total != 2 {
		t.Fatalf("expected 2 latency samples, got %d", total)
	}
	if snap.Counters[MetricResolveBearer] != 1 || snap.Counters[MetricResolveUnauthenticated] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

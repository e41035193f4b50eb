package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/edgeauth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot edgeauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() edgeauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := edgeauth.MetricsSnapshot{
		Counters:   make(map[edgeauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[edgeauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterCollectsValues(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: edgeauth.MetricsSnapshot{
			Counters: map[edgeauth.MetricID]uint64{
				edgeauth.MetricResolveBearer: 3,
				edgeauth.MetricAccessDenied:  2,
			},
			Histograms: map[edgeauth.MetricID][]uint64{
				edgeauth.MetricResolveLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporter(provider.Meter("edgeauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	got := collect(t, reader)
	want := map[string]int64{
		"edgeauth_resolve_bearer_total":                     3,
		"edgeauth_access_denied_total":                      2,
		"edgeauth_login_success_total":                      0,
		"edgeauth_resolve_latency_seconds_bucket_le_0_005":  1,
		"edgeauth_resolve_latency_seconds_bucket_le_0_5":    7,
		"edgeauth_resolve_latency_seconds_bucket_le_inf":    8,
		"edgeauth_resolve_latency_seconds_count":            8,
		"edgeauth_audit_dropped_total":                      1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Fatalf("%s: expected %d, got %d", name, v, got[name])
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()

	if _, err := NewExporter(provider.Meter("edgeauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: edgeauth.MetricsSnapshot{
			Counters:   map[edgeauth.MetricID]uint64{edgeauth.MetricResolveSession: 1},
			Histograms: map[edgeauth.MetricID][]uint64{},
		},
	}

	exp, err := NewExporter(provider.Meter("edgeauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[edgeauth.MetricResolveSession] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterWithEngineSnapshot(t *testing.T) {
	m := edgeauth.NewMetrics(edgeauth.MetricsConfig{Enabled: true})
	m.Inc(edgeauth.MetricLoginSuccess)

	reader, provider := newReader()
	src := &fakeSource{snapshot: m.Snapshot()}
	exp, err := NewExporter(provider.Meter("edgeauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Close()

	if got := collect(t, reader)["edgeauth_login_success_total"]; got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

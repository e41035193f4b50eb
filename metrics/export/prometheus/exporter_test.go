package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/edgeauth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot edgeauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() edgeauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: edgeauth.MetricsSnapshot{
			Counters: map[edgeauth.MetricID]uint64{
				edgeauth.MetricResolveBearer: 5,
				edgeauth.MetricAccessDenied:  2,
			},
			Histograms: map[edgeauth.MetricID][]uint64{
				edgeauth.MetricResolveLatency: {1, 2, 0, 0, 0, 0, 0, 1},
			},
		},
		dropped: 4,
	}
}

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(sampleSource())); err != nil {
		t.Fatalf("register: %v", err)
	}

	expected := `
# HELP edgeauth_resolve_bearer_total Requests authenticated by an access token.
# TYPE edgeauth_resolve_bearer_total counter
edgeauth_resolve_bearer_total 5
# HELP edgeauth_audit_dropped_total Audit events dropped under dispatcher backpressure.
# TYPE edgeauth_audit_dropped_total counter
edgeauth_audit_dropped_total 4
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"edgeauth_resolve_bearer_total", "edgeauth_audit_dropped_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(sampleSource()))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var found bool
	for _, mf := range families {
		if mf.GetName() != "edgeauth_resolve_latency_seconds" {
			continue
		}
		found = true
		h := mf.GetMetric()[0].GetHistogram()
		if h.GetSampleCount() != 4 {
			t.Fatalf("expected count 4, got %d", h.GetSampleCount())
		}
		buckets := h.GetBucket()
		if len(buckets) != 7 {
			t.Fatalf("expected 7 finite buckets, got %d", len(buckets))
		}
		if buckets[0].GetCumulativeCount() != 1 || buckets[1].GetCumulativeCount() != 3 || buckets[6].GetCumulativeCount() != 3 {
			t.Fatalf("unexpected bucket counts: %v", buckets)
		}
	}
	if !found {
		t.Fatal("histogram not exported")
	}
}

func TestCollectorLintClean(t *testing.T) {
	problems, err := testutil.CollectAndLint(NewCollector(sampleSource()))
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(problems) != 0 {
		t.Fatalf("lint problems: %v", problems)
	}
}

func TestCollectorNilSourceEmitsNothing(t *testing.T) {
	if n := testutil.CollectAndCount(NewCollector(nil)); n != 0 {
		t.Fatalf("expected no metrics, got %d", n)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	srv := httptest.NewServer(Handler(sampleSource()))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	for _, want := range []string{
		"edgeauth_access_denied_total 2",
		`edgeauth_resolve_latency_seconds_bucket{le="+Inf"} 4`,
		"edgeauth_login_success_total 0",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

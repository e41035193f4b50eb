package internaldefs

import (
	"github.com/MrEthical07/edgeauth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   edgeauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   edgeauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "edgeauth_audit_dropped_total"

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: edgeauth.MetricResolveBearer, Name: "edgeauth_resolve_bearer_total", Help: "Requests authenticated by an access token."},
	{ID: edgeauth.MetricResolveSession, Name: "edgeauth_resolve_session_total", Help: "Requests authenticated by a session cookie."},
	{ID: edgeauth.MetricResolveUnauthenticated, Name: "edgeauth_resolve_unauthenticated_total", Help: "Requests no credential authenticated."},
	{ID: edgeauth.MetricResolveBackendError, Name: "edgeauth_resolve_backend_error_total", Help: "Resolutions that failed closed on a backend error."},
	{ID: edgeauth.MetricSessionCacheHit, Name: "edgeauth_session_cache_hit_total", Help: "Session lookups served from the cache."},
	{ID: edgeauth.MetricSessionCacheMiss, Name: "edgeauth_session_cache_miss_total", Help: "Session lookups that missed the cache."},
	{ID: edgeauth.MetricSessionCacheError, Name: "edgeauth_session_cache_error_total", Help: "Session cache read or write failures."},
	{ID: edgeauth.MetricSessionStaleEntry, Name: "edgeauth_session_stale_entry_total", Help: "Cached session snapshots rejected as expired or corrupt."},
	{ID: edgeauth.MetricSessionNegativeHit, Name: "edgeauth_session_negative_hit_total", Help: "Session lookups answered by the negative cache."},
	{ID: edgeauth.MetricSessionDurableLookup, Name: "edgeauth_session_durable_lookup_total", Help: "Session lookups sent to the durable store."},
	{ID: edgeauth.MetricSessionDurableError, Name: "edgeauth_session_durable_error_total", Help: "Durable session lookups that failed."},
	{ID: edgeauth.MetricSessionCoalesced, Name: "edgeauth_session_coalesced_total", Help: "Session lookups that shared an in-flight durable query."},
	{ID: edgeauth.MetricAccessAllowed, Name: "edgeauth_access_allowed_total", Help: "Allowed route decisions."},
	{ID: edgeauth.MetricAccessDenied, Name: "edgeauth_access_denied_total", Help: "Denied route decisions."},
	{ID: edgeauth.MetricUnlistedRoute, Name: "edgeauth_unlisted_route_total", Help: "Route decisions for paths without a binding."},
	{ID: edgeauth.MetricLoginSuccess, Name: "edgeauth_login_success_total", Help: "Successful logins."},
	{ID: edgeauth.MetricLoginFailure, Name: "edgeauth_login_failure_total", Help: "Failed logins."},
	{ID: edgeauth.MetricLoginRateLimited, Name: "edgeauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: edgeauth.MetricRefreshSuccess, Name: "edgeauth_refresh_success_total", Help: "Successful token refreshes."},
	{ID: edgeauth.MetricRefreshFailure, Name: "edgeauth_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: edgeauth.MetricRefreshRateLimited, Name: "edgeauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: edgeauth.MetricSessionCreated, Name: "edgeauth_session_created_total", Help: "Sessions created by login."},
	{ID: edgeauth.MetricLogout, Name: "edgeauth_logout_total", Help: "Logouts."},
	{ID: edgeauth.MetricTokenRevoked, Name: "edgeauth_token_revoked_total", Help: "Tokens revoked before expiry."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: edgeauth.MetricResolveLatency, Name: "edgeauth_resolve_latency_seconds", Help: "Identity resolution latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth engine
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters without native
// histograms.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

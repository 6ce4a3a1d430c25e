// Package observability provides Prometheus metrics and health endpoints
// for the Voxgo runtime.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Router metrics
	routerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgo_router_requests_total",
			Help: "Total number of provider routing requests",
		},
		[]string{"kind", "provider", "status"},
	)

	routerFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgo_router_fallbacks_total",
			Help: "Total number of fallback walks past the first candidate",
		},
		[]string{"kind"},
	)

	routerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxgo_router_latency_seconds",
			Help:    "Provider invocation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "provider"},
	)

	// Call metrics
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgo_calls_total",
			Help: "Total number of telephone calls handled",
		},
		[]string{"direction", "status"},
	)

	callTurnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voxgo_call_turns_total",
			Help: "Total number of conversation turns across all calls",
		},
	)

	activeCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxgo_active_calls",
			Help: "Number of calls currently in progress",
		},
	)

	// Audio cache metrics
	audioCacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgo_audiocache_events_total",
			Help: "Audio cache hits, misses, and writes",
		},
		[]string{"event"},
	)

	// Session metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxgo_active_sessions",
			Help: "Number of live conversation sessions",
		},
	)

	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxgo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxgo_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			routerRequestsTotal,
			routerFallbacksTotal,
			routerLatency,
			callsTotal,
			callTurnsTotal,
			activeCalls,
			audioCacheEvents,
			activeSessions,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordRouterRequest records one provider invocation attempt
func RecordRouterRequest(kind, provider, status string, latency time.Duration) {
	routerRequestsTotal.WithLabelValues(kind, provider, status).Inc()
	routerLatency.WithLabelValues(kind, provider).Observe(latency.Seconds())
}

// RecordRouterFallback records a walk past the first candidate
func RecordRouterFallback(kind string) {
	routerFallbacksTotal.WithLabelValues(kind).Inc()
}

// RecordCall records a call reaching a terminal status
func RecordCall(direction, status string) {
	callsTotal.WithLabelValues(direction, status).Inc()
}

// RecordCallTurn records one utterance-and-reply turn
func RecordCallTurn() {
	callTurnsTotal.Inc()
}

// SetActiveCalls sets the in-progress call gauge
func SetActiveCalls(count int) {
	activeCalls.Set(float64(count))
}

// RecordAudioCacheEvent records a cache hit, miss, or write
func RecordAudioCacheEvent(event string) {
	audioCacheEvents.WithLabelValues(event).Inc()
}

// SetActiveSessions sets the live session gauge
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Package metrics provides Prometheus instrumentation for the intake service.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SubmissionsTotal counts support-request submissions by outcome.
	// Outcomes: allow, warn, block, unknown, transport_error.
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "submissions_total",
			Help:      "Total support-request submissions by verdict outcome.",
		},
		[]string{"outcome"},
	)

	// SubmissionsRejectedTotal counts submissions rejected before any I/O.
	// Reasons: invalid_input, pending.
	SubmissionsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "submissions_rejected_total",
			Help:      "Submissions rejected before reaching the detector.",
		},
		[]string{"reason"},
	)

	// TransportFailuresTotal counts detector calls that failed at the transport level.
	TransportFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "transport_failures_total",
		Help:      "Detector calls that failed with a connection error or non-2xx status.",
	})

	// MalformedResponsesTotal counts 2xx detector responses that could not be parsed.
	// Tracked separately from transport failures for operators.
	MalformedResponsesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intake",
		Name:      "malformed_responses_total",
		Help:      "2xx detector responses with an unparsable body.",
	})

	// GeoProbesTotal counts geolocation probe outcomes.
	// Outcomes: success, permission_denied, position_unavailable, timeout, unknown, unsupported.
	GeoProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "geo_probes_total",
			Help:      "Geolocation probe attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// ActiveSessions tracks current in-memory intake sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "intake",
		Name:      "active_sessions",
		Help:      "Number of live intake sessions.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "intake",
		Name:      "active_websocket_clients",
		Help:      "Number of currently connected WebSocket clients.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SubmissionsTotal,
		SubmissionsRejectedTotal,
		TransportFailuresTotal,
		MalformedResponsesTotal,
		GeoProbesTotal,
		ActiveSessions,
		ActiveWebSocketClients,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// Package metrics exposes Prometheus collectors for the codepad server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codepad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Workspace metrics
	treeMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_tree_mutations_total",
			Help: "Total tree mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	workspacesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_workspaces_open",
			Help: "Number of loaded project workspaces",
		},
	)

	buffersLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_buffers_live",
			Help: "Number of live editor buffers",
		},
	)

	// Persistence metrics
	savesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_saves_total",
			Help: "Total tree saves by result",
		},
		[]string{"result"},
	)

	saveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codepad_save_duration_seconds",
			Help:    "Tree save duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_ws_connections_active",
			Help: "Number of active workspace WebSocket connections",
		},
	)

	rateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codepad_rate_limit_hits_total",
			Help: "Total rate limit rejections (429s)",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMutation records a tree mutation attempt.
func RecordMutation(op string, err error) {
	treeMutationsTotal.WithLabelValues(op, result(err)).Inc()
}

// RecordSave records a finished save.
func RecordSave(duration time.Duration, err error) {
	savesTotal.WithLabelValues(result(err)).Inc()
	saveDuration.Observe(duration.Seconds())
}

func SetWorkspacesOpen(n int) {
	workspacesOpen.Set(float64(n))
}

func BufferCreated() {
	buffersLive.Inc()
}

func BufferDisposed() {
	buffersLive.Dec()
}

func WSConnected() {
	wsConnectionsActive.Inc()
}

func WSDisconnected() {
	wsConnectionsActive.Dec()
}

// RecordRateLimitHit records a rejected request.
func RecordRateLimitHit() {
	rateLimitHitsTotal.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

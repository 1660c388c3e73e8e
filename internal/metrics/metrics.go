// Package metrics provides Prometheus instrumentation for the market engine.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MarketsCreated counts markets created, partitioned by odds source.
	MarketsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbook_markets_created_total",
		Help: "Total number of markets created",
	}, []string{"odds_source"}) // "generated" or "default"

	// BetsTotal counts bets placed, partitioned by outcome.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbook_bets_total",
		Help: "Total number of bets placed",
	}, []string{"outcome"})

	// StakeVolume tracks cumulative staked play-money.
	StakeVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchbook_stake_volume_total",
		Help: "Cumulative staked amount across all bets",
	})

	// ClaimsTotal counts successful claim settlements.
	ClaimsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchbook_claims_total",
		Help: "Total number of successful claims",
	})

	// DisputesTotal counts adjudicated disputes by verdict.
	DisputesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbook_disputes_total",
		Help: "Total number of adjudicated disputes",
	}, []string{"verdict"}) // "upheld" or "rejected"

	// OpenMarkets tracks the number of markets in the open phase.
	OpenMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchbook_open_markets",
		Help: "Number of markets currently open for betting",
	})

	// OracleCalls counts oracle gateway calls by kind and result.
	OracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbook_oracle_calls_total",
		Help: "Total oracle gateway calls",
	}, []string{"kind", "result"}) // kind: odds|resolution|adjudication

	// OracleLatency tracks oracle call duration; consensus rounds are slow
	// so buckets reach into minutes.
	OracleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchbook_oracle_latency_seconds",
		Help:    "Oracle gateway call latency in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"kind"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "matchbook_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchbook_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "matchbook_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	}, []string{"method", "path"})
)

// ObserveOracleCall records one oracle gateway call.
func ObserveOracleCall(kind string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	OracleCalls.WithLabelValues(kind, result).Inc()
	OracleLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so WebSocket upgrades
// work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

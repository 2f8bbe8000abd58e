package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_notifications_total",
			Help: "Total number of gateway notifications by outcome",
		},
		[]string{"method", "outcome"},
	)

	referenceTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_transactions_total",
			Help: "Total number of capture, refund and void operations by outcome",
		},
		[]string{"type", "outcome"},
	)
)

// HTTPMetrics records request counts, latencies and in-flight requests for
// every route.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
	})
}

// RecordNotification counts a processed notification by outcome
// (reconciled, forged, rejected, failed).
func RecordNotification(methodCode, outcome string) {
	notificationsTotal.WithLabelValues(methodCode, outcome).Inc()
}

// RecordReferenceTransaction counts a capture, refund or void by outcome
// (approved, declined, failed).
func RecordReferenceTransaction(refType, outcome string) {
	referenceTransactionsTotal.WithLabelValues(refType, outcome).Inc()
}

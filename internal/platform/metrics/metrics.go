package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	capturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "captures_total",
			Help: "Label captures by outcome",
		},
		[]string{"outcome"},
	)

	extractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Latency of label extraction calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_transitions_total",
			Help: "Delivery status transitions by target status",
		},
		[]string{"status"},
	)

	importedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imported_records_total",
			Help: "Delivery records created by bulk import",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. It labels by the chi route
// pattern so ids in paths do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCapture counts a capture attempt: "staged", "failed", "discarded" or "rejected".
func RecordCapture(outcome string) {
	capturesTotal.WithLabelValues(outcome).Inc()
}

func ObserveExtraction(d time.Duration) {
	extractionDuration.Observe(d.Seconds())
}

func RecordTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}

func RecordImported(n int) {
	importedRecords.Add(float64(n))
}

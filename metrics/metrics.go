package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the fulfillment pipeline.
var (
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Payment webhook deliveries by result",
		},
		[]string{"result"},
	)

	FulfillmentOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_outcomes_total",
			Help: "Fulfillment runs by terminal state and entry point",
		},
		[]string{"entry", "state"},
	)

	EmailAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_attempts_total",
			Help: "Email transport attempts by transport and status",
		},
		[]string{"transport", "status"},
	)

	StorageRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_list_retries_total",
			Help: "Retries of storage listings after transient errors",
		},
	)

	FulfillmentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fulfillment_duration_seconds",
			Help:    "Duration of one fulfillment run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entry"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics with the default registry.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			WebhookEventsTotal,
			FulfillmentOutcomesTotal,
			EmailAttemptsTotal,
			StorageRetriesTotal,
			FulfillmentDuration,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}

// Instrument records request counts and latency labelled by chi route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_service_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_service_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_service_operations_total",
			Help: "Total number of checkout, payment, order and tracking operations",
		},
		[]string{"operation", "status"},
	)

	signatureVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_service_signature_verifications_total",
			Help: "Payment signature verifications by outcome",
		},
		[]string{"outcome"},
	)

	trackingLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_service_tracking_lookups_total",
			Help: "Tracking lookups by result source",
		},
		[]string{"source"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_service_notifications_total",
			Help: "Seller notifications by channel and outcome",
		},
		[]string{"channel", "status"},
	)
)

// Middleware records request count and latency per route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		httpRequestsTotal.WithLabelValues(r.Method, path, code).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	operations.WithLabelValues(operation, status).Inc()
}

func RecordSignature(outcome string) {
	signatureVerifications.WithLabelValues(outcome).Inc()
}

func RecordTrackingLookup(source string) {
	trackingLookups.WithLabelValues(source).Inc()
}

func RecordNotification(channel string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	notifications.WithLabelValues(channel, status).Inc()
}

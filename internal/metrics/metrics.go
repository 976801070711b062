// Package metrics provides the Prometheus collectors and HTTP middleware
// used by docsauth.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LoginTotal counts login attempts by outcome
	// (success, invalid_request, invalid_credentials, unauthorized, csrf, error).
	LoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsauth_login_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// LogoutTotal counts logout requests by outcome.
	LogoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsauth_logout_total",
			Help: "Logout requests by outcome",
		},
		[]string{"outcome"},
	)

	// HookFailuresTotal counts hook invocations that returned an error or panicked.
	HookFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsauth_hook_failures_total",
			Help: "Failed hook invocations",
		},
		[]string{"event"},
	)

	// ProviderLatency records identity provider call latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsauth_provider_latency_seconds",
			Help:    "Identity provider latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	// RequestsTotal counts HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsauth_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsauth_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		LoginTotal,
		LogoutTotal,
		HookFailuresTotal,
		ProviderLatency,
		RequestsTotal,
		RequestDuration,
	)
}

// Handler returns the /metrics handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &StatusWriter{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(sw, r)

		RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.Status/100)+"xx").Inc()
		RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// StatusWriter wraps http.ResponseWriter to capture the status code.
type StatusWriter struct {
	http.ResponseWriter
	Status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *StatusWriter) WriteHeader(status int) {
	if !w.written {
		w.Status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write marks the status as written and delegates.
func (w *StatusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter.
func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

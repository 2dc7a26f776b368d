package console

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/org/opsconsole/internal/poll"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsconsole_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opsconsole_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	actionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsconsole_actions_total",
		Help: "Resource actions sent to the backend, by operation and result.",
	}, []string{"op", "result"})

	liveSessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opsconsole_live_sessions",
		Help: "Open terminal and log relays.",
	}, []string{"kind"})

	pollFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsconsole_poll_fetches_total",
		Help: "Polling fetches by resource and result.",
	}, []string{"resource", "result"})

	pollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opsconsole_poll_duration_seconds",
		Help:    "Polling fetch duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, actionsTotal, liveSessions, pollFetches, pollDuration)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func observeAction(op, result string) {
	actionsTotal.WithLabelValues(op, result).Inc()
}

func observePoll(k poll.Key, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	pollFetches.WithLabelValues(k.Resource, result).Inc()
	pollDuration.WithLabelValues(k.Resource).Observe(took.Seconds())
}

// metricsMiddleware records request metrics by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rr.statusCode)
		requestsTotal.WithLabelValues(r.Method, route, status).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(dur)
	})
}

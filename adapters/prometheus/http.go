package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics instruments the HTTP API.
type HTTPMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	rateLimited     prometheus.Counter
}

// NewHTTPMetrics creates and registers the HTTP metrics.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "piano_http_request_duration_seconds",
			Help:    "HTTP request handling time in seconds",
			Buckets: defaultBuckets,
		}, []string{"route"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "piano_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"route", "status"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "piano_http_rate_limited_total",
			Help: "Requests rejected by the per-user rate limiter",
		}),
	}

	reg.MustRegister(m.requestDuration, m.requestsTotal, m.rateLimited)
	return m
}

// Observe records one finished request.
func (m *HTTPMetrics) Observe(route string, status int, seconds float64) {
	m.requestDuration.WithLabelValues(route).Observe(seconds)
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RateLimited counts one rejected request.
func (m *HTTPMetrics) RateLimited() {
	m.rateLimited.Inc()
}

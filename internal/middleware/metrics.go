package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names exposed by this package.
const (
	MetricRateLimitRequests     = "rate_limit_requests_total"
	MetricRateLimitBlocked      = "rate_limit_blocked_total"
	MetricRateLimitRedisErrors  = "rate_limit_redis_errors_total"
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestSizeBytes  = "http_request_size_bytes"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
)

// httpLabels are the dimensions recorded per HTTP request. Paths must be
// normalized before use (see normalizePath).
var httpLabels = []string{"method", "path", "status"}

// sizeBuckets spans 100 B to ~100 MB.
var sizeBuckets = prometheus.ExponentialBuckets(100, 10, 8)

// Metrics holds the Prometheus collectors for the middleware chain:
// rate limiting counters and per-request HTTP histograms. Safe for
// concurrent use.
type Metrics struct {
	rateLimitRequests    *prometheus.CounterVec
	rateLimitBlocked     *prometheus.CounterVec
	rateLimitRedisErrors prometheus.Counter
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestSize      *prometheus.HistogramVec
	httpResponseSize     *prometheus.HistogramVec
}

// NewMetrics builds the collectors without registering them; pass a
// registry to Register.
func NewMetrics() *Metrics {
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	}
	histogramVec := func(name, help string, buckets []float64) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets},
			httpLabels,
		)
	}

	return &Metrics{
		rateLimitRequests: counterVec(MetricRateLimitRequests,
			"Total number of rate limit checks by endpoint", "endpoint", "key_type"),
		rateLimitBlocked: counterVec(MetricRateLimitBlocked,
			"Total number of rate limit violations (blocked requests) by endpoint", "endpoint", "key_type"),
		rateLimitRedisErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRateLimitRedisErrors,
			Help: "Total number of Redis errors during rate limiting (fail-open events)",
		}),
		httpRequestDuration: histogramVec(MetricHTTPRequestDuration,
			"HTTP request duration in seconds", []float64{0.01, 0.1, 0.5, 1.0, 2.0}),
		httpRequestsTotal: counterVec(MetricHTTPRequestsTotal,
			"Total number of HTTP requests", httpLabels...),
		httpRequestSize: histogramVec(MetricHTTPRequestSizeBytes,
			"HTTP request size in bytes", sizeBuckets),
		httpResponseSize: histogramVec(MetricHTTPResponseSizeBytes,
			"HTTP response size in bytes", sizeBuckets),
	}
}

// Collectors returns every collector this Metrics instance owns.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rateLimitRequests,
		m.rateLimitBlocked,
		m.rateLimitRedisErrors,
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpRequestSize,
		m.httpResponseSize,
	}
}

// Register registers all collectors with reg, stopping at the first error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRateLimitRequests counts a rate limit check for an endpoint.
// keyType is the kind of limit key, "user" or "ip".
func (m *Metrics) IncRateLimitRequests(endpoint, keyType string) {
	m.rateLimitRequests.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitBlocked counts a rejected request for an endpoint.
func (m *Metrics) IncRateLimitBlocked(endpoint, keyType string) {
	m.rateLimitBlocked.WithLabelValues(endpoint, keyType).Inc()
}

// IncRateLimitRedisErrors counts a Redis failure that let a request
// through unchecked.
func (m *Metrics) IncRateLimitRedisErrors() {
	m.rateLimitRedisErrors.Inc()
}

// ObserveHTTPRequest records one finished request. duration is in seconds,
// sizes in bytes.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, requestSize, responseSize int64) {
	labels := prometheus.Labels{"method": method, "path": path, "status": status}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpRequestSize.With(labels).Observe(float64(requestSize))
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

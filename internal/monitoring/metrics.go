package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Skill lifecycle metrics
	SkillMutations     *prometheus.CounterVec
	RequestTransitions *prometheus.CounterVec
	FeedbackRatings    prometheus.Histogram

	// Store metrics
	StoreRetries        *prometheus.CounterVec
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
	DBQueryDuration     *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// Init initializes all Prometheus metrics
func Init() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
				[]string{"method", "path"},
			),
			HTTPRequestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),

			SkillMutations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "skill_mutations_total",
					Help: "Skill mutations by operation and outcome",
				},
				[]string{"operation", "outcome"},
			),
			RequestTransitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "skill_request_transitions_total",
					Help: "Learning request state transitions",
				},
				[]string{"from", "to"},
			),
			FeedbackRatings: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "skill_feedback_rating",
					Help:    "Distribution of submitted feedback ratings",
					Buckets: []float64{1, 2, 3, 4, 5},
				},
			),

			StoreRetries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "skill_store_retries_total",
					Help: "Optimistic concurrency retries in the skill store",
				},
				[]string{"backend"},
			),
			DBConnectionsActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "db_connections_active",
					Help: "Number of active database connections",
				},
			),
			DBConnectionsIdle: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "db_connections_idle",
					Help: "Number of idle database connections",
				},
			),
			DBQueryDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "db_query_duration_seconds",
					Help:    "Database query duration in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"query_type"},
			),

			RateLimitHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_hits_total",
					Help: "Total number of rate limit hits",
				},
				[]string{"route"},
			),

			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_type"},
			),
			CacheMisses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_type"},
			),

			CircuitBreakerState: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 0.5=half-open)",
				},
				[]string{"name"},
			),
		}
	})
	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Init()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordSkillMutation records the outcome of a skill mutation
func RecordSkillMutation(operation, outcome string) {
	Get().SkillMutations.WithLabelValues(operation, outcome).Inc()
}

// RecordRequestTransition records a request moving between states.
// "none" stands for the absence of a request.
func RecordRequestTransition(from, to string) {
	Get().RequestTransitions.WithLabelValues(from, to).Inc()
}

// RecordFeedbackRating records a submitted rating
func RecordFeedbackRating(rating int) {
	Get().FeedbackRatings.Observe(float64(rating))
}

// RecordStoreRetry records an optimistic concurrency retry
func RecordStoreRetry(backend string) {
	Get().StoreRetries.WithLabelValues(backend).Inc()
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit(route string) {
	Get().RateLimitHits.WithLabelValues(route).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	Get().CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	Get().CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(queryType string, duration time.Duration) {
	Get().DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

// SetDBConnections sets database connection metrics
func SetDBConnections(active, idle int) {
	Get().DBConnectionsActive.Set(float64(active))
	Get().DBConnectionsIdle.Set(float64(idle))
}

// SetCircuitBreakerState sets the circuit breaker state
// state: 0=closed, 1=open, 0.5=half-open
func SetCircuitBreakerState(name string, state float64) {
	Get().CircuitBreakerState.WithLabelValues(name).Set(state)
}

package metrics

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bywebapp_cache_hits_total",
			Help: "Total derived cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bywebapp_cache_misses_total",
			Help: "Total derived cache misses",
		},
		[]string{"cache_type"},
	)

	CachePopulations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bywebapp_cache_populations_total",
			Help: "Total derived cache entries rebuilt from the relational store",
		},
		[]string{"cache_type"},
	)

	CacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bywebapp_cache_errors_total",
			Help: "Cache store failures that fell back to the relational store",
		},
		[]string{"op"},
	)

	CounterFlushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bywebapp_counter_flush_failures_total",
			Help: "Read count write-backs that failed after retries",
		},
	)

	MatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bywebapp_match_duration_seconds",
			Help:    "Tag affinity match duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"status"},
	)

	MatchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bywebapp_match_candidates",
			Help:    "Number of scored candidates per match",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
		},
	)

	PointsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bywebapp_points_applied_total",
			Help: "Reward point changes by action and outcome",
		},
		[]string{"action", "status"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bywebapp_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

func Init() {
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CachePopulations)
	prometheus.MustRegister(CacheErrors)
	prometheus.MustRegister(CounterFlushFailures)
	prometheus.MustRegister(MatchDuration)
	prometheus.MustRegister(MatchCandidates)
	prometheus.MustRegister(PointsApplied)
	prometheus.MustRegister(HTTPRequests)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// RequestMiddleware counts requests by matched route pattern, so path
// parameters do not blow up label cardinality.
func RequestMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		code := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			} else {
				code = fiber.StatusInternalServerError
			}
		}
		HTTPRequests.WithLabelValues(c.Route().Path, strconv.Itoa(code)).Inc()
		return err
	}
}

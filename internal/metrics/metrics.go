// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	harvestPagesTotal        *prometheus.CounterVec
	harvestSubsidiesTotal    *prometheus.CounterVec
	harvestSkippedTotal      *prometheus.CounterVec
	harvestQueueDepth        prometheus.Gauge
	harvestCacheLookupsTotal *prometheus.CounterVec
	harvestRenderSeconds     *prometheus.HistogramVec
	harvestRateWaitSeconds   *prometheus.HistogramVec
	harvestCheckpointsTotal  prometheus.Counter
	harvestInFlightRequests  prometheus.Gauge
	harvestErrorsTotal       *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Total pages processed, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		harvestSubsidiesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_subsidies_total",
				Help: "Total subsidy records extracted, labeled by site.",
			},
			[]string{"site"},
		)

		harvestSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_skipped_total",
				Help: "Total URLs skipped, labeled by reason.",
			},
			[]string{"reason"},
		)

		harvestQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_queue_depth",
				Help: "Number of URLs currently pending in the queue.",
			},
		)

		harvestCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_cache_lookups_total",
				Help: "Response cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		harvestRenderSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_render_seconds",
				Help:    "Histogram of page render latencies, labeled by renderer.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"renderer"},
		)

		harvestRateWaitSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_rate_wait_seconds",
				Help:    "Histogram of rate limiter wait durations, labeled by domain.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		harvestCheckpointsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_checkpoints_total",
				Help: "Total checkpoint saves performed.",
			},
		)

		harvestInFlightRequests = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_in_flight_requests",
				Help: "Number of fetches currently holding a concurrency slot.",
			},
		)

		harvestErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_errors_total",
				Help: "Total per-URL errors, labeled by site.",
			},
			[]string{"site"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one processed page with its outcome
// (visited, skipped, failed).
func ObservePage(site, outcome string) {
	harvestPagesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveSubsidy records one extracted subsidy record.
func ObserveSubsidy(site string) {
	harvestSubsidiesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveSkip records a skipped URL with its reason (robots, depth, budget).
func ObserveSkip(reason string) {
	harvestSkippedTotal.WithLabelValues(reason).Inc()
}

// SetQueueDepth updates the pending-queue gauge.
func SetQueueDepth(depth int) {
	harvestQueueDepth.Set(float64(depth))
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	harvestCacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveRender records one render with its latency. renderer is "static" or
// "dynamic".
func ObserveRender(renderer string, duration time.Duration) {
	harvestRenderSeconds.WithLabelValues(renderer).Observe(duration.Seconds())
}

// ObserveRateWait records the duration of a rate limiter wait.
func ObserveRateWait(domain string, duration time.Duration) {
	harvestRateWaitSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveCheckpoint increments the checkpoint save counter.
func ObserveCheckpoint() {
	harvestCheckpointsTotal.Inc()
}

// IncInFlight increments the in-flight fetch gauge.
func IncInFlight() {
	harvestInFlightRequests.Inc()
}

// DecInFlight decrements the in-flight fetch gauge.
func DecInFlight() {
	harvestInFlightRequests.Dec()
}

// ObserveError records one per-URL error.
func ObserveError(site string) {
	harvestErrorsTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

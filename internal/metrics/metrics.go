// Package metrics exposes Prometheus instrumentation for screening runs, the run cache,
// the catalog and the HTTP surface.
package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conjscreen_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conjscreen_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	screeningRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conjscreen_screening_runs_total",
		Help: "Screening runs that completed with a report.",
	})

	screeningErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conjscreen_screening_errors_total",
			Help: "Screening runs aborted, by reason.",
		},
		[]string{"reason"},
	)

	screeningDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "conjscreen_screening_duration_seconds",
		Help:    "Wall time of completed screening runs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	candidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conjscreen_candidates_total",
			Help: "Candidates evaluated, by outcome (accepted, rejected, failed).",
		},
		[]string{"outcome"},
	)

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conjscreen_run_cache_hits_total",
		Help: "Screening requests served from the run cache.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conjscreen_run_cache_misses_total",
		Help: "Screening requests that had to be computed.",
	})

	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conjscreen_run_cache_evictions_total",
		Help: "Run cache entries evicted by age or catalog change.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conjscreen_run_cache_entries",
		Help: "Screening reports currently cached.",
	})

	catalogObjects = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conjscreen_catalog_objects",
		Help: "Objects in the loaded catalog snapshot.",
	})

	catalogAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conjscreen_catalog_age_seconds",
		Help: "Seconds since the loaded catalog snapshot was fetched.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		screeningRunsTotal,
		screeningErrorsTotal,
		screeningDurationSeconds,
		candidatesTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		catalogObjects,
		catalogAgeSeconds,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScreening records a completed run and its candidate outcomes.
func RecordScreening(d time.Duration, accepted, rejected, failed int) {
	screeningRunsTotal.Inc()
	screeningDurationSeconds.Observe(d.Seconds())
	candidatesTotal.WithLabelValues("accepted").Add(float64(accepted))
	candidatesTotal.WithLabelValues("rejected").Add(float64(rejected))
	candidatesTotal.WithLabelValues("failed").Add(float64(failed))
}

// IncScreeningErrors counts an aborted run.
func IncScreeningErrors(reason string) { screeningErrorsTotal.WithLabelValues(reason).Inc() }

func IncCacheHits() { cacheHitsTotal.Inc() }
func IncCacheMisses() { cacheMissesTotal.Inc() }
func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }
func SetCacheEntries(n int) { cacheEntries.Set(float64(n)) }
func SetCatalogObjects(n int) { catalogObjects.Set(float64(n)) }
func SetCatalogAge(s float64) { catalogAgeSeconds.Set(s) }

// knownRoutes are recorded under their own path label.
var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/screen":        true,
	"/api/v1/catalog":       true,
	"/api/v1/catalog/fetch": true,
	"/api/v1/cache/stats":   true,
}

var objectRoute = regexp.MustCompile(`^/api/v1/catalog/\d+$`)

// normalizeRoute bounds label cardinality: parameterized paths collapse to their
// pattern and anything unknown becomes "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if objectRoute.MatchString(path) {
		return "/api/v1/catalog/{norad_id}"
	}
	return "other"
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

package observability

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, status code, and host
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytoolchain_http_requests_total",
			Help: "Total number of HTTP requests by method and status",
		},
		[]string{"method", "status_code", "host"},
	)

	// HTTPRequestDuration tracks HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pytoolchain_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to 16s
		},
		[]string{"method", "host"},
	)

	// ResolutionsTotal counts resolutions by runtime and outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytoolchain_resolutions_total",
			Help: "Total number of version resolutions by runtime and outcome",
		},
		[]string{"runtime", "outcome"}, // cache_hit, installed, not_found, invalid_spec, install_failed
	)

	// ToolCacheLookupsTotal counts tool cache probes by runtime and result
	ToolCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytoolchain_toolcache_lookups_total",
			Help: "Total number of tool cache lookups by result",
		},
		[]string{"tool", "result"}, // hit, miss, mismatch
	)

	// ManifestFetchesTotal counts manifest fetches by runtime and status
	ManifestFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytoolchain_manifest_fetches_total",
			Help: "Total number of release manifest fetches by status",
		},
		[]string{"runtime", "status"}, // success, failure
	)

	// ManifestCacheHitsTotal counts manifest cache hits by tier
	ManifestCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytoolchain_manifest_cache_hits_total",
			Help: "Total number of manifest cache hits by cache tier",
		},
		[]string{"tier"}, // memory, disk
	)

	// ManifestCacheMissesTotal counts manifest cache misses by tier
	ManifestCacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytoolchain_manifest_cache_misses_total",
			Help: "Total number of manifest cache misses by cache tier",
		},
		[]string{"tier"},
	)

	// InstallsTotal counts installs by runtime and status
	InstallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pytoolchain_installs_total",
			Help: "Total number of interpreter installs by status",
		},
		[]string{"runtime", "status"}, // success, failure, rate_limited
	)

	// InstallDuration tracks download plus extraction time in seconds
	InstallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pytoolchain_install_duration_seconds",
			Help:    "Interpreter install duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to 6min
		},
		[]string{"runtime"},
	)
)

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// WriteMetricsFile writes all registered metrics in the text exposition
// format, for the node exporter textfile collector.
func WriteMetricsFile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// GetCounterValue retrieves the current value of a counter metric with the given labels
// This is primarily intended for testing
func GetCounterValue(counter *prometheus.CounterVec, labels ...string) (float64, error) {
	metric, err := counter.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}

	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0, err
	}

	if pb.Counter != nil {
		return pb.Counter.GetValue(), nil
	}

	return 0, nil
}

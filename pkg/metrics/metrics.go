// Package metrics provides the centralized Prometheus registry for the
// scraper. All metrics are defined in their respective packages (cache,
// client, batch) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the scraper.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - artie_cache_hits_total{region} (Counter): Cache hits by region
//   - artie_cache_misses_total{region} (Counter): Cache misses by region
//   - artie_cache_evictions_total{region, cause} (Counter): Evictions by cause (expired, capacity)
//   - artie_cache_entries{region} (Gauge): Current entries per region
//   - artie_cache_persist_errors_total (Counter): Save/load failures
//
// Request Metrics (pkg/client):
//   - artie_requests_total{outcome} (Counter): Requests by outcome (success, error)
//   - artie_request_duration_seconds (Histogram): Request duration
//   - artie_errors_total{kind} (Counter): Errors by kind (network, quota_exceeded, ...)
//   - artie_suppressed_requests_total{marker} (Counter): Requests refused by a suppression marker
//
// Retry Metrics (pkg/client):
//   - artie_retries_total (Counter): Retry attempts
//   - artie_retry_backoff_seconds (Histogram): Backoff durations
//   - artie_retry_exhausted_total (Counter): Requests that exhausted max retries
//
// Batch Metrics (pkg/batch):
//   - artie_batch_items_total{outcome} (Counter): Items by outcome (completed, failed, cancelled)
//   - artie_batch_runs_total{outcome} (Counter): Runs by outcome (done, quota_halted)
//   - artie_batch_duration_seconds (Histogram): Batch run duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(artie_cache_hits_total[5m])) /
//   (sum(rate(artie_cache_hits_total[5m])) + sum(rate(artie_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(artie_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(artie_request_duration_seconds_bucket[5m]))
//
//   # Suppression Activity
//   rate(artie_suppressed_requests_total[5m])

// Package metrics exposes the Prometheus metrics of ghbrowse.
// The metrics themselves are defined with promauto in the packages that
// update them (client, pagination, cache, enrich, ratelimit, search), so
// importing those packages registers them with the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry all ghbrowse metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ghub_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - ghub_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ghub_errors_total{class} (Counter): Errors by class (cancelled, rate_limit, validation, client, server, network)
//   - ghub_retries_total{error_class} (Counter): Retry attempts
//   - ghub_retry_backoff_seconds{error_class} (Histogram): Backoff durations
//   - ghub_retry_exhausted_total{error_class} (Counter): Requests that used up their attempts
//
// Rate Limit Metrics (pkg/ratelimit):
//   - ghub_rate_limit_remaining (Gauge): Quota left from X-RateLimit-Remaining
//   - ghub_rate_limit_hits_total (Counter): Searches cut short by GitHub
//   - ghub_cooldown_rejections_total (Counter): Searches refused during cooldown
//
// Pagination Metrics (pkg/pagination):
//   - ghub_pages_fetched_total (Counter): Search pages fetched
//   - ghub_pagination_duration_seconds (Histogram): Time to fetch all pages of a query
//
// Cache Metrics (pkg/cache):
//   - ghub_cache_hits_total{layer="memory|redis"} (Counter): Cache hits by layer
//   - ghub_cache_misses_total (Counter): Cache misses
//   - ghub_cache_entries (Gauge): Users held in memory
//   - ghub_cache_errors_total{operation} (Counter): Redis errors
//
// Enrichment Metrics (pkg/enrich):
//   - ghub_enrich_fetches_total{mode, result} (Counter): Detail fetches
//   - ghub_enrich_cache_splices_total (Counter): Users served from cache
//   - ghub_enrich_workers (Histogram): Workers per bulk load
//
// Search Metrics (pkg/search):
//   - ghub_searches_total{outcome} (Counter): Searches by outcome (ok, trimmed, failed, cooldown)
//   - ghub_search_results (Histogram): Users per search
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(ghub_cache_hits_total[5m])) /
//   (sum(rate(ghub_cache_hits_total[5m])) + sum(rate(ghub_cache_misses_total[5m])))
//
//   # Trimmed searches
//   rate(ghub_searches_total{outcome="trimmed"}[1h])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ghub_request_duration_seconds_bucket[5m]))

// Package metrics provides the centralized Prometheus registry reference for
// the animal ETL pipeline. All metrics are defined in their respective
// packages (client, cache, etl) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - animal_api_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - animal_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - animal_api_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - animal_api_retries_total{operation, error_class} (Counter): Retry attempts by operation and error class
//   - animal_api_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - animal_api_retry_exhausted_total{operation} (Counter): Operations that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - animal_detail_cache_hits_total (Counter): Detail responses served from cache
//   - animal_detail_cache_misses_total (Counter): Detail lookups not found in cache
//   - animal_detail_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pipeline Metrics (pkg/etl):
//   - animal_etl_records_total{stage} (Counter): Records processed by stage (extracted, transformed, loaded)
//   - animal_etl_record_failures_total{stage} (Counter): Record failures by stage (transform, load)
//   - animal_etl_batches_total{status} (Counter): Batch submissions by outcome (submitted, failed)
//   - animal_etl_pages_total (Counter): Source list pages fetched
//   - animal_etl_run_duration_seconds (Histogram): Total pipeline run duration

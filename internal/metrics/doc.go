// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package metrics declares the Prometheus collectors exported at /metrics.

All collectors are registered on the default registry through promauto, so
importing the package is enough to expose them. Families:

  - consensus_cache_*: lookups by namespace and outcome, evictions, tier sizes
  - consensus_ratelimit_*: queue depth, in-flight calls, rejected admissions
  - consensus_upstream_*: per-source lookup outcomes and HTTP latency
  - consensus_scrape_*: page fetches and final per-item scrape outcomes
  - consensus_consolidations_total: consolidated ratings by color
  - consensus_circuit_breaker_*: breaker state per upstream
  - consensus_api_*: HTTP request counts and latency
*/
package metrics

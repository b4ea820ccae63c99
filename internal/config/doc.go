// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package config loads and validates Consensus configuration.

Values are layered with koanf v2: built-in defaults, then an optional YAML
file, then environment variables. Only the variables listed in the mapping
table are read, so unrelated process environment never leaks into the
configuration.

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_REQUEST_TIMEOUT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Cache:
  - CACHE_CAPACITY, CACHE_POLICY (lru, lfu)
  - CACHE_BADGER_PATH, CACHE_BADGER_IN_MEMORY
  - CACHE_STALE_SERVE, CACHE_STALE_WINDOW, CACHE_RETENTION

Sources:
  - TMDB_ENABLED, TMDB_API_KEY, TMDB_BASE_URL
  - OMDB_ENABLED, OMDB_API_KEY, OMDB_BASE_URL
  - MAL_ENABLED, MAL_BASE_URL
  - MIRROR_ENABLED, MIRROR_PATH, MIRROR_RATINGS_FILE, MIRROR_EPISODES_FILE

Scraping and batching:
  - SCRAPER_ENABLED, SCRAPER_RETRIES, SCRAPER_RETRY_DELAY
  - BATCH_WARMUP_DELAY, BATCH_WINDOW_DELAY, BATCH_ITEM_TIMEOUT

Per-source rate limits are YAML only:

	ratelimit:
	  sources:
	    rt:
	      max_concurrent: 1
	      min_delay: 1500ms
	      max_delay: 4s
	      max_queue: 50
*/
package config

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package main is the entry point for the Consensus rating server.

Consensus answers "what do the critics and audiences think of this title"
for batches of movies, series, episodes and anime. It reads IMDb ratings
from a local DuckDB mirror, asks TMDB, OMDb and Jikan for the rest, scrapes
Rotten Tomatoes and Metacritic as a last resort, and folds everything into
one consolidated score per item.

# Application Architecture

Services run under a Suture v4 supervisor tree:

	RootSupervisor ("consensus")
	├── DataSupervisor ("data-layer")
	│   └── Cache janitor (memory sweep, badger value log GC)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, an optional YAML file and environment variables
 2. Logging: zerolog with JSON or console output
 3. Cache: memory tier plus an optional badger tier
 4. Rate limiter: per-source pacing and queue bounds
 5. Mirror: DuckDB with optional IMDb TSV import
 6. Clients and scrapers for every enabled upstream
 7. Consolidation engine and resolver
 8. Supervisor tree and HTTP server

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests, the janitor stops, and the mirror and badger tier are
closed once the tree has returned.

# Example Usage

	export TMDB_API_KEY=...
	export OMDB_API_KEY=...
	export MIRROR_RATINGS_FILE=/data/title.ratings.tsv
	./consensus

	curl 'localhost:7788/api/v1/ratings?item=tt0111161:movie'
*/
package main

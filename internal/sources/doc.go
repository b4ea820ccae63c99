// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package sources holds one client per rating upstream.

	LocalMirror  imdb       DuckDB mirror of the IMDb datasets
	TMDB         tmdb       /find by IMDb id, vote_average
	OMDB         rt, mc     Rotten Tomatoes and Metacritic from one response
	MAL          mal        Jikan v4 /anime/{id}

Every client follows the same path for an item: consult the cache, and on a
miss call the upstream through the circuit breaker and the per-source rate
limiter with the client's own timeout. A value is normalized to 0 to 10 and
cached with the positive TTL. A confirmed absence is cached as a negative
entry. Rate limiting, timeouts, 5xx responses and network errors are
transient: they are logged at warn and never cached, so the next request
tries again.

Errors never leave a client. Fetch always returns an Outcome whose Status is
one of Found, NotFound, Transient or Skipped.
*/
package sources

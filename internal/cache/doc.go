// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package cache is the two-tier TTL store shared by every rating source, the
scrapers and the consolidation engine.

# Tiers

Store reads a bounded in-memory tier first and falls back to an optional
durable tier (BadgerDB). Durable hits are promoted into memory. Writes go to
both tiers; a failing durable tier is logged and otherwise ignored so the
process keeps working on memory alone.

The memory tier evicts through a pluggable EvictionPolicy: LRU by default,
LFU for skewed catalogs where a few titles dominate.

# Entries

Every Entry carries an absolute ExpiresAt. Negative entries record that an
upstream authoritatively has no value, so the next lookup does not go back
over the network. FailCount counts consecutive scrape misses and survives
expiry for the retention window.

# Freshness

	now <  ExpiresAt                    fresh: served
	now <  ExpiresAt + StaleWindow      stale: served when StaleServe is on,
	                                    with a background refresh
	otherwise                           miss: Result.Entry still exposes the
	                                    retained entry for FailCount

# Coalescing

GetOrFetch runs at most one fetch per key at a time through a
singleflight.Group. Concurrent callers for the same key wait for the one
in-flight fetch and share its result. Fetch errors are returned and never
cached.

# Keys

	src:<source>:<item>        one source's value for an item
	consolidated:<item>        the consolidated rating
	scrape:<site>:<item>       scrape bookkeeping (negative + FailCount)
	raw:<upstream>:<item>      a multi-source upstream response (OMDb)
*/
package cache

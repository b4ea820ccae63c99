// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package scraper fills the Rotten Tomatoes and Metacritic slots for series
that OMDb has no score for, by reading the public title pages.

A Scraper serves one Site. For an item it derives a slug from the title,
builds an ordered list of candidate URLs and requests them one at a time
through the shared rate limiter:

	404              next candidate
	200, score       Success, stop
	200, no score    ErrParse, logged, next candidate
	5xx, reset       retried on the same URL, then next candidate

Each page is parsed twice: the JSON-LD aggregateRating block first, then a
site specific DOM lookup. The structured value wins when both exist.

The terminal state of a scrape is one of Success, NotFound or
TransientError. NotFound is cached negatively under the item's scrape key
with a fail count one higher than the previous entry's, so repeated misses
stay visible after the earlier entry has expired. Success writes the value
into the source slot with origin "scrape".
*/
package scraper

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package api exposes the rating engine over HTTP with a chi router.

Endpoints:

	GET  /api/v1/ratings?item=tt0111161:movie&item=tt0944947:1:1   batch lookup
	POST /api/v1/ratings                                           batch lookup with titles
	GET  /api/v1/ratings/{id}?type=series&title=...                single lookup
	GET  /health                                                   dependency status
	GET  /metrics                                                  Prometheus

Every JSON response uses the models.APIResponse envelope. Batch lookups never
fail because an upstream did: items that could not be rated are simply
missing from the data map, and metadata reports requested vs resolved.

An item parameter is "<id>:<type>". Stremio episode ids ("tt0944947:1:1")
need no type. Foreign ids keep their prefix ("mal:5114:series").
*/
package api

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package models defines the data structures shared across Consensus.

Key Components:

  - MediaItem: an item to rate, addressed by IMDb, Stremio episode or foreign id
  - SourceValue: one provider's rating, normalized to 0–10
  - ConsolidatedRating: the averaged score and its color bucket
  - APIResponse: the standard HTTP response envelope

Scales:

Sources report on either a 0–10 scale (IMDb, TMDB, MAL) or a 0–100 scale
(Rotten Tomatoes percentage, Metacritic metascore). NewSourceValue divides
0–100 values by ten so every SourceValue.RawValue shares one range.
*/
package models

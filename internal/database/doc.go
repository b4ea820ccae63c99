// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

// Package database is the DuckDB-backed local mirror of the IMDb ratings
// datasets.
//
// The mirror holds three tables:
//
//   - imdb_ratings: tconst, average_rating (0 to 10), num_votes
//   - imdb_episodes: episode tconst to parent series, season and episode
//   - id_mappings: foreign ids (mal:, kitsu:, anilist:) to IMDb ids
//
// Downloading the datasets is handled elsewhere. This package loads files
// already on disk (ImportRatings, ImportEpisodes) and answers point lookups
// for the local mirror source client:
//
//	db, err := database.New(&cfg.Mirror)
//	r, err := db.LookupRating(ctx, "tt0111161")
//	if errors.Is(err, database.ErrNotFound) { ... }
package database

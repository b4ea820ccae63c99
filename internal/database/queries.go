// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/consensus/internal/metrics"
)

// LookupRating returns the rating of a title. ErrNotFound when absent.
func (db *DB) LookupRating(ctx context.Context, imdbID string) (Rating, error) {
	defer observe("imdb_ratings", time.Now())

	r := Rating{IMDbID: imdbID}
	err := db.conn.QueryRowContext(ctx,
		`SELECT average_rating, num_votes FROM imdb_ratings WHERE tconst = ?`, imdbID,
	).Scan(&r.Average, &r.Votes)
	if errors.Is(err, sql.ErrNoRows) {
		return Rating{}, fmt.Errorf("%s: %w", imdbID, ErrNotFound)
	}
	if err != nil {
		return Rating{}, fmt.Errorf("lookup rating %s: %w", imdbID, err)
	}
	return r, nil
}

// LookupEpisodeRating resolves a series episode through imdb_episodes and
// returns that episode's rating.
func (db *DB) LookupEpisodeRating(ctx context.Context, seriesID string, season, episode int) (Rating, error) {
	defer observe("imdb_episodes", time.Now())

	var r Rating
	err := db.conn.QueryRowContext(ctx, `
		SELECT r.tconst, r.average_rating, r.num_votes
		FROM imdb_episodes e
		JOIN imdb_ratings r ON r.tconst = e.tconst
		WHERE e.parent_tconst = ? AND e.season_number = ? AND e.episode_number = ?
		LIMIT 1`, seriesID, season, episode,
	).Scan(&r.IMDbID, &r.Average, &r.Votes)
	if errors.Is(err, sql.ErrNoRows) {
		return Rating{}, fmt.Errorf("%s:%d:%d: %w", seriesID, season, episode, ErrNotFound)
	}
	if err != nil {
		return Rating{}, fmt.Errorf("lookup episode %s:%d:%d: %w", seriesID, season, episode, err)
	}
	return r, nil
}

// Stats holds row counts for the health endpoint.
type Stats struct {
	Ratings  int64 `json:"ratings"`
	Episodes int64 `json:"episodes"`
	Mappings int64 `json:"mappings"`
}

// Stats counts the rows of every mirror table.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM imdb_ratings),
			(SELECT COUNT(*) FROM imdb_episodes),
			(SELECT COUNT(*) FROM id_mappings)`,
	).Scan(&s.Ratings, &s.Episodes, &s.Mappings)
	if err != nil {
		return Stats{}, fmt.Errorf("mirror stats: %w", err)
	}
	return s, nil
}

func observe(table string, start time.Time) {
	metrics.RecordMirrorQuery(table, time.Since(start))
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/consensus/internal/logging"
)

// Rating is one imdb_ratings row.
type Rating struct {
	IMDbID  string
	Average float64
	Votes   int
}

// Episode is one imdb_episodes row.
type Episode struct {
	IMDbID   string
	SeriesID string
	Season   int
	Episode  int
}

// ImportRatings replaces imdb_ratings with the contents of an IMDb
// title.ratings TSV export (optionally gzipped). It returns the row count.
func (db *DB) ImportRatings(ctx context.Context, path string) (int64, error) {
	query := fmt.Sprintf(`INSERT INTO imdb_ratings
		SELECT tconst, averageRating, numVotes
		FROM read_csv(%s, delim='\t', header=true, quote='', nullstr='\N',
			columns={'tconst': 'VARCHAR', 'averageRating': 'DOUBLE', 'numVotes': 'INTEGER'})
		WHERE averageRating IS NOT NULL`, sqlLiteral(path))
	return db.replaceTable(ctx, "imdb_ratings", path, query)
}

// ImportEpisodes replaces imdb_episodes with the contents of an IMDb
// title.episode TSV export. Rows without season or episode numbers are
// skipped since they cannot be addressed by a Stremio episode id.
func (db *DB) ImportEpisodes(ctx context.Context, path string) (int64, error) {
	query := fmt.Sprintf(`INSERT INTO imdb_episodes
		SELECT tconst, parentTconst, seasonNumber, episodeNumber
		FROM read_csv(%s, delim='\t', header=true, quote='', nullstr='\N',
			columns={'tconst': 'VARCHAR', 'parentTconst': 'VARCHAR', 'seasonNumber': 'INTEGER', 'episodeNumber': 'INTEGER'})
		WHERE seasonNumber IS NOT NULL AND episodeNumber IS NOT NULL`, sqlLiteral(path))
	return db.replaceTable(ctx, "imdb_episodes", path, query)
}

func (db *DB) replaceTable(ctx context.Context, table, path, insert string) (int64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("import %s: %w", table, err)
	}

	start := time.Now()
	var n int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
		res, err := tx.ExecContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	logging.Info().
		Str("table", table).
		Str("file", path).
		Int64("rows", n).
		Dur("duration", time.Since(start)).
		Msg("Mirror table imported")
	return n, nil
}

// InsertRatings upserts rating rows.
func (db *DB) InsertRatings(ctx context.Context, rows []Rating) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO imdb_ratings (tconst, average_rating, num_votes) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer closeWithLog(stmt, "prepared statement")

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.IMDbID, r.Average, r.Votes); err != nil {
				return fmt.Errorf("insert rating %s: %w", r.IMDbID, err)
			}
		}
		return nil
	})
}

// InsertEpisodes upserts episode rows.
func (db *DB) InsertEpisodes(ctx context.Context, rows []Episode) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO imdb_episodes (tconst, parent_tconst, season_number, episode_number) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer closeWithLog(stmt, "prepared statement")

		for _, e := range rows {
			if _, err := stmt.ExecContext(ctx, e.IMDbID, e.SeriesID, e.Season, e.Episode); err != nil {
				return fmt.Errorf("insert episode %s: %w", e.IMDbID, err)
			}
		}
		return nil
	})
}

// PutMapping records a foreign id translation.
func (db *DB) PutMapping(ctx context.Context, foreignID, imdbID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO id_mappings (foreign_id, imdb_id) VALUES (?, ?)`, foreignID, imdbID)
	return err
}

func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Warn().Err(rbErr).Msg("Failed to roll back mirror transaction")
		}
		return err
	}
	return tx.Commit()
}

// sqlLiteral quotes s as a SQL string literal. read_csv takes its path as
// a literal, not a bind parameter.
func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

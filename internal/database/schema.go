// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range append(tableCreationQueries(), indexQueries()...) {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS imdb_ratings (
			tconst TEXT PRIMARY KEY,
			average_rating DOUBLE NOT NULL,
			num_votes INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS imdb_episodes (
			tconst TEXT PRIMARY KEY,
			parent_tconst TEXT NOT NULL,
			season_number INTEGER,
			episode_number INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS id_mappings (
			foreign_id TEXT PRIMARY KEY,
			imdb_id TEXT NOT NULL
		);`,
	}
}

func indexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_episodes_parent ON imdb_episodes(parent_tconst, season_number, episode_number);`,
	}
}

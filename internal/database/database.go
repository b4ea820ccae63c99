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
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/logging"
)

// MemoryPath opens an in-memory mirror, used by tests.
const MemoryPath = ":memory:"

// DB wraps the DuckDB connection of the local mirror.
type DB struct {
	conn *sql.DB
	cfg  *config.MirrorConfig
}

// New opens the mirror database and creates its schema.
func New(cfg *config.MirrorConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	inMemory := cfg.Path == "" || cfg.Path == MemoryPath
	path := cfg.Path
	if inMemory {
		path = ""
	} else if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// A read-only mirror must already exist; schema creation is skipped.
	accessMode := "read_write"
	if cfg.ReadOnly && !inMemory {
		accessMode = "read_only"
	}

	// Extension autoloading stays off so startup never reaches the network.
	connStr := fmt.Sprintf("%s?access_mode=%s&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, accessMode, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	db.configureConnectionPool(inMemory)

	if accessMode == "read_write" {
		if err := db.createTables(); err != nil {
			closeQuietly(conn)
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	logging.Info().
		Str("path", cfg.Path).
		Str("access_mode", accessMode).
		Int("threads", numThreads).
		Msg("Local ratings mirror opened")

	return db, nil
}

// configureConnectionPool sizes the pool. An in-memory database is private
// to one connection, so the pool is pinned to a single one.
func (db *DB) configureConnectionPool(inMemory bool) {
	if inMemory {
		db.conn.SetMaxOpenConns(1)
		db.conn.SetMaxIdleConns(1)
		db.conn.SetConnMaxLifetime(0)
		return
	}
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying connection. The id mapper queries
// id_mappings through it.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints a writable mirror and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if !db.cfg.ReadOnly {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}

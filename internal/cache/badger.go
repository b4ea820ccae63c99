// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/consensus/internal/logging"
)

const badgerKeyPrefix = "cache:"

// BadgerConfig configures the durable tier.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory runs badger without touching disk. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Retention is how long an entry is kept after ExpiresAt so stale reads
	// and fail counts survive a restart.
	Retention time.Duration

	// GCDiscardRatio is passed to RunValueLogGC. Default 0.5.
	GCDiscardRatio float64
}

// BadgerTier is a durable Tier on BadgerDB. Entries are stored as JSON with
// a badger TTL of (ExpiresAt - now) + Retention, so badger drops them on its
// own once they are no longer useful.
type BadgerTier struct {
	db        *badger.DB
	retention time.Duration
	gcRatio   float64
	now       func() time.Time
	owned     bool
	closed    atomic.Bool
}

// OpenBadgerTier opens (or creates) a badger database for the cache.
func OpenBadgerTier(cfg BadgerConfig) (*BadgerTier, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	t := NewBadgerTier(db, cfg.Retention)
	t.owned = true
	if cfg.GCDiscardRatio > 0 {
		t.gcRatio = cfg.GCDiscardRatio
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("retention", cfg.Retention).
		Msg("Durable cache opened")

	return t, nil
}

// NewBadgerTier wraps an existing database. The caller keeps ownership of db.
func NewBadgerTier(db *badger.DB, retention time.Duration) *BadgerTier {
	return &BadgerTier{
		db:        db,
		retention: retention,
		gcRatio:   0.5,
		now:       time.Now,
	}
}

func (b *BadgerTier) Get(_ context.Context, key string) (*Entry, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var e Entry
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrMiss
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (b *BadgerTier) Put(_ context.Context, e *Entry) error {
	if b.closed.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	ttl := e.ExpiresAt.Sub(b.now()) + b.retention
	if ttl < time.Second {
		ttl = time.Second
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(badgerKeyPrefix+e.Key), data).WithTTL(ttl))
	})
}

func (b *BadgerTier) Delete(_ context.Context, key string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + key))
	})
}

// Len counts live keys. It walks the keyspace and is meant for metrics and
// tests, not hot paths.
func (b *BadgerTier) Len() int {
	if b.closed.Load() {
		return 0
	}
	n := 0
	_ = b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// RunGC reclaims value log space until badger reports nothing to rewrite.
func (b *BadgerTier) RunGC() error {
	if b.closed.Load() {
		return ErrClosed
	}
	for {
		err := b.db.RunValueLogGC(b.gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database if this tier opened it.
func (b *BadgerTier) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

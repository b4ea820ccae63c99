// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/metrics"
)

// Options tunes a Store. Zero values take the defaults noted per field.
type Options struct {
	// StaleServe serves expired entries inside StaleWindow and refreshes
	// them in the background.
	StaleServe bool

	// StaleWindow is how long past ExpiresAt an entry may be served stale.
	StaleWindow time.Duration

	// Retention is how long past ExpiresAt an entry is kept at all, so fail
	// counts can be read after expiry. Raised to StaleWindow if smaller.
	// Default 30 days.
	Retention time.Duration

	// FetchTimeout bounds a coalesced fetch independently of the first
	// caller's context. Default 30s.
	FetchTimeout time.Duration

	// Clock overrides time.Now.
	Clock func() time.Time
}

// Stats counts Store lookups since creation.
type Stats struct {
	Hits      int64 `json:"hits"`
	Stale     int64 `json:"stale"`
	Negative  int64 `json:"negative"`
	Misses    int64 `json:"misses"`
	Fetches   int64 `json:"fetches"`
	Refreshes int64 `json:"refreshes"`
}

// Store is the two-tier cache. It is safe for concurrent use.
type Store struct {
	fast    Tier
	durable Tier
	opts    Options
	now     func() time.Time
	group   singleflight.Group
	bg      sync.WaitGroup
	logger  zerolog.Logger

	hits, stale, negative, misses, fetches, refreshes atomic.Int64
}

// NewStore builds a Store over a memory tier and an optional durable tier.
// A nil fast tier gets a default MemoryTier.
func NewStore(fast, durable Tier, opts Options) *Store {
	if fast == nil {
		fast = NewMemoryTier(0, nil)
	}
	if opts.Retention <= 0 {
		opts.Retention = 30 * 24 * time.Hour
	}
	if opts.Retention < opts.StaleWindow {
		opts.Retention = opts.StaleWindow
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Store{
		fast:    fast,
		durable: durable,
		opts:    opts,
		now:     now,
		logger:  logging.WithComponent("cache"),
	}
}

// Get looks key up in memory, then in the durable tier.
func (s *Store) Get(ctx context.Context, key string) Result {
	e, ok := s.lookup(ctx, key)
	if !ok {
		s.misses.Add(1)
		metrics.RecordCacheLookup(Namespace(key), "miss")
		return Result{}
	}

	res := s.classify(e)
	switch {
	case !res.Found:
		s.misses.Add(1)
		metrics.RecordCacheLookup(Namespace(key), "miss")
	case res.Stale:
		s.stale.Add(1)
		metrics.RecordCacheLookup(Namespace(key), "stale")
	case res.Negative:
		s.negative.Add(1)
		metrics.RecordCacheLookup(Namespace(key), "negative")
	default:
		s.hits.Add(1)
		metrics.RecordCacheLookup(Namespace(key), "hit")
	}
	return res
}

// MinTTL is the shortest lifetime an entry is stored with. Smaller TTLs,
// including zero and negative ones, are raised to it.
const MinTTL = time.Second

// Put stores a positive entry.
func (s *Store) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.write(ctx, s.newEntry(key, Fill{Payload: payload, TTL: ttl}))
}

// PutNegative records an authoritative absence.
func (s *Store) PutNegative(ctx context.Context, key string, ttl time.Duration) error {
	return s.write(ctx, s.newEntry(key, Fill{Negative: true, TTL: ttl}))
}

// PutNegativeWithCount records an absence along with a fail count.
func (s *Store) PutNegativeWithCount(ctx context.Context, key string, ttl time.Duration, failCount int) error {
	return s.write(ctx, s.newEntry(key, Fill{Negative: true, TTL: ttl, FailCount: failCount}))
}

// Delete removes key from both tiers.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.fast.Delete(ctx, key); err != nil {
		return err
	}
	if s.durable != nil {
		if err := s.durable.Delete(ctx, key); err != nil {
			s.durableFailed("delete", key, err)
		}
	}
	return nil
}

// GetOrFetch returns the cached value for key or loads it with fetch.
//
// A fresh entry is returned as is. A stale entry is returned immediately
// and refreshed in the background. Otherwise fetch runs once per key no
// matter how many callers are waiting; every waiter gets the same Result.
// If fetch fails the error is returned to all waiters and nothing is stored.
func (s *Store) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) (Result, error) {
	res := s.Get(ctx, key)
	if res.Found {
		if res.Stale {
			s.refresh(ctx, key, fetch)
		}
		return res, nil
	}

	// The fetch outlives any single waiter; it carries the first caller's
	// values but not its cancellation.
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
		defer cancel()
		return s.fill(fctx, key, fetch)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return Result{Entry: res.Entry}, r.Err
		}
		return r.Val.(Result), nil
	case <-ctx.Done():
		return Result{Entry: res.Entry}, ctx.Err()
	}
}

// Drain blocks until background refreshes have finished.
func (s *Store) Drain() {
	s.bg.Wait()
}

// Sweep drops memory entries past the retention window and returns how
// many were removed. The durable tier expires entries on its own.
func (s *Store) Sweep() int {
	sw, ok := s.fast.(interface{ Sweep(time.Time) int })
	if !ok {
		return 0
	}
	return sw.Sweep(s.now().Add(-s.opts.Retention))
}

// Stats returns lookup counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Stale:     s.stale.Load(),
		Negative:  s.negative.Load(),
		Misses:    s.misses.Load(),
		Fetches:   s.fetches.Load(),
		Refreshes: s.refreshes.Load(),
	}
}

// Durable returns the durable tier, or nil.
func (s *Store) Durable() Tier {
	return s.durable
}

func (s *Store) refresh(ctx context.Context, key string, fetch FetchFunc) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FetchTimeout)
		defer cancel()

		_, err, _ := s.group.Do(key, func() (any, error) {
			return s.fill(rctx, key, fetch)
		})
		s.refreshes.Add(1)
		if err != nil {
			metrics.CacheBackgroundRefreshes.WithLabelValues("error").Inc()
			s.logger.Debug().Err(err).Str("key", key).Msg("Background refresh failed, keeping stale entry")
			return
		}
		metrics.CacheBackgroundRefreshes.WithLabelValues("ok").Inc()
	}()
}

// fill runs inside the singleflight group. A caller that raced the
// previous flight may find the entry already fresh.
func (s *Store) fill(ctx context.Context, key string, fetch FetchFunc) (Result, error) {
	if e, ok := s.lookup(ctx, key); ok && e.FreshAt(s.now()) {
		return s.classify(e), nil
	}

	s.fetches.Add(1)
	f, err := fetch(ctx)
	if err != nil {
		return Result{}, err
	}

	e := s.newEntry(key, f)
	if err := s.write(ctx, e); err != nil {
		return Result{}, err
	}
	for _, k := range f.Invalidate {
		if err := s.Delete(ctx, k); err != nil {
			s.logger.Warn().Err(err).Str("key", k).Msg("Invalidation failed")
		}
	}
	return s.classify(e), nil
}

func (s *Store) lookup(ctx context.Context, key string) (*Entry, bool) {
	e, err := s.fast.Get(ctx, key)
	if err == nil {
		return e, true
	}
	if s.durable == nil {
		return nil, false
	}

	e, err = s.durable.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.durableFailed("get", key, err)
		}
		return nil, false
	}
	_ = s.fast.Put(ctx, e)
	return e, true
}

func (s *Store) classify(e *Entry) Result {
	now := s.now()
	switch {
	case e.FreshAt(now):
		return Result{Payload: e.Payload, Found: true, Negative: e.Negative, Entry: e}
	case s.opts.StaleServe && now.Before(e.ExpiresAt.Add(s.opts.StaleWindow)):
		return Result{Payload: e.Payload, Found: true, Stale: true, Negative: e.Negative, Entry: e}
	default:
		return Result{Entry: e}
	}
}

func (s *Store) newEntry(key string, f Fill) *Entry {
	if f.TTL < MinTTL {
		f.TTL = MinTTL
	}
	now := s.now()
	e := &Entry{
		Key:       key,
		FetchedAt: now,
		ExpiresAt: now.Add(f.TTL),
		Negative:  f.Negative,
		FailCount: f.FailCount,
	}
	if !f.Negative {
		e.Payload = f.Payload
	}
	return e
}

func (s *Store) write(ctx context.Context, e *Entry) error {
	if err := s.fast.Put(ctx, e); err != nil {
		return err
	}
	if s.durable != nil {
		if err := s.durable.Put(ctx, e); err != nil {
			s.durableFailed("put", e.Key, err)
		}
	}
	return nil
}

func (s *Store) durableFailed(op, key string, err error) {
	metrics.CacheDurableErrors.WithLabelValues(op).Inc()
	s.logger.Warn().Err(err).Str("op", op).Str("key", key).Msg("Durable cache operation failed")
}

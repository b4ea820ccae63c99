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
	"testing"
	"time"

	"github.com/tomtom215/consensus/internal/models"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(clock *testClock, opts Options) *Store {
	opts.Clock = clock.Now
	return NewStore(NewMemoryTier(100, nil), nil, opts)
}

func TestStore_FreshExpiredNegative(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(clock, Options{})

	if res := s.Get(ctx, "k"); res.Found {
		t.Fatal("empty store reported a hit")
	}

	_ = s.Put(ctx, "k", []byte("v"), time.Minute)
	res := s.Get(ctx, "k")
	if !res.Hit() || string(res.Payload) != "v" {
		t.Fatalf("Get() = %+v, want fresh hit", res)
	}

	clock.Advance(time.Minute)
	if res := s.Get(ctx, "k"); !res.Hit() {
		t.Errorf("Get() at ExpiresAt = %+v, want fresh hit", res)
	}
	clock.Advance(time.Nanosecond)
	if res := s.Get(ctx, "k"); res.Found {
		t.Error("entry past ExpiresAt must not be served without stale serving")
	}

	_ = s.PutNegative(ctx, "n", time.Hour)
	res = s.Get(ctx, "n")
	if !res.Found || !res.Negative || res.Hit() {
		t.Errorf("negative Get() = %+v", res)
	}

	stats := s.Stats()
	if stats.Hits != 2 || stats.Misses != 2 || stats.Negative != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestStore_NonPositiveTTLClamped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(clock, Options{})

	tests := []struct {
		name string
		put  func(key string, ttl time.Duration) error
	}{
		{"put", func(key string, ttl time.Duration) error { return s.Put(ctx, key, []byte("v"), ttl) }},
		{"negative", func(key string, ttl time.Duration) error { return s.PutNegative(ctx, key, ttl) }},
		{"negative with count", func(key string, ttl time.Duration) error { return s.PutNegativeWithCount(ctx, key, ttl, 2) }},
		{"fill", func(key string, ttl time.Duration) error {
			_, err := s.GetOrFetch(ctx, key, func(context.Context) (Fill, error) {
				return Fill{Payload: []byte("v"), TTL: ttl}, nil
			})
			return err
		}},
	}
	for _, tt := range tests {
		for _, ttl := range []time.Duration{0, -time.Minute} {
			key := tt.name + ttl.String()
			if err := tt.put(key, ttl); err != nil {
				t.Fatalf("%s(%v) error = %v", tt.name, ttl, err)
			}
			res := s.Get(ctx, key)
			if res.Entry == nil || !res.Entry.ExpiresAt.After(res.Entry.FetchedAt) {
				t.Errorf("%s(%v) entry = %+v, want ExpiresAt after FetchedAt", tt.name, ttl, res.Entry)
				continue
			}
			if !res.Found {
				t.Errorf("%s(%v) not served immediately after write", tt.name, ttl)
			}
		}
	}
}

func TestStore_StaleServe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(clock, Options{StaleServe: true, StaleWindow: time.Hour})

	_ = s.Put(ctx, "k", []byte("old"), time.Minute)
	clock.Advance(30 * time.Minute)

	res := s.Get(ctx, "k")
	if !res.Found || !res.Stale || string(res.Payload) != "old" {
		t.Fatalf("Get() inside stale window = %+v", res)
	}

	clock.Advance(time.Hour)
	res = s.Get(ctx, "k")
	if res.Found {
		t.Errorf("Get() past stale window = %+v", res)
	}
	if res.Entry == nil {
		t.Error("retained entry should still be exposed")
	}
}

func TestStore_GetOrFetchStaleRefreshesInBackground(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(clock, Options{StaleServe: true, StaleWindow: time.Hour})

	_ = s.Put(ctx, "k", []byte("old"), time.Minute)
	clock.Advance(2 * time.Minute)

	var calls atomic.Int32
	fetch := func(context.Context) (Fill, error) {
		calls.Add(1)
		return Fill{Payload: []byte("new"), TTL: time.Hour}, nil
	}

	res, err := s.GetOrFetch(ctx, "k", fetch)
	if err != nil {
		t.Fatalf("GetOrFetch() error = %v", err)
	}
	if string(res.Payload) != "old" || !res.Stale {
		t.Errorf("expected stale value served immediately, got %+v", res)
	}

	s.Drain()
	if calls.Load() != 1 {
		t.Errorf("refresh calls = %d, want 1", calls.Load())
	}
	if res := s.Get(ctx, "k"); string(res.Payload) != "new" || res.Stale {
		t.Errorf("after refresh Get() = %+v", res)
	}
}

func TestStore_GetOrFetchCoalesces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(nil, nil, Options{})

	var calls atomic.Int32
	fetch := func(context.Context) (Fill, error) {
		calls.Add(1)
		time.Sleep(100 * time.Millisecond)
		return Fill{Payload: []byte("v"), TTL: time.Hour}, nil
	}

	const callers = 20
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := s.GetOrFetch(ctx, "k", fetch)
			if err != nil {
				errs <- err
				return
			}
			if string(res.Payload) != "v" {
				errs <- errors.New("wrong payload " + string(res.Payload))
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch ran %d times, want 1", n)
	}
}

func TestStore_GetOrFetchErrorNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(nil, nil, Options{})
	boom := errors.New("upstream 503")

	_, err := s.GetOrFetch(ctx, "k", func(context.Context) (Fill, error) {
		return Fill{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrFetch() error = %v, want %v", err, boom)
	}
	if res := s.Get(ctx, "k"); res.Found || res.Entry != nil {
		t.Errorf("failed fetch left an entry: %+v", res)
	}

	res, err := s.GetOrFetch(ctx, "k", func(context.Context) (Fill, error) {
		return Fill{Negative: true, TTL: time.Hour}, nil
	})
	if err != nil || !res.Negative {
		t.Errorf("negative fill = %+v, %v", res, err)
	}
}

func TestStore_GetOrFetchInvalidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(nil, nil, Options{})
	ck := ConsolidatedKey("tt1")
	_ = s.Put(ctx, ck, []byte("{}"), time.Hour)

	_, err := s.GetOrFetch(ctx, SourceKey(models.SourceTMDB, "tt1"), func(context.Context) (Fill, error) {
		return Fill{Payload: []byte("7.1"), TTL: time.Hour, Invalidate: []string{ck}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if res := s.Get(ctx, ck); res.Found {
		t.Error("consolidated entry should be invalidated")
	}
}

func TestStore_GetOrFetchHonoursCallerContext(t *testing.T) {
	t.Parallel()

	s := NewStore(nil, nil, Options{})
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.GetOrFetch(ctx, "slow", func(context.Context) (Fill, error) {
		<-release
		return Fill{TTL: time.Hour}, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetOrFetch() error = %v, want deadline exceeded", err)
	}
}

func TestStore_FailCountSurvivesExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newTestClock()
	s := newTestStore(clock, Options{Retention: 7 * 24 * time.Hour})
	key := ScrapeKey(models.SourceRottenTomatoes, "tt1")

	_ = s.PutNegativeWithCount(ctx, key, time.Hour, 2)
	clock.Advance(2 * time.Hour)

	res := s.Get(ctx, key)
	if res.Found {
		t.Fatal("expired negative must not be served")
	}
	if res.FailCount() != 2 {
		t.Errorf("FailCount() = %d, want 2", res.FailCount())
	}

	clock.Advance(8 * 24 * time.Hour)
	if n := s.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if res := s.Get(ctx, key); res.FailCount() != 0 {
		t.Error("swept entry should be gone")
	}
}

func TestStore_DurablePromotion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	durable := NewMemoryTier(100, nil)
	s := NewStore(NewMemoryTier(100, nil), durable, Options{})
	_ = durable.Put(ctx, &Entry{Key: "k", Payload: []byte("d"), ExpiresAt: time.Now().Add(time.Hour)})

	if res := s.Get(ctx, "k"); string(res.Payload) != "d" {
		t.Fatalf("durable value not found: %+v", res)
	}
	_ = durable.Delete(ctx, "k")
	if res := s.Get(ctx, "k"); !res.Hit() {
		t.Error("durable hit should have been promoted to memory")
	}

	_ = s.Delete(ctx, "k")
	if res := s.Get(ctx, "k"); res.Found {
		t.Error("Delete should clear both tiers")
	}
}

type failingTier struct{}

func (failingTier) Get(context.Context, string) (*Entry, error) { return nil, errors.New("disk gone") }
func (failingTier) Put(context.Context, *Entry) error           { return errors.New("disk gone") }
func (failingTier) Delete(context.Context, string) error        { return errors.New("disk gone") }

func TestStore_DurableFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(nil, failingTier{}, Options{})

	if err := s.Put(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Put() = %v", err)
	}
	if res := s.Get(ctx, "k"); !res.Hit() {
		t.Error("memory tier should still serve")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() = %v", err)
	}
}

func TestNamespace(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		SourceKey(models.SourceTMDB, "tt0944947:1:1"): "src:tmdb",
		ConsolidatedKey("tt1"):                        "consolidated",
		ScrapeKey(models.SourceMetacritic, "tt1"):     "scrape:mc",
		RawKey("omdb", "tt1"):                         "raw:omdb",
		"bare":                                        "bare",
	}
	for key, want := range tests {
		if got := Namespace(key); got != want {
			t.Errorf("Namespace(%q) = %q, want %q", key, got, want)
		}
	}
}

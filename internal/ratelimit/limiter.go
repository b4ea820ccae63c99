// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

// Package ratelimit gates outbound calls per upstream source.
//
// Each source gets a concurrency cap, a random gap between consecutive
// dispatches drawn from [MinDelay, MaxDelay], a bounded admission queue and
// an optional requests-per-second ceiling:
//
//	lim := ratelimit.New(ratelimit.Config{MaxConcurrent: 4, MinDelay: 50 * time.Millisecond, MaxDelay: 150 * time.Millisecond})
//	lim.Register("rt", ratelimit.Config{MaxConcurrent: 1, MinDelay: time.Second, MaxDelay: 3 * time.Second, MaxQueue: 64})
//	err := lim.Execute(ctx, "rt", func(ctx context.Context) error { ... })
//
// The slot is always released when fn returns or panics.
package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/metrics"
)

// ErrQueueFull is returned when a source's admission queue is at capacity.
var ErrQueueFull = errors.New("ratelimit: admission queue full")

const (
	pollStart = 5 * time.Millisecond
	pollMax   = 100 * time.Millisecond
)

// Config is the policy for one source.
type Config struct {
	// MaxConcurrent caps in-flight calls. Default 1.
	MaxConcurrent int `koanf:"max_concurrent" validate:"min=0"`

	// MinDelay and MaxDelay bound the random gap between dispatches.
	MinDelay time.Duration `koanf:"min_delay"`
	MaxDelay time.Duration `koanf:"max_delay"`

	// MaxQueue caps callers waiting for a slot. Zero means unbounded.
	MaxQueue int `koanf:"max_queue" validate:"min=0"`

	// RequestsPerSecond adds a token-bucket ceiling on top of spacing.
	// Zero disables it.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"min=0"`

	// Burst is the token bucket size. Default 1.
	Burst int `koanf:"burst" validate:"min=0"`
}

func (c Config) normalized() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 1
	}
	if c.MinDelay < 0 {
		c.MinDelay = 0
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithRand replaces the jitter source. f must return values in [0, 1).
func WithRand(f func() float64) Option {
	return func(l *Limiter) { l.rand = f }
}

// sourceState is the admission and spacing state for one source.
type sourceState struct {
	mu           sync.Mutex
	cfg          Config
	active       int
	waiting      int
	lastDispatch time.Time
	bucket       *rate.Limiter
}

// Limiter holds per-source state. It is safe for concurrent use.
type Limiter struct {
	mu       sync.RWMutex
	sources  map[string]*sourceState
	defaults Config
	clock    Clock
	rand     func() float64
}

// New creates a Limiter. Sources that were never registered use defaults.
func New(defaults Config, opts ...Option) *Limiter {
	l := &Limiter{
		sources:  make(map[string]*sourceState),
		defaults: defaults.normalized(),
		clock:    realClock{},
		rand:     rand.Float64,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register sets the policy for source, replacing any previous one.
// Calls already admitted keep their slot.
func (l *Limiter) Register(source string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources[source] = newSourceState(cfg.normalized())
}

func newSourceState(cfg Config) *sourceState {
	st := &sourceState{cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		st.bucket = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return st
}

func (l *Limiter) state(source string) *sourceState {
	l.mu.RLock()
	st, ok := l.sources[source]
	l.mu.RUnlock()
	if ok {
		return st
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok = l.sources[source]; ok {
		return st
	}
	st = newSourceState(l.defaults)
	l.sources[source] = st
	return st
}

// Execute runs fn once source admits it and the spacing gap has elapsed.
// It returns ErrQueueFull without running fn when the queue is full, and
// ctx.Err() if ctx ends while waiting.
func (l *Limiter) Execute(ctx context.Context, source string, fn func(context.Context) error) error {
	st := l.state(source)
	start := l.clock.Now()

	if err := l.admit(ctx, source, st); err != nil {
		return err
	}
	defer l.release(source, st)

	if err := l.space(ctx, st); err != nil {
		return err
	}
	if st.bucket != nil {
		if err := st.bucket.Wait(ctx); err != nil {
			return err
		}
	}
	metrics.RateLimitWait.WithLabelValues(source).Observe(l.clock.Now().Sub(start).Seconds())

	return fn(ctx)
}

// Do is Execute for functions returning a value.
func Do[T any](ctx context.Context, l *Limiter, source string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Execute(ctx, source, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// admit takes a concurrency slot, polling with exponential backoff while
// the source is saturated.
func (l *Limiter) admit(ctx context.Context, source string, st *sourceState) error {
	st.mu.Lock()
	if st.active < st.cfg.MaxConcurrent {
		st.active++
		st.mu.Unlock()
		metrics.RateLimitInflight.WithLabelValues(source).Inc()
		return nil
	}
	if st.cfg.MaxQueue > 0 && st.waiting >= st.cfg.MaxQueue {
		st.mu.Unlock()
		metrics.RateLimitQueueFull.WithLabelValues(source).Inc()
		return ErrQueueFull
	}
	st.waiting++
	st.mu.Unlock()
	metrics.RateLimitQueueDepth.WithLabelValues(source).Inc()
	defer metrics.RateLimitQueueDepth.WithLabelValues(source).Dec()

	backoff := pollStart
	for {
		if err := l.clock.Sleep(ctx, backoff); err != nil {
			st.mu.Lock()
			st.waiting--
			st.mu.Unlock()
			return err
		}

		st.mu.Lock()
		if st.active < st.cfg.MaxConcurrent {
			st.active++
			st.waiting--
			st.mu.Unlock()
			metrics.RateLimitInflight.WithLabelValues(source).Inc()
			return nil
		}
		st.mu.Unlock()

		backoff = min(backoff*2, pollMax)
	}
}

func (l *Limiter) release(source string, st *sourceState) {
	st.mu.Lock()
	st.active--
	st.mu.Unlock()
	metrics.RateLimitInflight.WithLabelValues(source).Dec()
}

// space waits until this call's reserved dispatch time.
func (l *Limiter) space(ctx context.Context, st *sourceState) error {
	now := l.clock.Now()
	at := l.reserve(st, now)
	return l.clock.Sleep(ctx, at.Sub(now))
}

// reserve claims the next dispatch time: now, or the previous dispatch
// plus a fresh random gap, whichever is later. Reservations are strictly
// ordered so concurrent callers never share a gap.
func (l *Limiter) reserve(st *sourceState, now time.Time) time.Time {
	st.mu.Lock()
	defer st.mu.Unlock()

	gap := st.cfg.MinDelay
	if spread := st.cfg.MaxDelay - st.cfg.MinDelay; spread > 0 {
		gap += time.Duration(l.rand() * float64(spread))
	}

	at := now
	if !st.lastDispatch.IsZero() {
		if next := st.lastDispatch.Add(gap); next.After(at) {
			at = next
		}
	}
	st.lastDispatch = at
	return at
}

// State is a point-in-time view of one source.
type State struct {
	Active       int       `json:"active"`
	Waiting      int       `json:"waiting"`
	LastDispatch time.Time `json:"last_dispatch"`
}

// Snapshot returns the current state of source.
func (l *Limiter) Snapshot(source string) State {
	st := l.state(source)
	st.mu.Lock()
	defer st.mu.Unlock()
	return State{Active: st.active, Waiting: st.waiting, LastDispatch: st.lastDispatch}
}

// Sources returns the names of every source seen so far, sorted.
func (l *Limiter) Sources() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.sources))
	for name := range l.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromConfig converts a loaded per-source limit.
func FromConfig(c config.LimitConfig) Config {
	return Config{
		MaxConcurrent:     c.MaxConcurrent,
		MinDelay:          c.MinDelay,
		MaxDelay:          c.MaxDelay,
		MaxQueue:          c.MaxQueue,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}
}

// RegisterAll registers every named source with its configured limit,
// falling back to the configured default.
func (l *Limiter) RegisterAll(rc config.RateLimitConfig, names ...string) {
	for _, name := range names {
		l.Register(name, FromConfig(rc.For(name)))
	}
}

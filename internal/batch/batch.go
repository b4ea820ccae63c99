// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

// Package batch fans a list of items out to one source in fixed-size
// windows and gathers whatever comes back.
//
// A window dispatches all of its items at once and waits for every one
// before the next window starts. Failures, timeouts and panics resolve the
// item as absent and never abort the batch.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/metrics"
	"github.com/tomtom215/consensus/internal/models"
)

// FetchFunc loads one item. ok is false when the item has no value.
type FetchFunc[T any] func(ctx context.Context, item models.MediaItem) (value T, ok bool)

// SkipFunc reports items already known to be absent. They are left out of
// the result without taking a slot.
type SkipFunc func(ctx context.Context, item models.MediaItem) bool

// Fetcher holds the pacing shared by every batch.
type Fetcher struct {
	warmup      time.Duration
	window      time.Duration
	itemTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      zerolog.Logger
}

// New returns a Fetcher paced by cfg.
func New(cfg *config.BatchConfig) *Fetcher {
	f := &Fetcher{
		warmup:      cfg.WarmupDelay,
		window:      cfg.WindowDelay,
		itemTimeout: cfg.ItemTimeout,
		sleep:       sleep,
		logger:      logging.WithComponent("batch"),
	}
	if f.itemTimeout <= 0 {
		f.itemTimeout = 20 * time.Second
	}
	return f
}

// Fetch runs fetch for every item, concurrency items at a time, and returns
// the present values keyed by item ID. It returns early with a partial map
// when ctx is done.
func Fetch[T any](ctx context.Context, f *Fetcher, source string, items []models.MediaItem,
	concurrency int, fetch FetchFunc[T], skip SkipFunc) map[string]T {
	results := make(map[string]T, len(items))
	if len(items) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	pending := items
	if skip != nil {
		pending = make([]models.MediaItem, 0, len(items))
		for _, item := range items {
			if skip(ctx, item) {
				metrics.BatchItems.WithLabelValues("skipped").Inc()
				continue
			}
			pending = append(pending, item)
		}
	}

	var mu sync.Mutex
	for start := 0; start < len(pending); start += concurrency {
		delay := f.window
		if start == 0 {
			delay = f.warmup
		}
		if err := f.sleep(ctx, delay); err != nil {
			f.logger.Debug().Str("source", source).Int("remaining", len(pending)-start).Msg("Batch cancelled")
			break
		}

		window := pending[start:min(start+concurrency, len(pending))]
		p := pool.New().WithMaxGoroutines(len(window))
		for _, item := range window {
			p.Go(func() {
				v, ok := fetchOne(ctx, f, source, item, fetch)
				if !ok {
					return
				}
				mu.Lock()
				results[item.ID] = v
				mu.Unlock()
			})
		}
		p.Wait()
	}
	return results
}

type result[T any] struct {
	v        T
	ok       bool
	panicked bool
}

// fetchOne runs fetch under the item timeout. The fetch keeps running in
// the background if it ignores its context; its result is then dropped.
func fetchOne[T any](ctx context.Context, f *Fetcher, source string, item models.MediaItem, fetch FetchFunc[T]) (T, bool) {
	var zero T
	ictx, cancel := context.WithTimeout(ctx, f.itemTimeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				metrics.BatchItems.WithLabelValues("panic").Inc()
				f.logger.Error().Str("source", source).Str("item", item.ID).
					Str("panic", fmt.Sprint(r)).Msg("Item fetch panicked")
				done <- result[T]{panicked: true}
			}
		}()
		v, ok := fetch(ictx, item)
		done <- result[T]{v: v, ok: ok}
	}()

	select {
	case r := <-done:
		switch {
		case r.panicked:
		case r.ok:
			metrics.BatchItems.WithLabelValues("fetched").Inc()
		default:
			metrics.BatchItems.WithLabelValues("absent").Inc()
		}
		return r.v, r.ok
	case <-ictx.Done():
		metrics.BatchItems.WithLabelValues("timeout").Inc()
		f.logger.Warn().Str("source", source).Str("item", item.ID).
			Dur("timeout", f.itemTimeout).Msg("Item fetch timed out")
		return zero, false
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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

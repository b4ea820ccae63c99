// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

// Package resolver answers "what is the rating of each of these items" for
// a whole catalog page at once.
//
// Resolve maps foreign ids onto IMDb ids, serves fresh consolidated hits,
// runs every source's batch concurrently for the rest, fills missing Rotten
// Tomatoes and Metacritic scores for series from the scrapers, and finally
// consolidates. Upstream failures only ever make an item absent.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/tomtom215/consensus/internal/batch"
	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/consolidate"
	"github.com/tomtom215/consensus/internal/idmap"
	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/scraper"
	"github.com/tomtom215/consensus/internal/sources"
)

// Source is a client together with how many of its lookups may run at once.
type Source struct {
	Client      sources.Client
	Concurrency int
}

// Options wires a Resolver.
type Options struct {
	Store   *cache.Store
	Engine  *consolidate.Engine
	Fetcher *batch.Fetcher

	// Mapper translates foreign ids. Nil leaves them untranslated.
	Mapper idmap.Mapper

	Sources  []Source
	Scrapers []*scraper.Scraper

	// ScrapeConcurrency bounds each scraper's batch. Default 1.
	ScrapeConcurrency int

	// Timeout bounds one Resolve call. Zero means no extra bound.
	Timeout time.Duration
}

// Resolver is safe for concurrent use.
type Resolver struct {
	opts   Options
	logger zerolog.Logger
}

func New(opts Options) *Resolver {
	if opts.ScrapeConcurrency <= 0 {
		opts.ScrapeConcurrency = 1
	}
	return &Resolver{opts: opts, logger: logging.WithComponent("resolver")}
}

// Resolve returns consolidated ratings keyed by the caller's item IDs.
// Items with no data anywhere are left out.
func (r *Resolver) Resolve(ctx context.Context, items []models.MediaItem) map[string]*models.ConsolidatedRating {
	out := make(map[string]*models.ConsolidatedRating, len(items))
	if len(items) == 0 {
		return out
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	if logging.BatchIDFromContext(ctx) == "" {
		ctx = logging.ContextWithBatchID(ctx, logging.NewBatchID())
	}
	start := time.Now()

	prepared := r.prepare(ctx, items)

	var pending []models.MediaItem
	for _, item := range prepared {
		if cr, ok := r.opts.Engine.Cached(ctx, item); ok {
			out[item.ID] = cr
			continue
		}
		pending = append(pending, item)
	}

	if len(pending) > 0 {
		r.fetchSources(ctx, pending)
		r.scrape(ctx, pending)
		for _, item := range pending {
			cr, err := r.opts.Engine.Consolidate(ctx, item)
			if err != nil {
				if !errors.Is(err, consolidate.ErrNotFound) {
					logging.Ctx(ctx).Warn().Err(err).Str("item", item.ID).Msg("Consolidation failed")
				}
				continue
			}
			out[item.ID] = cr
		}
	}

	logging.Ctx(ctx).Info().
		Int("items", len(prepared)).
		Int("cached", len(prepared)-len(pending)).
		Int("rated", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("Batch resolved")
	return out
}

// prepare normalizes items, drops duplicate IDs and maps foreign ids.
func (r *Resolver) prepare(ctx context.Context, items []models.MediaItem) []models.MediaItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]models.MediaItem, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		item = item.Normalize()
		if malID, ok := idmap.MALID(item.ID); ok && item.MALID == "" {
			item.MALID = malID
		}
		if item.CanonicalID == "" && idmap.IsForeign(item.ID) && r.opts.Mapper != nil {
			if canonical, ok := r.opts.Mapper.CanonicalID(ctx, item.ID); ok {
				item.CanonicalID = canonical
			}
		}
		out = append(out, item)
	}
	return out
}

// fetchSources runs every source's batch at once. Each batch only sees the
// items its client applies to.
func (r *Resolver) fetchSources(ctx context.Context, items []models.MediaItem) {
	var wg conc.WaitGroup
	for _, src := range r.opts.Sources {
		applicable := filter(items, src.Client.Applies)
		if len(applicable) == 0 {
			continue
		}
		wg.Go(func() {
			batch.Fetch(ctx, r.opts.Fetcher, src.Client.Name(), applicable, src.Concurrency,
				func(ctx context.Context, item models.MediaItem) (struct{}, bool) {
					out := src.Client.Fetch(ctx, item)
					return struct{}{}, out.Status == sources.StatusFound
				},
				src.Client.KnownAbsent,
			)
		})
	}
	wg.Wait()
}

// scrape fills missing rt and mc values for series.
func (r *Resolver) scrape(ctx context.Context, items []models.MediaItem) {
	var wg conc.WaitGroup
	for _, s := range r.opts.Scrapers {
		missing := filter(items, func(item models.MediaItem) bool {
			if item.Type != models.MediaTypeSeries || item.Title == "" {
				return false
			}
			_, _, ok := sources.ReadValue(ctx, r.opts.Store, s.Source(), item.Key())
			return !ok
		})
		if len(missing) == 0 {
			continue
		}
		wg.Go(func() {
			batch.Fetch(ctx, r.opts.Fetcher, string(s.Source()), missing, r.opts.ScrapeConcurrency,
				func(ctx context.Context, item models.MediaItem) (struct{}, bool) {
					return struct{}{}, s.Scrape(ctx, item).Result == scraper.Success
				},
				s.KnownAbsent,
			)
		})
	}
	wg.Wait()
}

func filter(items []models.MediaItem, keep func(models.MediaItem) bool) []models.MediaItem {
	var out []models.MediaItem
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

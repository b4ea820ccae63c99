// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

// Package consolidate merges the cached source values for an item into one
// rating and a display color.
//
// The rating is the mean of the normalized 0 to 10 values, rounded to two
// decimals. Every source counts equally unless a Weigher says otherwise.
// Results are cached under the item's consolidated key and dropped whenever
// a source slot for the item is refreshed.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/metrics"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/sources"
)

// ErrNotFound means no source holds a value for the item.
var ErrNotFound = errors.New("consolidate: no source data")

// Weigher assigns a weight to one source value. Values with a weight of
// zero or less are left out.
type Weigher interface {
	Weight(v models.SourceValue) float64
}

// WeigherFunc adapts a function to Weigher.
type WeigherFunc func(v models.SourceValue) float64

func (f WeigherFunc) Weight(v models.SourceValue) float64 { return f(v) }

// EqualWeights gives every source the same say.
var EqualWeights Weigher = WeigherFunc(func(models.SourceValue) float64 { return 1 })

// Option configures an Engine.
type Option func(*Engine)

// WithWeigher replaces EqualWeights.
func WithWeigher(w Weigher) Option {
	return func(e *Engine) { e.weigher = w }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSources limits which slots are read. Defaults to models.AllSources.
func WithSources(srcs ...models.Source) Option {
	return func(e *Engine) { e.sources = srcs }
}

// Engine computes and caches consolidated ratings.
type Engine struct {
	store       *cache.Store
	sources     []models.Source
	weigher     Weigher
	ttl         time.Duration
	negativeTTL time.Duration
	now         func() time.Time
	group       singleflight.Group
	logger      zerolog.Logger
}

// New returns an Engine reading slots from store.
func New(store *cache.Store, cfg *config.ConsolidateConfig, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		sources:     models.AllSources,
		weigher:     EqualWeights,
		ttl:         cfg.TTL,
		negativeTTL: cfg.NegativeTTL,
		now:         time.Now,
		logger:      logging.WithComponent("consolidate"),
	}
	if e.ttl <= 0 {
		e.ttl = 12 * time.Hour
	}
	if e.negativeTTL <= 0 {
		e.negativeTTL = time.Hour
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Consolidate returns the item's consolidated rating. A fresh cached result
// is returned as is; otherwise it is recomputed from the source slots.
// ErrNotFound means no source has data.
func (e *Engine) Consolidate(ctx context.Context, item models.MediaItem) (*models.ConsolidatedRating, error) {
	key := cache.ConsolidatedKey(item.Key())

	if r, ok := e.Cached(ctx, item); ok {
		return r, nil
	}
	if res := e.store.Get(ctx, key); res.Found && res.Negative && !res.Stale {
		return nil, ErrNotFound
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.compute(ctx, item, key)
	})
	if err != nil {
		return nil, err
	}
	r := *v.(*models.ConsolidatedRating)
	return &r, nil
}

// Cached returns a fresh cached rating for item without recomputing.
func (e *Engine) Cached(ctx context.Context, item models.MediaItem) (*models.ConsolidatedRating, bool) {
	res := e.store.Get(ctx, cache.ConsolidatedKey(item.Key()))
	if !res.Hit() || res.Stale {
		return nil, false
	}
	var r models.ConsolidatedRating
	if err := json.Unmarshal(res.Payload, &r); err != nil {
		return nil, false
	}
	return &r, true
}

func (e *Engine) compute(ctx context.Context, item models.MediaItem, key string) (*models.ConsolidatedRating, error) {
	var values []models.SourceValue
	for _, src := range e.sources {
		if v, _, ok := sources.ReadValue(ctx, e.store, src, item.Key()); ok {
			values = append(values, v)
		}
	}

	mean, used, ok := Compute(values, e.weigher)
	if !ok {
		metrics.RecordConsolidation("", 0)
		if err := e.store.PutNegative(ctx, key, e.negativeTTL); err != nil {
			e.logger.Warn().Err(err).Str("item", item.Key()).Msg("Failed to cache empty consolidation")
		}
		return nil, ErrNotFound
	}

	r := &models.ConsolidatedRating{
		ItemID:      item.Key(),
		Sources:     used,
		Rating:      Round(mean),
		SourceCount: len(used),
		Color:       ColorFor(mean),
		ComputedAt:  e.now().UTC(),
		TTL:         e.ttl,
	}
	metrics.RecordConsolidation(string(r.Color), r.SourceCount)

	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode consolidated rating: %w", err)
	}
	if err := e.store.Put(ctx, key, payload, e.ttl); err != nil {
		e.logger.Warn().Err(err).Str("item", item.Key()).Msg("Failed to cache consolidated rating")
	}
	e.logger.Debug().
		Str("item", item.Key()).
		Float64("rating", r.Rating).
		Int("sources", r.SourceCount).
		Msg("Consolidated rating computed")
	return r, nil
}

// Compute returns the unrounded weighted mean of values and the values that
// contributed. ok is false when nothing contributed. Buckets are taken from
// this mean; Round is applied only to the reported rating.
func Compute(values []models.SourceValue, w Weigher) (rating float64, used []models.SourceValue, ok bool) {
	if w == nil {
		w = EqualWeights
	}
	var sum, total float64
	for _, v := range values {
		weight := w.Weight(v)
		if weight <= 0 || math.IsNaN(v.RawValue) {
			continue
		}
		sum += weight * v.RawValue
		total += weight
		used = append(used, v)
	}
	if total == 0 {
		return 0, nil, false
	}
	// Snap away float noise so 8.1 and 7.9 average to exactly 8.
	return math.Round(sum/total*1e9) / 1e9, used, true
}

// Round rounds a rating to two decimals for display.
func Round(rating float64) float64 {
	return math.Round(rating*100) / 100
}

// ColorFor maps a 0 to 10 rating onto its display bucket.
func ColorFor(rating float64) models.Color {
	switch {
	case rating >= 8:
		return models.ColorExcellent
	case rating >= 7:
		return models.ColorGreat
	case rating >= 6:
		return models.ColorGood
	case rating >= 5:
		return models.ColorOkay
	case rating >= 4:
		return models.ColorMediocre
	default:
		return models.ColorPoor
	}
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package sources

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/consensus/internal/database"
	"github.com/tomtom215/consensus/internal/models"
)

// MirrorStore is the part of the local mirror the client reads.
type MirrorStore interface {
	LookupRating(ctx context.Context, imdbID string) (database.Rating, error)
	LookupEpisodeRating(ctx context.Context, seriesID string, season, episode int) (database.Rating, error)
}

// LocalMirror reads IMDb ratings from the DuckDB mirror.
type LocalMirror struct {
	base
	db MirrorStore
}

// NewLocalMirror returns the mirror client. It has no breaker or pacing:
// the mirror is local and a failed query is retried on the next request.
func NewLocalMirror(db MirrorStore, timeout time.Duration, policy Policy, deps Deps) *LocalMirror {
	deps.Limiter = nil
	return &LocalMirror{
		base: newBase(string(models.SourceIMDb), timeout, policy, deps, false),
		db:   db,
	}
}

func (c *LocalMirror) Name() string { return c.name }

func (c *LocalMirror) Sources() []models.Source {
	return []models.Source{models.SourceIMDb}
}

// Applies accepts any item with an IMDb id.
func (c *LocalMirror) Applies(item models.MediaItem) bool {
	return models.IsIMDbID(item.IMDbID())
}

func (c *LocalMirror) Fetch(ctx context.Context, item models.MediaItem) Outcome {
	if !c.Applies(item) {
		c.log.LogSkipped(ctx, item.Key(), "no imdb id")
		return Outcome{Status: StatusSkipped}
	}
	return c.fetchSlot(ctx, models.SourceIMDb, item, func(ctx context.Context) (models.SourceValue, error) {
		var (
			r   database.Rating
			err error
		)
		if item.IsEpisodeRef() {
			r, err = c.db.LookupEpisodeRating(ctx, item.IMDbID(), item.Season, item.Episode)
		} else {
			r, err = c.db.LookupRating(ctx, item.IMDbID())
		}
		if errors.Is(err, database.ErrNotFound) {
			return models.SourceValue{}, ErrNotFound
		}
		if err != nil {
			return models.SourceValue{}, transient("mirror query: %v", err)
		}
		return models.NewSourceValue(models.SourceIMDb, r.Average, models.Scale10, models.Votes(r.Votes), models.OriginMirror, c.now()), nil
	})
}

func (c *LocalMirror) KnownAbsent(ctx context.Context, item models.MediaItem) bool {
	return c.negativeFor(ctx, cacheKey(models.SourceIMDb, item))
}

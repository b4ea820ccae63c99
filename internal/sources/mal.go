// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/models"
)

// MAL reads MyAnimeList scores through the Jikan REST API. It only applies
// to items the resolver has mapped to a MAL id.
type MAL struct {
	base
	http    *requester
	baseURL string
}

func NewMAL(cfg *config.UpstreamConfig, policy Policy, deps Deps) *MAL {
	c := &MAL{
		base:    newBase(string(models.SourceMAL), cfg.Timeout, policy, deps, true),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
	c.http = c.requester(deps)
	return c
}

type jikanAnimeResponse struct {
	Data struct {
		MALID    int64    `json:"mal_id"`
		Score    *float64 `json:"score"`
		ScoredBy int      `json:"scored_by"`
	} `json:"data"`
}

func (c *MAL) Name() string { return c.name }

func (c *MAL) Sources() []models.Source {
	return []models.Source{models.SourceMAL}
}

func (c *MAL) Applies(item models.MediaItem) bool {
	return item.MALID != ""
}

func (c *MAL) Fetch(ctx context.Context, item models.MediaItem) Outcome {
	if !c.Applies(item) {
		return Outcome{Status: StatusSkipped}
	}
	return c.fetchSlot(ctx, models.SourceMAL, item, func(ctx context.Context) (models.SourceValue, error) {
		var resp jikanAnimeResponse
		if err := c.http.getJSON(ctx, c.baseURL+"/anime/"+url.PathEscape(item.MALID), &resp); err != nil {
			return models.SourceValue{}, err
		}
		// Unaired and unscored titles come back with a null score.
		if resp.Data.Score == nil || *resp.Data.Score <= 0 {
			return models.SourceValue{}, ErrNotFound
		}
		return models.NewSourceValue(models.SourceMAL, *resp.Data.Score, models.Scale10,
			models.Votes(resp.Data.ScoredBy), models.OriginAPI, c.now()), nil
	})
}

func (c *MAL) KnownAbsent(ctx context.Context, item models.MediaItem) bool {
	return c.Applies(item) && c.negativeFor(ctx, cacheKey(models.SourceMAL, item))
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/models"
)

// TMDB looks titles up by IMDb id through /find.
type TMDB struct {
	base
	http    *requester
	baseURL string
	apiKey  string
}

// NewTMDB returns a TMDB client. A v4 read access token (a JWT) is sent as
// a bearer token; a v3 key goes in the api_key query parameter.
func NewTMDB(cfg *config.UpstreamConfig, policy Policy, deps Deps) *TMDB {
	c := &TMDB{
		base:    newBase(string(models.SourceTMDB), cfg.Timeout, policy, deps, true),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
	}
	c.http = c.requester(deps)
	if strings.HasPrefix(c.apiKey, "eyJ") {
		c.http.header = http.Header{"Authorization": []string{"Bearer " + c.apiKey}}
	}
	return c
}

type tmdbRated struct {
	ID            int64   `json:"id"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	ShowID        int64   `json:"show_id"`
	SeasonNumber  int     `json:"season_number"`
	EpisodeNumber int     `json:"episode_number"`
}

type tmdbFindResponse struct {
	MovieResults     []tmdbRated `json:"movie_results"`
	TVResults        []tmdbRated `json:"tv_results"`
	TVEpisodeResults []tmdbRated `json:"tv_episode_results"`
}

func (c *TMDB) Name() string { return c.name }

func (c *TMDB) Sources() []models.Source {
	return []models.Source{models.SourceTMDB}
}

func (c *TMDB) Applies(item models.MediaItem) bool {
	return models.IsIMDbID(item.IMDbID())
}

func (c *TMDB) Fetch(ctx context.Context, item models.MediaItem) Outcome {
	if !c.Applies(item) {
		c.log.LogSkipped(ctx, item.Key(), "no imdb id")
		return Outcome{Status: StatusSkipped}
	}
	return c.fetchSlot(ctx, models.SourceTMDB, item, func(ctx context.Context) (models.SourceValue, error) {
		r, err := c.lookup(ctx, item)
		if err != nil {
			return models.SourceValue{}, err
		}
		if r.VoteCount == 0 {
			return models.SourceValue{}, ErrNotFound
		}
		return models.NewSourceValue(models.SourceTMDB, r.VoteAverage, models.Scale10, models.Votes(r.VoteCount), models.OriginAPI, c.now()), nil
	})
}

func (c *TMDB) KnownAbsent(ctx context.Context, item models.MediaItem) bool {
	return c.negativeFor(ctx, cacheKey(models.SourceTMDB, item))
}

func (c *TMDB) lookup(ctx context.Context, item models.MediaItem) (tmdbRated, error) {
	var found tmdbFindResponse
	if err := c.http.getJSON(ctx, c.endpoint("/find/"+url.PathEscape(item.IMDbID()), url.Values{"external_source": {"imdb_id"}}), &found); err != nil {
		return tmdbRated{}, err
	}

	if item.IsEpisodeRef() {
		if len(found.TVResults) == 0 {
			return tmdbRated{}, ErrNotFound
		}
		var ep tmdbRated
		path := fmt.Sprintf("/tv/%d/season/%d/episode/%d", found.TVResults[0].ID, item.Season, item.Episode)
		if err := c.http.getJSON(ctx, c.endpoint(path, nil), &ep); err != nil {
			return tmdbRated{}, err
		}
		return ep, nil
	}

	r, ok := pickResult(item.Type, found)
	if !ok {
		return tmdbRated{}, ErrNotFound
	}
	return r, nil
}

// pickResult takes the first result of the list matching the media type,
// falling back to the other lists since catalogs mislabel types.
func pickResult(t models.MediaType, f tmdbFindResponse) (tmdbRated, bool) {
	order := [][]tmdbRated{f.MovieResults, f.TVResults, f.TVEpisodeResults}
	switch t {
	case models.MediaTypeSeries:
		order = [][]tmdbRated{f.TVResults, f.MovieResults, f.TVEpisodeResults}
	case models.MediaTypeEpisode:
		order = [][]tmdbRated{f.TVEpisodeResults, f.TVResults, f.MovieResults}
	}
	for _, list := range order {
		if len(list) > 0 {
			return list[0], true
		}
	}
	return tmdbRated{}, false
}

func (c *TMDB) endpoint(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.apiKey != "" && c.http.header == nil {
		q.Set("api_key", c.apiKey)
	}
	u := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

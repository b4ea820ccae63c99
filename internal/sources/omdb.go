// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/models"
)

// OMDB reads the Rotten Tomatoes and Metacritic scores OMDb aggregates.
//
// One response fills two slots. The parsed pair is cached under a raw key
// so a later request can refill an evicted slot without another call, and
// each slot is then written positively or negatively on its own. A slot
// that already holds a fresh value (for example a scraped one) is left
// alone when OMDb has nothing for it.
type OMDB struct {
	base
	http    *requester
	baseURL string
	apiKey  string
}

// NewOMDB returns an OMDb client.
func NewOMDB(cfg *config.UpstreamConfig, policy Policy, deps Deps) *OMDB {
	c := &OMDB{
		base:    newBase("omdb", cfg.Timeout, policy, deps, true),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
	}
	c.http = c.requester(deps)
	return c
}

type omdbResponse struct {
	Response  string `json:"Response"`
	Error     string `json:"Error"`
	Metascore string `json:"Metascore"`
	Ratings   []struct {
		Source string `json:"Source"`
		Value  string `json:"Value"`
	} `json:"Ratings"`
}

// omdbScores is the cached form of one response, on native 0 to 100 scales.
type omdbScores struct {
	RT *float64 `json:"rt,omitempty"`
	MC *float64 `json:"mc,omitempty"`
}

func (s omdbScores) get(src models.Source) *float64 {
	if src == models.SourceRottenTomatoes {
		return s.RT
	}
	return s.MC
}

func (c *OMDB) Name() string { return c.name }

func (c *OMDB) Sources() []models.Source {
	return []models.Source{models.SourceRottenTomatoes, models.SourceMetacritic}
}

func (c *OMDB) Applies(item models.MediaItem) bool {
	return models.IsIMDbID(item.IMDbID())
}

func (c *OMDB) Fetch(ctx context.Context, item models.MediaItem) Outcome {
	if !c.Applies(item) {
		c.log.LogSkipped(ctx, item.Key(), "no imdb id")
		return Outcome{Status: StatusSkipped}
	}
	if out, ok := c.fromSlots(ctx, item); ok {
		return out
	}

	var fetched atomic.Bool
	res, err := c.store.GetOrFetch(ctx, cache.RawKey(c.name, item.Key()), func(ctx context.Context) (cache.Fill, error) {
		fetched.Store(true)
		start := c.now()
		var scores omdbScores
		err := c.call(ctx, func(ctx context.Context) error {
			var err error
			scores, err = c.lookup(ctx, item)
			return err
		})
		invalidate := []string{cache.ConsolidatedKey(item.Key())}
		switch {
		case err == nil:
			payload, merr := json.Marshal(scores)
			if merr != nil {
				return cache.Fill{}, merr
			}
			if scores.RT != nil {
				c.log.LogFetched(ctx, item.Key(), *scores.RT, c.now().Sub(start))
			}
			return cache.Fill{Payload: payload, TTL: c.policy.PositiveTTL, Invalidate: invalidate}, nil
		case errors.Is(err, ErrNotFound):
			c.log.LogNotFound(ctx, item.Key())
			return cache.Fill{Negative: true, TTL: c.policy.NegativeTTL, Invalidate: invalidate}, nil
		default:
			return cache.Fill{}, err
		}
	})
	if err != nil {
		return c.transientOutcome(ctx, item, err)
	}
	return c.settle(ctx, item, res, !fetched.Load())
}

// KnownAbsent is true when both slots are settled negative.
func (c *OMDB) KnownAbsent(ctx context.Context, item models.MediaItem) bool {
	for _, src := range c.Sources() {
		if !c.negativeFor(ctx, cacheKey(src, item)) {
			return false
		}
	}
	return true
}

// fromSlots answers from the slot entries when both are fresh.
func (c *OMDB) fromSlots(ctx context.Context, item models.MediaItem) (Outcome, bool) {
	var values []models.SourceValue
	for _, src := range c.Sources() {
		res := c.store.Get(ctx, cacheKey(src, item))
		if !res.Found || res.Stale {
			return Outcome{}, false
		}
		if res.Negative {
			continue
		}
		v, err := decodeValue(res.Payload)
		if err != nil {
			return Outcome{}, false
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return Outcome{Status: StatusNotFound, Cached: true}, true
	}
	return Outcome{Status: StatusFound, Values: values, Cached: true}, true
}

// settle writes the slot entries for a raw result and builds the outcome.
func (c *OMDB) settle(ctx context.Context, item models.MediaItem, res cache.Result, cached bool) Outcome {
	ttl := c.policy.PositiveTTL
	if res.Entry != nil {
		ttl = max(res.Entry.ExpiresAt.Sub(c.now()), time.Minute)
	}

	var scores omdbScores
	if !res.Negative {
		if err := json.Unmarshal(res.Payload, &scores); err != nil {
			return Outcome{Status: StatusTransient, Err: fmt.Errorf("decode cached omdb scores: %w", err)}
		}
	}

	fetchedAt := c.now()
	if res.Entry != nil {
		fetchedAt = res.Entry.FetchedAt
	}

	var values []models.SourceValue
	for _, src := range c.Sources() {
		key := cacheKey(src, item)
		native := scores.get(src)
		slot := c.store.Get(ctx, key)
		settled := slot.Found && !slot.Stale

		if native == nil {
			if !settled {
				if err := c.store.PutNegative(ctx, key, ttl); err != nil {
					c.log.LogTransient(ctx, item.Key(), err)
				}
			}
			continue
		}

		v := models.NewSourceValue(src, *native, models.Scale100, nil, models.OriginAPI, fetchedAt)
		values = append(values, v)
		if !settled || slot.Negative {
			if err := WriteValue(ctx, c.store, item.Key(), v, ttl); err != nil {
				c.log.LogTransient(ctx, item.Key(), err)
			}
		}
	}

	if len(values) == 0 {
		return Outcome{Status: StatusNotFound, Cached: cached}
	}
	return Outcome{Status: StatusFound, Values: values, Cached: cached}
}

func (c *OMDB) lookup(ctx context.Context, item models.MediaItem) (omdbScores, error) {
	q := url.Values{"apikey": {c.apiKey}, "i": {item.IMDbID()}}
	if item.IsEpisodeRef() {
		q.Set("Season", strconv.Itoa(item.Season))
		q.Set("Episode", strconv.Itoa(item.Episode))
	}

	var resp omdbResponse
	if err := c.http.getJSON(ctx, c.baseURL+"/?"+q.Encode(), &resp); err != nil {
		return omdbScores{}, err
	}
	return parseOMDB(resp)
}

// parseOMDB maps an OMDb body onto scores. OMDb reports errors with a 200
// and Response "False".
func parseOMDB(resp omdbResponse) (omdbScores, error) {
	if strings.EqualFold(resp.Response, "False") {
		msg := strings.ToLower(resp.Error)
		switch {
		case strings.Contains(msg, "not found"), strings.Contains(msg, "incorrect imdb id"):
			return omdbScores{}, ErrNotFound
		case strings.Contains(msg, "limit reached"):
			return omdbScores{}, &RateLimitedError{Source: "omdb"}
		default:
			return omdbScores{}, fmt.Errorf("omdb error: %s", resp.Error)
		}
	}

	var s omdbScores
	for _, r := range resp.Ratings {
		switch r.Source {
		case "Rotten Tomatoes":
			s.RT = parseScore(strings.TrimSuffix(r.Value, "%"))
		case "Metacritic":
			s.MC = parseScore(strings.TrimSuffix(r.Value, "/100"))
		}
	}
	if s.MC == nil {
		s.MC = parseScore(resp.Metascore)
	}
	if s.RT == nil && s.MC == nil {
		return s, ErrNotFound
	}
	return s, nil
}

// parseScore parses a 0 to 100 score, nil for "N/A" or junk.
func parseScore(v string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 || f > 100 {
		return nil
	}
	return &f
}

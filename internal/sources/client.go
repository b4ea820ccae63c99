// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/metrics"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/ratelimit"
)

// Status is the terminal state of one client lookup.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusTransient
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusTransient:
		return "transient"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is what a client returns for one item.
type Outcome struct {
	Status Status

	// Values holds one value per source slot the client filled. OMDB can
	// fill two.
	Values []models.SourceValue

	// Err is the cause of a Transient outcome, for logging only.
	Err error

	// Cached is true when no upstream call was made.
	Cached bool
}

// Value returns the first value, if any.
func (o Outcome) Value() (models.SourceValue, bool) {
	if len(o.Values) == 0 {
		return models.SourceValue{}, false
	}
	return o.Values[0], true
}

// Client is one rating upstream.
type Client interface {
	// Name identifies the upstream for rate limiting, breakers and logs.
	Name() string

	// Sources lists the slots the client fills.
	Sources() []models.Source

	// Applies reports whether the client can look item up at all.
	Applies(item models.MediaItem) bool

	// Fetch returns the item's value, consulting the cache first.
	Fetch(ctx context.Context, item models.MediaItem) Outcome

	// KnownAbsent reports whether every slot holds a fresh negative entry,
	// so a batch can skip the item without a network slot.
	KnownAbsent(ctx context.Context, item models.MediaItem) bool
}

// Policy holds the settings shared by every client.
type Policy struct {
	PositiveTTL     time.Duration
	NegativeTTL     time.Duration
	UserAgent       string
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// PolicyFrom builds a Policy from configuration.
func PolicyFrom(cfg *config.SourcesConfig) Policy {
	return Policy{
		PositiveTTL:     cfg.PositiveTTL,
		NegativeTTL:     cfg.NegativeTTL,
		UserAgent:       cfg.UserAgent,
		BreakerFailures: cfg.BreakerFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}
}

func (p Policy) withDefaults() Policy {
	if p.PositiveTTL <= 0 {
		p.PositiveTTL = 7 * 24 * time.Hour
	}
	if p.NegativeTTL <= 0 {
		p.NegativeTTL = p.PositiveTTL
	}
	return p
}

// Deps are the shared collaborators of every client. Limiter may be nil
// for upstreams that need no pacing (the local mirror).
type Deps struct {
	Store      *cache.Store
	Limiter    *ratelimit.Limiter
	HTTPClient *http.Client
	Clock      func() time.Time
}

// base implements the cache-first lookup shared by the clients.
type base struct {
	name    string
	store   *cache.Store
	limiter *ratelimit.Limiter
	breaker *Breaker
	timeout time.Duration
	policy  Policy
	now     func() time.Time
	log     *logging.UpstreamLogger
}

func newBase(name string, timeout time.Duration, policy Policy, deps Deps, withBreaker bool) base {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	policy = policy.withDefaults()

	b := base{
		name:    name,
		store:   deps.Store,
		limiter: deps.Limiter,
		timeout: timeout,
		policy:  policy,
		now:     now,
		log:     logging.NewUpstreamLogger("sources", name),
	}
	if withBreaker {
		b.breaker = NewBreaker(name, policy.BreakerFailures, policy.BreakerTimeout)
	}
	return b
}

func (b *base) requester(deps Deps) *requester {
	hc := deps.HTTPClient
	if hc == nil {
		hc = NewHTTPClient()
	}
	return &requester{hc: hc, source: b.name, userAgent: b.policy.UserAgent, now: b.now}
}

// call runs one upstream request under the breaker, the rate limiter and
// the client's timeout, and records its outcome.
func (b *base) call(ctx context.Context, fn func(ctx context.Context) error) error {
	run := func() error {
		limited := func(ctx context.Context) error {
			cctx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()
			return fn(cctx)
		}
		if b.limiter == nil {
			return limited(ctx)
		}
		return b.limiter.Execute(ctx, b.name, limited)
	}

	var err error
	if b.breaker != nil {
		err = b.breaker.Execute(run)
	} else {
		err = run()
	}
	metrics.RecordUpstream(b.name, failure(err))
	return err
}

// fetchSlot is the whole lookup for a client that fills a single slot.
func (b *base) fetchSlot(ctx context.Context, src models.Source, item models.MediaItem,
	load func(ctx context.Context) (models.SourceValue, error)) Outcome {
	key := cacheKey(src, item)
	invalidate := []string{cache.ConsolidatedKey(item.Key())}
	start := b.now()
	var fetched atomic.Bool // set by a background refresh too

	res, err := b.store.GetOrFetch(ctx, key, func(ctx context.Context) (cache.Fill, error) {
		fetched.Store(true)
		var v models.SourceValue
		err := b.call(ctx, func(ctx context.Context) error {
			var err error
			v, err = load(ctx)
			return err
		})
		switch {
		case err == nil:
			payload, merr := json.Marshal(v)
			if merr != nil {
				return cache.Fill{}, merr
			}
			b.log.LogFetched(ctx, item.Key(), v.RawValue, b.now().Sub(start))
			return cache.Fill{Payload: payload, TTL: b.policy.PositiveTTL, Invalidate: invalidate}, nil
		case errors.Is(err, ErrNotFound):
			b.log.LogNotFound(ctx, item.Key())
			return cache.Fill{Negative: true, TTL: b.policy.NegativeTTL, Invalidate: invalidate}, nil
		default:
			return cache.Fill{}, err
		}
	})
	if err != nil {
		return b.transientOutcome(ctx, item, err)
	}
	return slotOutcome(res, !fetched.Load())
}

func slotOutcome(res cache.Result, cached bool) Outcome {
	if res.Negative {
		return Outcome{Status: StatusNotFound, Cached: cached}
	}
	v, err := decodeValue(res.Payload)
	if err != nil {
		return Outcome{Status: StatusTransient, Err: err}
	}
	return Outcome{Status: StatusFound, Values: []models.SourceValue{v}, Cached: cached}
}

func (b *base) transientOutcome(ctx context.Context, item models.MediaItem, err error) Outcome {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		b.log.LogRateLimited(ctx, item.Key(), rl.RetryAfter)
	} else {
		b.log.LogTransient(ctx, item.Key(), err)
	}
	return Outcome{Status: StatusTransient, Err: err}
}

// negativeFor reports whether key holds a fresh negative entry.
func (b *base) negativeFor(ctx context.Context, key string) bool {
	res := b.store.Get(ctx, key)
	return res.Found && res.Negative && !res.Stale
}

func decodeValue(payload []byte) (models.SourceValue, error) {
	var v models.SourceValue
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("decode cached value: %w", err)
	}
	return v, nil
}

// ReadValue returns the cached value in src's slot for itemKey. Found is
// false for misses and negative entries.
func ReadValue(ctx context.Context, store *cache.Store, src models.Source, itemKey string) (models.SourceValue, cache.Result, bool) {
	res := store.Get(ctx, cache.SourceKey(src, itemKey))
	if !res.Hit() {
		return models.SourceValue{}, res, false
	}
	v, err := decodeValue(res.Payload)
	if err != nil {
		return models.SourceValue{}, res, false
	}
	return v, res, true
}

// WriteValue stores v in its source slot and drops the item's consolidated
// entry so the next consolidation sees it.
func WriteValue(ctx context.Context, store *cache.Store, itemKey string, v models.SourceValue, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, cache.SourceKey(v.Source, itemKey), payload, ttl); err != nil {
		return err
	}
	return store.Delete(ctx, cache.ConsolidatedKey(itemKey))
}

func cacheKey(src models.Source, item models.MediaItem) string {
	return cache.SourceKey(src, item.Key())
}

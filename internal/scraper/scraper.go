// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/metrics"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/ratelimit"
	"github.com/tomtom215/consensus/internal/sources"
)

const maxPageBytes = 4 << 20

// errPageMissing moves the scrape on to the next candidate.
var errPageMissing = errors.New("scraper: page missing")

// ErrBlocked is a 403 from the site. It is transient for the item but is
// neither retried nor followed by further candidates.
var ErrBlocked = fmt.Errorf("%w: blocked by site", sources.ErrTransient)

// Result is the terminal state of a scrape.
type Result int

const (
	Success Result = iota
	NotFound
	TransientError
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case TransientError:
		return "transient"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Outcome is what Scrape returns for one item.
type Outcome struct {
	Result Result
	Value  *models.SourceValue

	// FailCount is the number of consecutive scrapes that found nothing.
	FailCount int

	// Cached is true when no page was requested.
	Cached bool

	Err error
}

// Scraper reads scores from one Site.
type Scraper struct {
	site        Site
	store       *cache.Store
	limiter     *ratelimit.Limiter
	hc          *http.Client
	userAgent   string
	timeout     time.Duration
	retries     int
	retryDelay  time.Duration
	positiveTTL time.Duration
	negativeTTL time.Duration
	now         func() time.Time
	log         *logging.UpstreamLogger
}

// New returns a Scraper for site. Requests are paced by deps.Limiter under
// the site's source name.
func New(site Site, cfg *config.ScraperConfig, deps sources.Deps) *Scraper {
	hc := deps.HTTPClient
	if hc == nil {
		hc = sources.NewHTTPClient()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	s := &Scraper{
		site:        site,
		store:       deps.Store,
		limiter:     deps.Limiter,
		hc:          hc,
		userAgent:   cfg.UserAgent,
		timeout:     cfg.Timeout,
		retries:     cfg.Retries,
		retryDelay:  cfg.RetryDelay,
		positiveTTL: cfg.PositiveTTL,
		negativeTTL: cfg.NegativeTTL,
		now:         now,
		log:         logging.NewUpstreamLogger("scraper", string(site.Source)),
	}
	if s.timeout <= 0 {
		s.timeout = 15 * time.Second
	}
	if s.positiveTTL <= 0 {
		s.positiveTTL = 7 * 24 * time.Hour
	}
	if s.negativeTTL <= 0 {
		s.negativeTTL = s.positiveTTL
	}
	return s
}

// Source returns the slot the scraper fills.
func (s *Scraper) Source() models.Source { return s.site.Source }

// Scrape returns the item's score from the site, consulting the slot and
// the scrape entry first. Concurrent scrapes of one item share one run.
func (s *Scraper) Scrape(ctx context.Context, item models.MediaItem) Outcome {
	if v, _, ok := sources.ReadValue(ctx, s.store, s.site.Source, item.Key()); ok {
		return Outcome{Result: Success, Value: &v, Cached: true}
	}

	urls := s.site.Candidates(item.Title, item.Year)
	if len(urls) == 0 {
		return Outcome{Result: NotFound, Cached: true}
	}

	key := cache.ScrapeKey(s.site.Source, item.Key())
	var fetched atomic.Bool
	res, err := s.store.GetOrFetch(ctx, key, func(ctx context.Context) (cache.Fill, error) {
		fetched.Store(true)
		prior := s.store.Get(ctx, key).FailCount()
		invalidate := []string{cache.ConsolidatedKey(item.Key())}

		v, err := s.run(ctx, item, urls)
		switch {
		case err == nil:
			payload, merr := json.Marshal(v)
			if merr != nil {
				return cache.Fill{}, merr
			}
			if werr := sources.WriteValue(ctx, s.store, item.Key(), v, s.positiveTTL); werr != nil {
				return cache.Fill{}, werr
			}
			metrics.ScrapeOutcomes.WithLabelValues(string(s.site.Source), Success.String()).Inc()
			return cache.Fill{Payload: payload, TTL: s.positiveTTL, Invalidate: invalidate}, nil
		case errors.Is(err, errPageMissing):
			count := prior + 1
			s.log.LogScrapeExhausted(ctx, item.Key(), len(urls), count)
			metrics.ScrapeOutcomes.WithLabelValues(string(s.site.Source), NotFound.String()).Inc()
			return cache.Fill{Negative: true, TTL: s.negativeTTL, FailCount: count, Invalidate: invalidate}, nil
		default:
			metrics.ScrapeOutcomes.WithLabelValues(string(s.site.Source), TransientError.String()).Inc()
			return cache.Fill{}, err
		}
	})
	if err != nil {
		s.log.LogTransient(ctx, item.Key(), err)
		return Outcome{Result: TransientError, Err: err}
	}

	cached := !fetched.Load()
	if res.Negative {
		return Outcome{Result: NotFound, FailCount: res.FailCount(), Cached: cached}
	}

	var v models.SourceValue
	if err := json.Unmarshal(res.Payload, &v); err != nil {
		return Outcome{Result: TransientError, Err: fmt.Errorf("decode cached scrape: %w", err)}
	}
	if cached {
		// The slot may have been evicted while the scrape entry survived.
		ttl := s.positiveTTL
		if res.Entry != nil {
			ttl = max(res.Entry.ExpiresAt.Sub(s.now()), time.Minute)
		}
		if err := sources.WriteValue(ctx, s.store, item.Key(), v, ttl); err != nil {
			s.log.LogTransient(ctx, item.Key(), err)
		}
	}
	return Outcome{Result: Success, Value: &v, Cached: cached}
}

// KnownAbsent reports whether the last scrape of item found nothing and
// that answer is still fresh.
func (s *Scraper) KnownAbsent(ctx context.Context, item models.MediaItem) bool {
	res := s.store.Get(ctx, cache.ScrapeKey(s.site.Source, item.Key()))
	return res.Found && res.Negative && !res.Stale
}

// run tries each candidate in order. It returns errPageMissing when every
// page was absent or unparsable, and a transient error when at least one
// candidate could not be checked.
func (s *Scraper) run(ctx context.Context, item models.MediaItem, urls []string) (models.SourceValue, error) {
	start := s.now()
	var lastTransient error
	for _, u := range urls {
		native, err := s.try(ctx, u)
		switch {
		case err == nil:
			s.log.LogFetched(ctx, item.Key(), native, s.now().Sub(start))
			return models.NewSourceValue(s.site.Source, native, models.Scale100, nil, models.OriginScrape, s.now()), nil
		case errors.Is(err, errPageMissing):
		case errors.Is(err, ErrParse):
			s.log.LogParseFailed(ctx, item.Key(), u)
		case errors.Is(err, sources.ErrRateLimited), errors.Is(err, ErrBlocked),
			errors.Is(err, ratelimit.ErrQueueFull), ctx.Err() != nil:
			// No point trying further candidates.
			return models.SourceValue{}, err
		default:
			lastTransient = err
		}
	}
	if lastTransient != nil {
		return models.SourceValue{}, lastTransient
	}
	return models.SourceValue{}, errPageMissing
}

// try fetches one candidate, retrying transient failures on the same URL.
func (s *Scraper) try(ctx context.Context, u string) (float64, error) {
	var native float64
	err := retry.Do(
		func() error {
			var err error
			native, err = s.page(ctx, u)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.retries)+1),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	)
	return native, err
}

func retryable(err error) bool {
	return errors.Is(err, sources.ErrTransient) &&
		!errors.Is(err, sources.ErrRateLimited) && !errors.Is(err, ErrBlocked)
}

// page performs one paced request and parses the body.
func (s *Scraper) page(ctx context.Context, u string) (float64, error) {
	site := string(s.site.Source)
	var native float64
	fetch := func(ctx context.Context) error {
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		var err error
		native, err = s.get(rctx, u)
		return err
	}

	var err error
	if s.limiter != nil {
		err = s.limiter.Execute(ctx, site, fetch)
	} else {
		err = fetch(ctx)
	}
	metrics.RecordScrapeAttempt(site, attemptLabel(err))
	return native, err
}

func (s *Scraper) get(ctx context.Context, u string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	start := time.Now()
	resp, err := s.hc.Do(req)
	if err != nil {
		metrics.RecordUpstreamHTTP(string(s.site.Source), 0, time.Since(start))
		return 0, fmt.Errorf("%w: %v", sources.ErrTransient, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamHTTP(string(s.site.Source), resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		return s.site.Parse(io.LimitReader(resp.Body, maxPageBytes))
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return 0, errPageMissing
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, &sources.RateLimitedError{Source: string(s.site.Source), RetryAfter: sources.RetryAfter(resp.Header, s.now())}
	case resp.StatusCode == http.StatusForbidden:
		return 0, fmt.Errorf("%w: %s", ErrBlocked, u)
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: %s status %d", sources.ErrTransient, u, resp.StatusCode)
	default:
		return 0, errPageMissing
	}
}

func attemptLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, errPageMissing):
		return "not_found"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, sources.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ratelimit.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	default:
		return "transient"
	}
}

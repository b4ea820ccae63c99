// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// UpstreamLogger logs the outcomes of calls to rating sources and scrape
// targets with a consistent field set.
type UpstreamLogger struct {
	logger zerolog.Logger
}

// NewUpstreamLogger returns a logger tagged with component and source.
func NewUpstreamLogger(component, source string) *UpstreamLogger {
	return &UpstreamLogger{logger: WithSource(component, source)}
}

// NewUpstreamLoggerWithLogger wraps an existing logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewUpstreamLoggerWithLogger(l zerolog.Logger) *UpstreamLogger {
	return &UpstreamLogger{logger: l}
}

func (u *UpstreamLogger) with(ctx context.Context) zerolog.Logger {
	lctx := u.logger.With()
	if id := RequestIDFromContext(ctx); id != "" {
		lctx = lctx.Str("request_id", id)
	}
	if id := BatchIDFromContext(ctx); id != "" {
		lctx = lctx.Str("batch_id", id)
	}
	return lctx.Logger()
}

// LogFetched records a successful lookup.
func (u *UpstreamLogger) LogFetched(ctx context.Context, itemID string, value float64, elapsed time.Duration) {
	l := u.with(ctx)
	l.Debug().
		Str("item", itemID).
		Float64("value", value).
		Dur("elapsed", elapsed).
		Msg("upstream value fetched")
}

// LogNotFound records an authoritative miss.
func (u *UpstreamLogger) LogNotFound(ctx context.Context, itemID string) {
	l := u.with(ctx)
	l.Debug().Str("item", itemID).Msg("upstream has no value")
}

// LogTransient records a failure that will not be cached.
func (u *UpstreamLogger) LogTransient(ctx context.Context, itemID string, err error) {
	l := u.with(ctx)
	l.Warn().Str("item", itemID).Err(err).Msg("upstream request failed")
}

// LogRateLimited records an upstream 429 or quota response.
func (u *UpstreamLogger) LogRateLimited(ctx context.Context, itemID string, retryAfter time.Duration) {
	l := u.with(ctx)
	event := l.Warn().Str("item", itemID)
	if retryAfter > 0 {
		event = event.Dur("retry_after", retryAfter)
	}
	event.Msg("upstream rate limited")
}

// LogSkipped records an item the source does not apply to.
func (u *UpstreamLogger) LogSkipped(ctx context.Context, itemID, reason string) {
	l := u.with(ctx)
	l.Trace().Str("item", itemID).Str("reason", reason).Msg("upstream skipped")
}

// LogParseFailed records a page that loaded but had no recognizable score.
// It is kept separate from not-found so markup changes show up in logs.
func (u *UpstreamLogger) LogParseFailed(ctx context.Context, itemID, url string) {
	l := u.with(ctx)
	l.Info().Bool("parse_error", true).Str("item", itemID).Str("url", url).Msg("scrape page had no parsable score")
}

// LogScrapeExhausted records that every slug candidate missed.
func (u *UpstreamLogger) LogScrapeExhausted(ctx context.Context, itemID string, candidates, failCount int) {
	l := u.with(ctx)
	l.Info().
		Str("item", itemID).
		Int("candidates", candidates).
		Int("fail_count", failCount).
		Msg("scrape found no page")
}

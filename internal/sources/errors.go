// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/consensus/internal/ratelimit"
)

var (
	// ErrNotFound means the upstream confirmed it has no value.
	ErrNotFound = errors.New("sources: not found")

	// ErrTransient covers timeouts, resets and 5xx responses.
	ErrTransient = errors.New("sources: transient upstream failure")

	// ErrRateLimited means the upstream answered 429 or a quota error.
	// It is also a transient error.
	ErrRateLimited = errors.New("sources: rate limited")
)

// RateLimitedError carries the upstream's Retry-After hint.
type RateLimitedError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Source, e.RetryAfter)
	}
	return e.Source + ": rate limited"
}

// Is makes a RateLimitedError match both ErrRateLimited and ErrTransient.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited || target == ErrTransient
}

// transient wraps err as ErrTransient.
func transient(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

// failure labels an error for the upstream outcome metric.
func failure(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ratelimit.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consensus/internal/metrics"
)

const (
	maxResponseBytes = 2 << 20
	maxErrorBytes    = 64 << 10
)

// NewHTTPClient returns the client used by every upstream when none is
// injected. Per-request deadlines come from the caller's context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// requester performs JSON GETs against one upstream and maps HTTP failures
// onto the package's error taxonomy.
type requester struct {
	hc        *http.Client
	source    string
	userAgent string
	header    http.Header
	now       func() time.Time
}

// getJSON decodes a 200 response into out.
//
//	404         ErrNotFound
//	429         *RateLimitedError
//	5xx, I/O    ErrTransient
//	other 4xx   plain error (not cached, logged)
func (r *requester) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	for k, v := range r.header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := r.hc.Do(req)
	if err != nil {
		metrics.RecordUpstreamHTTP(r.source, 0, time.Since(start))
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrTransient, ctx.Err())
		}
		return transient("%s request: %v", r.source, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamHTTP(r.source, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		drain(resp.Body)
		return &RateLimitedError{Source: r.source, RetryAfter: RetryAfter(resp.Header, r.now())}
	case resp.StatusCode >= 500:
		return transient("%s status %d: %s", r.source, resp.StatusCode, readBodyForError(resp.Body))
	default:
		return fmt.Errorf("%s status %d: %s", r.source, resp.StatusCode, readBodyForError(resp.Body))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s decode response: %w", r.source, err)
	}
	return nil
}

// RetryAfter parses a Retry-After header given as seconds or an HTTP date.
// It returns 0 when the header is absent or unparsable.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// readBodyForError returns a bounded, trimmed snippet of an error body.
func readBodyForError(body io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(body, maxErrorBytes))
	if err != nil {
		return "(unreadable body)"
	}
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// drain lets the transport reuse the connection.
func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBytes))
}

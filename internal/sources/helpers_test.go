// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package sources

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/ratelimit"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	store := cache.NewStore(cache.NewMemoryTier(1000, nil), nil, cache.Options{Clock: testClock})
	t.Cleanup(store.Drain)
	return Deps{
		Store:   store,
		Limiter: ratelimit.New(ratelimit.Config{MaxConcurrent: 4, MaxQueue: 100}),
		Clock:   testClock,
	}
}

var testPolicy = Policy{
	PositiveTTL:     7 * 24 * time.Hour,
	NegativeTTL:     24 * time.Hour,
	UserAgent:       "consensus-test",
	BreakerFailures: 5,
	BreakerTimeout:  time.Minute,
}

// countingServer serves handler and counts requests.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func upstreamConfig(baseURL string) *config.UpstreamConfig {
	return &config.UpstreamConfig{Enabled: true, BaseURL: baseURL, APIKey: "test-key", Timeout: 5 * time.Second}
}

func movie(id string) models.MediaItem {
	return models.MediaItem{ID: id, Type: models.MediaTypeMovie}
}

func episode(id string) models.MediaItem {
	return models.MediaItem{ID: id}.Normalize()
}

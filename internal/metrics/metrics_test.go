// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(CacheLookups.WithLabelValues("src:tmdb", "hit"))
	RecordCacheLookup("src:tmdb", "hit")
	RecordCacheLookup("src:tmdb", "hit")
	after := testutil.ToFloat64(CacheLookups.WithLabelValues("src:tmdb", "hit"))

	if after-before != 2 {
		t.Errorf("expected 2 hits recorded, got %v", after-before)
	}
}

func TestRecordConsolidation(t *testing.T) {
	rated := testutil.ToFloat64(Consolidations.WithLabelValues("rated", "great"))
	empty := testutil.ToFloat64(Consolidations.WithLabelValues("empty", "none"))

	RecordConsolidation("great", 3)
	RecordConsolidation("", 0)

	if got := testutil.ToFloat64(Consolidations.WithLabelValues("rated", "great")) - rated; got != 1 {
		t.Errorf("rated delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(Consolidations.WithLabelValues("empty", "none")) - empty; got != 1 {
		t.Errorf("empty delta = %v, want 1", got)
	}
}

func TestRecordUpstreamHTTP(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"ok", 200},
		{"not found", 404},
		{"network error", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordUpstreamHTTP("tmdb", tt.status, 25*time.Millisecond)
		})
	}

	if n := testutil.CollectAndCount(UpstreamDuration); n < 3 {
		t.Errorf("expected at least 3 series, got %d", n)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/ratings", "200"))
	RecordAPIRequest("GET", "/api/v1/ratings", "200", 10*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/ratings", "200"))
	if after-before != 1 {
		t.Errorf("expected one request recorded, got %v", after-before)
	}
}

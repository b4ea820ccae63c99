// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package models

import (
	"fmt"
	"math"
	"time"
)

// Source names a rating provider.
type Source string

const (
	SourceIMDb           Source = "imdb"
	SourceTMDB           Source = "tmdb"
	SourceRottenTomatoes Source = "rt"
	SourceMetacritic     Source = "mc"
	SourceMAL            Source = "mal"
)

// AllSources lists every source in consolidation order.
var AllSources = []Source{
	SourceIMDb,
	SourceTMDB,
	SourceRottenTomatoes,
	SourceMetacritic,
	SourceMAL,
}

// ParseSource converts a source name.
func ParseSource(s string) (Source, error) {
	for _, src := range AllSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Scale is the native range a source reports ratings on.
type Scale int

const (
	// Scale10 values are already 0–10.
	Scale10 Scale = 10
	// Scale100 values are percentages or metascores.
	Scale100 Scale = 100
)

// Origin records how a value was obtained.
type Origin string

const (
	OriginAPI    Origin = "api"
	OriginMirror Origin = "mirror"
	OriginScrape Origin = "scrape"
)

// SourceValue is one source's rating for an item. RawValue is always
// normalized to 0–10; NativeValue keeps what the source reported.
type SourceValue struct {
	Source      Source    `json:"source"`
	RawValue    float64   `json:"raw_value"`
	NativeValue float64   `json:"native_value"`
	Scale       Scale     `json:"scale"`
	VoteCount   *int      `json:"vote_count,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	Origin      Origin    `json:"origin"`
}

// NewSourceValue normalizes native onto 0–10 according to scale.
func NewSourceValue(src Source, native float64, scale Scale, votes *int, origin Origin, now time.Time) SourceValue {
	return SourceValue{
		Source:      src,
		RawValue:    Normalize(native, scale),
		NativeValue: native,
		Scale:       scale,
		VoteCount:   votes,
		FetchedAt:   now.UTC(),
		Origin:      origin,
	}
}

// Normalize maps a native value onto 0–10, clamped.
func Normalize(native float64, scale Scale) float64 {
	v := native
	if scale == Scale100 {
		v = native / 10
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// Votes returns a pointer to n, or nil when n is not positive.
func Votes(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

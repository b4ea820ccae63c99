// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package models

import "time"

// Color is the display bucket for a consolidated rating.
type Color string

const (
	ColorExcellent Color = "excellent"
	ColorGreat     Color = "great"
	ColorGood      Color = "good"
	ColorOkay      Color = "okay"
	ColorMediocre  Color = "mediocre"
	ColorPoor      Color = "poor"
)

// ConsolidatedRating is the single score derived from all available
// source values for an item.
type ConsolidatedRating struct {
	ItemID      string        `json:"item_id"`
	Sources     []SourceValue `json:"sources"`
	Rating      float64       `json:"rating"`
	SourceCount int           `json:"source_count"`
	Color       Color         `json:"color"`
	ComputedAt  time.Time     `json:"computed_at"`
	TTL         time.Duration `json:"ttl"`
}

// SourceValue returns the value contributed by src, if any.
func (r *ConsolidatedRating) SourceValue(src Source) (SourceValue, bool) {
	for _, v := range r.Sources {
		if v.Source == src {
			return v, true
		}
	}
	return SourceValue{}, false
}

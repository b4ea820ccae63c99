// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MediaType classifies an item being rated.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeSeries  MediaType = "series"
	MediaTypeEpisode MediaType = "episode"
)

// Valid reports whether t is one of the known media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeMovie, MediaTypeSeries, MediaTypeEpisode:
		return true
	}
	return false
}

// ParseMediaType converts a catalog type string. Stremio uses "series" for
// TV shows; "tv" and "show" are accepted as aliases.
func ParseMediaType(s string) (MediaType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "film":
		return MediaTypeMovie, nil
	case "series", "tv", "show":
		return MediaTypeSeries, nil
	case "episode":
		return MediaTypeEpisode, nil
	}
	return "", fmt.Errorf("unknown media type %q", s)
}

// MediaItem identifies something to rate.
//
// ID is the identifier the caller supplied and is the key results are
// returned under. It may be an IMDb id ("tt0111161"), a Stremio episode id
// ("tt0944947:1:1") or a foreign id such as "mal:5114". CanonicalID is the
// IMDb-based id the resolver maps ID onto; it is empty until mapping runs.
type MediaItem struct {
	ID          string    `json:"id" validate:"required"`
	Type        MediaType `json:"type" validate:"required,oneof=movie series episode"`
	Title       string    `json:"title,omitempty"`
	Year        int       `json:"year,omitempty" validate:"omitempty,min=1870,max=2100"`
	CanonicalID string    `json:"canonical_id,omitempty"`
	MALID       string    `json:"mal_id,omitempty"`
	Season      int       `json:"season,omitempty"`
	Episode     int       `json:"episode,omitempty"`
}

// Key returns the identifier used for cache keys and upstream lookups.
func (m MediaItem) Key() string {
	if m.CanonicalID != "" {
		return m.CanonicalID
	}
	return m.ID
}

// IMDbID returns the bare title id behind Key, without any season or
// episode suffix.
func (m MediaItem) IMDbID() string {
	base, _, _, ok := ParseEpisodeID(m.Key())
	if ok {
		return base
	}
	return m.Key()
}

// IsEpisodeRef reports whether the item addresses a single episode by
// series id plus season and episode numbers. Season 0 holds specials and
// only counts when the id itself carries the season and episode suffix.
func (m MediaItem) IsEpisodeRef() bool {
	if m.Type != MediaTypeEpisode || m.Season < 0 || m.Episode <= 0 {
		return false
	}
	if m.Season > 0 {
		return true
	}
	_, _, _, ok := ParseEpisodeID(m.Key())
	if !ok {
		_, _, _, ok = ParseEpisodeID(m.ID)
	}
	return ok
}

// String implements fmt.Stringer for log output.
func (m MediaItem) String() string {
	if m.CanonicalID != "" && m.CanonicalID != m.ID {
		return fmt.Sprintf("%s(%s->%s)", m.Type, m.ID, m.CanonicalID)
	}
	return fmt.Sprintf("%s(%s)", m.Type, m.ID)
}

// IsIMDbID reports whether id looks like an IMDb title id.
func IsIMDbID(id string) bool {
	if len(id) < 3 || !strings.HasPrefix(id, "tt") {
		return false
	}
	for _, r := range id[2:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseEpisodeID splits a Stremio episode id of the form "tt123:1:2" into
// the series id, season and episode. ok is false for any other shape.
func ParseEpisodeID(id string) (series string, season, episode int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || !IsIMDbID(parts[0]) {
		return "", 0, 0, false
	}
	s, err := strconv.Atoi(parts[1])
	if err != nil || s < 0 {
		return "", 0, 0, false
	}
	e, err := strconv.Atoi(parts[2])
	if err != nil || e < 0 {
		return "", 0, 0, false
	}
	return parts[0], s, e, true
}

// Normalize fills derived fields from ID. Stremio episode ids set Type,
// Season and Episode.
func (m MediaItem) Normalize() MediaItem {
	if _, s, e, ok := ParseEpisodeID(m.ID); ok {
		m.Type = MediaTypeEpisode
		m.Season, m.Episode = s, e
	}
	return m
}

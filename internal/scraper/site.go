// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package scraper

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/tomtom215/consensus/internal/models"
)

// Site describes how one review site lays out its series pages.
type Site struct {
	Source     models.Source
	BaseURL    string
	PathPrefix string

	// Sep joins slug words.
	Sep string

	// Ampersand spells "&" as "and" in slugs.
	Ampersand bool

	// StripArticle adds a candidate without a leading "the".
	StripArticle bool

	// Disambiguator is appended after the year for the last candidate.
	Disambiguator string

	// domScore finds the score in the page markup when there is no
	// structured data. It returns the site's native 0 to 100 value.
	domScore func(doc *html.Node) (float64, bool)
}

// RottenTomatoes pages live at /tv/{slug} with underscores.
func RottenTomatoes(baseURL string) Site {
	return Site{
		Source:        models.SourceRottenTomatoes,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		PathPrefix:    "/tv/",
		Sep:           "_",
		Ampersand:     true,
		Disambiguator: "us",
		domScore:      rtScore,
	}
}

// Metacritic pages live at /tv/{slug} with hyphens and often drop a
// leading "the".
func Metacritic(baseURL string) Site {
	return Site{
		Source:        models.SourceMetacritic,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		PathPrefix:    "/tv/",
		Sep:           "-",
		StripArticle:  true,
		Disambiguator: "us",
		domScore:      mcScore,
	}
}

// rtScore reads the Tomatometer from the score board web component
// attributes, or from the labelled score element on older layouts.
func rtScore(doc *html.Node) (float64, bool) {
	var (
		score float64
		ok    bool
	)
	walk(doc, func(n *html.Node) bool {
		if v, found := attr(n, "tomatometerscore"); found {
			score, ok = parsePercent(v)
		} else if attrIs(n, "data-qa", "tomatometer") || attrIs(n, "slot", "criticsScore") {
			score, ok = parsePercent(text(n))
		}
		return !ok
	})
	return score, ok
}

// mcScore reads the first metascore badge.
func mcScore(doc *html.Node) (float64, bool) {
	var (
		score float64
		ok    bool
	)
	walk(doc, func(n *html.Node) bool {
		if hasClass(n, "metascore_w") || hasClass(n, "c-siteReviewScore") {
			score, ok = parsePercent(text(n))
		}
		return !ok
	})
	return score, ok
}

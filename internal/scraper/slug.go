// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package scraper

import (
	"strconv"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// Slugify turns a title into a URL slug joined by sep. Accents are
// transliterated, apostrophes dropped and every other run of non
// alphanumerics collapses into a single separator. When ampersand is
// true "&" becomes the word "and".
func Slugify(title, sep string, ampersand bool) string {
	s := strings.ToLower(unidecode.Unidecode(title))
	if ampersand {
		s = strings.ReplaceAll(s, "&", " and ")
	}

	var b strings.Builder
	b.Grow(len(s))
	gap := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if gap && b.Len() > 0 {
				b.WriteString(sep)
			}
			gap = false
			b.WriteRune(r)
		case r == '\'' || r == '`':
		default:
			gap = true
		}
	}
	return b.String()
}

// Candidates returns the ordered, de-duplicated page URLs to try for a
// title on site.
func (s Site) Candidates(title string, year int) []string {
	slug := Slugify(title, s.Sep, s.Ampersand)
	if slug == "" {
		return nil
	}

	slugs := []string{slug}
	if year > 0 {
		withYear := slug + s.Sep + strconv.Itoa(year)
		slugs = append(slugs, withYear)
		if s.Disambiguator != "" {
			slugs = append(slugs, withYear+s.Sep+s.Disambiguator)
		}
	}
	if s.StripArticle {
		if rest, ok := strings.CutPrefix(slug, "the"+s.Sep); ok && rest != "" {
			slugs = append(slugs, rest)
		}
	}

	seen := make(map[string]struct{}, len(slugs))
	urls := make([]string, 0, len(slugs))
	for _, sl := range slugs {
		if _, dup := seen[sl]; dup {
			continue
		}
		seen[sl] = struct{}{}
		urls = append(urls, s.BaseURL+s.PathPrefix+sl)
	}
	return urls
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package scraper

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/net/html"
)

// ErrParse means a page loaded but carried no recognizable score. It is
// cached like a miss but logged on its own.
var ErrParse = errors.New("scraper: no score on page")

// Parse extracts the site's native 0 to 100 score from a page. Structured
// data is preferred over markup.
func (s Site) Parse(body io.Reader) (float64, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if v, ok := jsonLDScore(doc); ok {
		return v, nil
	}
	if s.domScore != nil {
		if v, ok := s.domScore(doc); ok {
			return v, nil
		}
	}
	return 0, ErrParse
}

// jsonLDScore looks through every ld+json script for an aggregateRating.
func jsonLDScore(doc *html.Node) (float64, bool) {
	var (
		score float64
		ok    bool
	)
	walk(doc, func(n *html.Node) bool {
		if n.Data != "script" || !attrIs(n, "type", "application/ld+json") {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(text(n)), &data); err != nil {
			return true
		}
		score, ok = findAggregate(data)
		return !ok
	})
	return score, ok
}

// findAggregate walks decoded JSON-LD, including @graph arrays, for the
// first aggregateRating with a usable ratingValue.
func findAggregate(v any) (float64, bool) {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if s, ok := findAggregate(e); ok {
				return s, true
			}
		}
	case map[string]any:
		if agg, ok := t["aggregateRating"].(map[string]any); ok {
			if s, ok := ratingValue(agg); ok {
				return s, true
			}
		}
		if g, ok := t["@graph"]; ok {
			return findAggregate(g)
		}
	}
	return 0, false
}

// ratingValue scales ratingValue onto 0 to 100 using bestRating when the
// page gives one.
func ratingValue(agg map[string]any) (float64, bool) {
	v, ok := number(agg["ratingValue"])
	if !ok {
		return 0, false
	}
	if best, ok := number(agg["bestRating"]); ok && best > 0 && best != 100 {
		v = v * 100 / best
	}
	if v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		return parsePercent(t)
	}
	return 0, false
}

// parsePercent reads "92", "92%" or " 92 " as a 0 to 100 value.
func parsePercent(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || f > 100 {
		return 0, false
	}
	return f, true
}

// walk visits element nodes depth first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if n.Type == html.ElementNode && !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrIs(n *html.Node, key, want string) bool {
	v, ok := attr(n, key)
	return ok && v == want
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class || strings.HasPrefix(c, class+"-") || strings.HasPrefix(c, class+"_") {
			return true
		}
	}
	return false
}

// text concatenates the text beneath n.
func text(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(b.String())
}

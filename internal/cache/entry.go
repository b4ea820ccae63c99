// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tomtom215/consensus/internal/models"
)

var (
	// ErrMiss is returned by a Tier when it holds no entry for a key.
	ErrMiss = errors.New("cache: miss")

	// ErrClosed is returned by operations on a closed durable tier.
	ErrClosed = errors.New("cache: closed")
)

// Entry is one cached record.
type Entry struct {
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Negative  bool      `json:"negative,omitempty"`
	FailCount int       `json:"fail_count,omitempty"`
}

// FreshAt reports whether the entry has not yet expired at now. An entry is
// still fresh at the instant it expires.
func (e *Entry) FreshAt(now time.Time) bool {
	return !now.After(e.ExpiresAt)
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Payload != nil {
		c.Payload = append([]byte(nil), e.Payload...)
	}
	return &c
}

// Result describes a Store lookup.
type Result struct {
	// Payload is nil for negative entries.
	Payload []byte

	// Found is true for fresh entries and, with stale serving on, for
	// entries inside the stale window.
	Found bool

	// Stale marks a Found result served past its expiry.
	Stale bool

	// Negative marks a Found result recording an authoritative absence.
	Negative bool

	// Entry is the underlying record. It is also set for expired entries the
	// store still retains, so callers can read FailCount after expiry.
	Entry *Entry
}

// Hit reports whether the result carries a usable positive payload.
func (r Result) Hit() bool {
	return r.Found && !r.Negative
}

// FailCount returns the fail count of the underlying entry, fresh or not.
func (r Result) FailCount() int {
	if r.Entry == nil {
		return 0
	}
	return r.Entry.FailCount
}

// Fill is what a FetchFunc hands back to the store.
type Fill struct {
	Payload   []byte
	Negative  bool
	TTL       time.Duration
	FailCount int

	// Invalidate lists keys deleted after the fill is stored.
	Invalidate []string
}

// FetchFunc loads the value for a key on a cache miss. An error means
// nothing is cached.
type FetchFunc func(ctx context.Context) (Fill, error)

// Tier is one storage layer of the Store.
type Tier interface {
	// Get returns ErrMiss when the key is absent.
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, key string) error
}

// SourceKey is the cache key for one source's value for an item.
func SourceKey(src models.Source, itemKey string) string {
	return "src:" + string(src) + ":" + itemKey
}

// ConsolidatedKey is the cache key for an item's consolidated rating.
func ConsolidatedKey(itemKey string) string {
	return "consolidated:" + itemKey
}

// ScrapeKey is the cache key for scrape bookkeeping on one site.
func ScrapeKey(site models.Source, itemKey string) string {
	return "scrape:" + string(site) + ":" + itemKey
}

// RawKey is the cache key for a raw upstream response that feeds more than
// one source slot.
func RawKey(upstream, itemKey string) string {
	return "raw:" + upstream + ":" + itemKey
}

// Namespace returns the metrics label for key: the first two segments for
// per-source keys, the first segment otherwise.
func Namespace(key string) string {
	parts := strings.SplitN(key, ":", 3)
	switch parts[0] {
	case "src", "scrape", "raw":
		if len(parts) >= 2 {
			return parts[0] + ":" + parts[1]
		}
	}
	return parts[0]
}

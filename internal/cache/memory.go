// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/consensus/internal/metrics"
)

// PolicyType names an eviction policy.
type PolicyType string

const (
	PolicyLRU PolicyType = "lru"
	PolicyLFU PolicyType = "lfu"
)

// EvictionPolicy decides which key a full MemoryTier drops.
type EvictionPolicy interface {
	Name() string
	// Access records a read or write, inserting unknown keys.
	Access(key string)
	Remove(key string)
	// Victim removes and returns the key to evict.
	Victim() (string, bool)
	Len() int
}

// NewPolicy returns the policy named by t.
func NewPolicy(t PolicyType) (EvictionPolicy, error) {
	switch PolicyType(strings.ToLower(string(t))) {
	case PolicyLRU, "":
		return NewLRUPolicy(), nil
	case PolicyLFU:
		return NewLFUPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", t)
	}
}

// DefaultMemoryCapacity is used when NewMemoryTier gets a non-positive capacity.
const DefaultMemoryCapacity = 50000

// MemoryTier is a bounded in-process Tier.
type MemoryTier struct {
	mu        sync.Mutex
	capacity  int
	entries   map[string]*Entry
	policy    EvictionPolicy
	evictions int64
}

// NewMemoryTier creates a memory tier holding at most capacity entries.
// A nil policy selects LRU.
func NewMemoryTier(capacity int, policy EvictionPolicy) *MemoryTier {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	if policy == nil {
		policy = NewLRUPolicy()
	}
	return &MemoryTier{
		capacity: capacity,
		entries:  make(map[string]*Entry, min(capacity, 1024)),
		policy:   policy,
	}
}

func (m *MemoryTier) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	m.policy.Access(key)
	return e.clone(), nil
}

func (m *MemoryTier) Put(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[e.Key] = e.clone()
	m.policy.Access(e.Key)

	for len(m.entries) > m.capacity {
		victim, ok := m.policy.Victim()
		if !ok {
			break
		}
		delete(m.entries, victim)
		m.evictions++
		metrics.CacheEvictions.WithLabelValues(m.policy.Name()).Inc()
	}
	metrics.CacheEntries.WithLabelValues("memory").Set(float64(len(m.entries)))
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.policy.Remove(key)
	}
	return nil
}

// Sweep drops entries that expired before cutoff and returns how many.
func (m *MemoryTier) Sweep(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if e.ExpiresAt.Before(cutoff) {
			delete(m.entries, key)
			m.policy.Remove(key)
			removed++
		}
	}
	metrics.CacheEntries.WithLabelValues("memory").Set(float64(len(m.entries)))
	return removed
}

func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Evictions returns how many entries the policy has evicted.
func (m *MemoryTier) Evictions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package cache

import "testing"

func TestLRUPolicy_EvictsLeastRecent(t *testing.T) {
	t.Parallel()

	p := NewLRUPolicy()
	p.Access("a")
	p.Access("b")
	p.Access("c")
	p.Access("a") // a is now newest

	got, ok := p.Victim()
	if !ok || got != "b" {
		t.Fatalf("Victim() = %q, %v; want b", got, ok)
	}
	got, _ = p.Victim()
	if got != "c" {
		t.Errorf("second Victim() = %q, want c", got)
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestLRUPolicy_Remove(t *testing.T) {
	t.Parallel()

	p := NewLRUPolicy()
	p.Access("a")
	p.Access("b")
	p.Remove("a")
	p.Remove("missing")

	got, ok := p.Victim()
	if !ok || got != "b" {
		t.Errorf("Victim() = %q, %v; want b", got, ok)
	}
	if _, ok := p.Victim(); ok {
		t.Error("expected empty policy")
	}
}

func TestLFUPolicy_EvictsLeastFrequent(t *testing.T) {
	t.Parallel()

	p := NewLFUPolicy()
	p.Access("hot")
	p.Access("hot")
	p.Access("hot")
	p.Access("warm")
	p.Access("warm")
	p.Access("cold")

	if f := p.Frequency("hot"); f != 3 {
		t.Errorf("Frequency(hot) = %d, want 3", f)
	}

	order := []string{"cold", "warm", "hot"}
	for _, want := range order {
		got, ok := p.Victim()
		if !ok || got != want {
			t.Fatalf("Victim() = %q, %v; want %q", got, ok, want)
		}
	}
}

func TestLFUPolicy_TieBreaksByRecency(t *testing.T) {
	t.Parallel()

	p := NewLFUPolicy()
	p.Access("a")
	p.Access("b")
	p.Access("c")

	got, _ := p.Victim()
	if got != "a" {
		t.Errorf("Victim() = %q, want a (oldest at freq 1)", got)
	}
}

func TestLFUPolicy_RemoveEmptiesMinGroup(t *testing.T) {
	t.Parallel()

	p := NewLFUPolicy()
	p.Access("once")
	p.Access("twice")
	p.Access("twice")
	p.Access("thrice")
	p.Access("thrice")
	p.Access("thrice")

	p.Remove("once")

	got, ok := p.Victim()
	if !ok || got != "twice" {
		t.Errorf("Victim() = %q, %v; want twice", got, ok)
	}
}

func TestNewPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      PolicyType
		want    string
		wantErr bool
	}{
		{"", "lru", false},
		{"lru", "lru", false},
		{"LFU", "lfu", false},
		{"arc", "", true},
	}

	for _, tt := range tests {
		p, err := NewPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewPolicy(%q) err = %v", tt.in, err)
			continue
		}
		if err == nil && p.Name() != tt.want {
			t.Errorf("NewPolicy(%q).Name() = %q, want %q", tt.in, p.Name(), tt.want)
		}
	}
}

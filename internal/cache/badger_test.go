// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestBadger(t *testing.T, path string) *BadgerTier {
	t.Helper()
	tier, err := OpenBadgerTier(BadgerConfig{Path: path, Retention: time.Hour})
	if err != nil {
		t.Fatalf("OpenBadgerTier() error = %v", err)
	}
	return tier
}

func TestBadgerTier_RoundTripAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tier := openTestBadger(t, dir)
	e := &Entry{
		Key:       "src:tmdb:tt0111161",
		Payload:   []byte(`{"raw_value":8.7}`),
		FetchedAt: time.Now().UTC(),
		ExpiresAt: time.Now().Add(time.Hour).UTC(),
		FailCount: 0,
	}
	if err := tier.Put(ctx, e); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := tier.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	tier = openTestBadger(t, dir)
	defer tier.Close()

	got, err := tier.Get(ctx, e.Key)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if string(got.Payload) != string(e.Payload) || !got.ExpiresAt.Equal(e.ExpiresAt) {
		t.Errorf("Get() = %+v, want %+v", got, e)
	}
	if tier.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tier.Len())
	}
}

func TestBadgerTier_MissAndDelete(t *testing.T) {
	ctx := context.Background()
	tier, err := OpenBadgerTier(BadgerConfig{InMemory: true, Retention: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	defer tier.Close()

	if _, err := tier.Get(ctx, "nope"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get(missing) error = %v, want ErrMiss", err)
	}

	_ = tier.Put(ctx, &Entry{Key: "k", Negative: true, FailCount: 3, ExpiresAt: time.Now().Add(time.Minute)})
	got, err := tier.Get(ctx, "k")
	if err != nil || !got.Negative || got.FailCount != 3 {
		t.Errorf("Get(k) = %+v, %v", got, err)
	}

	if err := tier.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := tier.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get after Delete error = %v", err)
	}

	if err := tier.RunGC(); err != nil {
		t.Errorf("RunGC() in memory mode error = %v", err)
	}
}

func TestBadgerTier_Closed(t *testing.T) {
	tier, err := OpenBadgerTier(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	_ = tier.Close()
	if err := tier.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, err := tier.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get on closed tier = %v, want ErrClosed", err)
	}
}

func TestStore_WithBadgerDurableTier(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tier := openTestBadger(t, dir)
	s := NewStore(NewMemoryTier(10, nil), tier, Options{})
	_ = s.Put(ctx, "consolidated:tt1", []byte("x"), time.Hour)
	_ = tier.Close()

	tier = openTestBadger(t, dir)
	defer tier.Close()
	restarted := NewStore(NewMemoryTier(10, nil), tier, Options{})

	if res := restarted.Get(ctx, "consolidated:tt1"); !res.Hit() {
		t.Errorf("entry did not survive restart: %+v", res)
	}
}

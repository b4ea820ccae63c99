// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/metrics"
)

// Sweeper drops expired in-memory cache entries. Satisfied by *cache.Store.
type Sweeper interface {
	Sweep() int
}

// GarbageCollector reclaims durable tier space. Satisfied by
// *cache.BadgerTier.
type GarbageCollector interface {
	RunGC() error
}

// CacheJanitorService periodically sweeps the memory tier and garbage
// collects the durable tier. Either may be nil.
type CacheJanitorService struct {
	sweeper    Sweeper
	gc         GarbageCollector
	sweepEvery time.Duration
	gcEvery    time.Duration
	name       string
	logger     zerolog.Logger
}

// NewCacheJanitorService creates the janitor. Non-positive intervals become
// 1 minute for sweeps and 10 minutes for GC.
func NewCacheJanitorService(sweeper Sweeper, gc GarbageCollector, sweepEvery, gcEvery time.Duration) *CacheJanitorService {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	if gcEvery <= 0 {
		gcEvery = 10 * time.Minute
	}
	return &CacheJanitorService{
		sweeper:    sweeper,
		gc:         gc,
		sweepEvery: sweepEvery,
		gcEvery:    gcEvery,
		name:       "cache-janitor",
		logger:     logging.WithComponent("cache-janitor"),
	}
}

// Serve implements suture.Service. GC errors are logged and retried on the
// next tick rather than restarting the service.
func (j *CacheJanitorService) Serve(ctx context.Context) error {
	var sweepC, gcC <-chan time.Time
	if j.sweeper != nil {
		t := time.NewTicker(j.sweepEvery)
		defer t.Stop()
		sweepC = t.C
	}
	if j.gc != nil {
		t := time.NewTicker(j.gcEvery)
		defer t.Stop()
		gcC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweepC:
			j.sweep()
		case <-gcC:
			j.collect()
		}
	}
}

func (j *CacheJanitorService) sweep() {
	n := j.sweeper.Sweep()
	if n > 0 {
		metrics.CacheSweptEntries.Add(float64(n))
		j.logger.Debug().Int("removed", n).Msg("Swept expired cache entries")
	}
}

func (j *CacheJanitorService) collect() {
	start := time.Now()
	if err := j.gc.RunGC(); err != nil {
		metrics.CacheGCRuns.WithLabelValues("error").Inc()
		j.logger.Warn().Err(err).Msg("Durable cache GC failed")
		return
	}
	metrics.CacheGCRuns.WithLabelValues("ok").Inc()
	j.logger.Debug().Dur("duration", time.Since(start)).Msg("Durable cache GC finished")
}

func (j *CacheJanitorService) String() string {
	return j.name
}

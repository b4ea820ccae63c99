// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/consensus/internal/api"
	"github.com/tomtom215/consensus/internal/batch"
	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/config"
	"github.com/tomtom215/consensus/internal/consolidate"
	"github.com/tomtom215/consensus/internal/database"
	"github.com/tomtom215/consensus/internal/idmap"
	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/ratelimit"
	"github.com/tomtom215/consensus/internal/resolver"
	"github.com/tomtom215/consensus/internal/scraper"
	"github.com/tomtom215/consensus/internal/sources"
	"github.com/tomtom215/consensus/internal/supervisor/services"
)

// upstreamNames are the limiter keys of every remote client and scraper.
var upstreamNames = []string{
	string(models.SourceTMDB),
	"omdb",
	string(models.SourceMAL),
	string(models.SourceRottenTomatoes),
	string(models.SourceMetacritic),
}

// components holds everything main wires into the tree and closes on exit.
type components struct {
	store    *cache.Store
	badger   *cache.BadgerTier
	limiter  *ratelimit.Limiter
	mirror   *database.DB
	resolver *resolver.Resolver
}

// build constructs the rating pipeline from cfg. On error anything already
// opened is closed.
func build(cfg *config.Config) (_ *components, err error) {
	app := &components{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	if err := app.initCache(&cfg.Cache); err != nil {
		return nil, err
	}

	app.limiter = ratelimit.New(ratelimit.FromConfig(cfg.RateLimit.Default))
	app.limiter.RegisterAll(cfg.RateLimit, upstreamNames...)

	deps := sources.Deps{
		Store:      app.store,
		Limiter:    app.limiter,
		HTTPClient: sources.NewHTTPClient(),
	}
	policy := sources.PolicyFrom(&cfg.Sources)

	var srcs []resolver.Source
	if cfg.Mirror.Enabled {
		if err := app.initMirror(&cfg.Mirror); err != nil {
			return nil, err
		}
		srcs = append(srcs, resolver.Source{
			Client:      sources.NewLocalMirror(app.mirror, cfg.Mirror.Timeout, policy, deps),
			Concurrency: cfg.Mirror.Concurrency,
		})
	}
	if cfg.Sources.TMDB.Enabled {
		srcs = append(srcs, resolver.Source{Client: sources.NewTMDB(&cfg.Sources.TMDB, policy, deps), Concurrency: cfg.Sources.TMDB.Concurrency})
	}
	if cfg.Sources.OMDB.Enabled {
		srcs = append(srcs, resolver.Source{Client: sources.NewOMDB(&cfg.Sources.OMDB, policy, deps), Concurrency: cfg.Sources.OMDB.Concurrency})
	}
	if cfg.Sources.MAL.Enabled {
		srcs = append(srcs, resolver.Source{Client: sources.NewMAL(&cfg.Sources.MAL, policy, deps), Concurrency: cfg.Sources.MAL.Concurrency})
	}
	for _, s := range srcs {
		logging.Info().Str("source", s.Client.Name()).Int("concurrency", s.Concurrency).Msg("Rating source enabled")
	}

	var scrapers []*scraper.Scraper
	if cfg.Scraper.Enabled {
		scrapers = append(scrapers,
			scraper.New(scraper.RottenTomatoes(cfg.Scraper.RTBaseURL), &cfg.Scraper, deps),
			scraper.New(scraper.Metacritic(cfg.Scraper.MCBaseURL), &cfg.Scraper, deps),
		)
		logging.Info().Int("concurrency", cfg.Scraper.Concurrency).Msg("Scrapers enabled")
	}

	mapper, err := app.mapper(&cfg.IDMap)
	if err != nil {
		return nil, err
	}

	app.resolver = resolver.New(resolver.Options{
		Store:             app.store,
		Engine:            consolidate.New(app.store, &cfg.Consolidate),
		Fetcher:           batch.New(&cfg.Batch),
		Mapper:            mapper,
		Sources:           srcs,
		Scrapers:          scrapers,
		ScrapeConcurrency: cfg.Scraper.Concurrency,
		Timeout:           cfg.Server.RequestTimeout,
	})
	return app, nil
}

func (app *components) initCache(cfg *config.CacheConfig) error {
	policy, err := cache.NewPolicy(cache.PolicyType(cfg.Policy))
	if err != nil {
		return err
	}
	fast := cache.NewMemoryTier(cfg.Capacity, policy)

	var durable cache.Tier
	if cfg.BadgerPath != "" || cfg.BadgerInMemory {
		app.badger, err = cache.OpenBadgerTier(cache.BadgerConfig{
			Path:           cfg.BadgerPath,
			InMemory:       cfg.BadgerInMemory,
			SyncWrites:     cfg.SyncWrites,
			Retention:      cfg.Retention,
			GCDiscardRatio: cfg.GCDiscardRatio,
		})
		if err != nil {
			return fmt.Errorf("open durable cache: %w", err)
		}
		durable = app.badger
	}

	app.store = cache.NewStore(fast, durable, cache.Options{
		StaleServe:   cfg.StaleServe,
		StaleWindow:  cfg.StaleWindow,
		Retention:    cfg.Retention,
		FetchTimeout: cfg.FetchTimeout,
	})
	return nil
}

func (app *components) initMirror(cfg *config.MirrorConfig) error {
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("open mirror: %w", err)
	}
	app.mirror = db

	ctx := context.Background()
	if cfg.RatingsFile != "" {
		n, err := db.ImportRatings(ctx, cfg.RatingsFile)
		if err != nil {
			return fmt.Errorf("import ratings: %w", err)
		}
		logging.Info().Int64("rows", n).Str("file", cfg.RatingsFile).Msg("IMDb ratings imported")
	}
	if cfg.EpisodesFile != "" {
		n, err := db.ImportEpisodes(ctx, cfg.EpisodesFile)
		if err != nil {
			return fmt.Errorf("import episodes: %w", err)
		}
		logging.Info().Int64("rows", n).Str("file", cfg.EpisodesFile).Msg("IMDb episodes imported")
	}
	logging.Info().Str("path", cfg.Path).Msg("Mirror initialized successfully")
	return nil
}

// mapper chains the mapping file ahead of the mirror table. Either may be
// absent; with neither, foreign ids pass through untranslated.
func (app *components) mapper(cfg *config.IDMapConfig) (idmap.Mapper, error) {
	var chain []idmap.Mapper
	if cfg.File != "" {
		m, err := idmap.LoadFile(cfg.File)
		if err != nil {
			return nil, err
		}
		chain = append(chain, m)
		logging.Info().Int("entries", m.Len()).Str("file", cfg.File).Msg("ID mappings loaded")
	}
	if app.mirror != nil && cfg.Table != "" {
		chain = append(chain, idmap.NewSQLMapper(app.mirror.Conn(), cfg.Table))
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return idmap.Chain(chain...), nil
}

// pinger returns the mirror for health checks, or an untyped nil.
func (app *components) pinger() api.Pinger {
	if app.mirror == nil {
		return nil
	}
	return app.mirror
}

// collector returns the badger tier for value log GC, or an untyped nil.
func (app *components) collector() services.GarbageCollector {
	if app.badger == nil {
		return nil
	}
	return app.badger
}

func (app *components) close() {
	if app.store != nil {
		app.store.Drain()
	}
	if app.badger != nil {
		if err := app.badger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing durable cache")
		}
	}
	if app.mirror != nil {
		if err := app.mirror.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing mirror")
		}
	}
}

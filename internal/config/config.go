// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Loading order (koanf v2):
//  1. Defaults from defaultConfig
//  2. Optional YAML file (config.yaml, /etc/consensus/config.yaml or CONFIG_PATH)
//  3. Mapped environment variables
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("Failed to load config")
//	}
//	srv := &http.Server{Addr: cfg.Server.Addr()}
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Cache       CacheConfig       `koanf:"cache"`
	RateLimit   RateLimitConfig   `koanf:"ratelimit"`
	Mirror      MirrorConfig      `koanf:"mirror"`
	Sources     SourcesConfig     `koanf:"sources"`
	Scraper     ScraperConfig     `koanf:"scraper"`
	Batch       BatchConfig       `koanf:"batch"`
	Consolidate ConsolidateConfig `koanf:"consolidate"`
	IDMap       IDMapConfig       `koanf:"idmap"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RequestTimeout bounds one ratings lookup. Items not resolved in time
	// are reported as unavailable.
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`

	// CORSOrigins lists browser origins allowed to call the API. Empty
	// allows none.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables
	// inbound rate limiting.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Caller includes file and line in every event.
	Caller bool `koanf:"caller"`
}

// CacheConfig configures both cache tiers and the janitor.
type CacheConfig struct {
	// Capacity bounds the in-memory tier.
	Capacity int `koanf:"capacity" validate:"gt=0"`

	// Policy is the memory tier eviction policy: lru or lfu.
	Policy string `koanf:"policy" validate:"oneof=lru lfu"`

	// BadgerPath is the durable tier directory. Empty disables the durable
	// tier unless BadgerInMemory is set.
	BadgerPath     string `koanf:"badger_path"`
	BadgerInMemory bool   `koanf:"badger_in_memory"`
	SyncWrites     bool   `koanf:"sync_writes"`

	// StaleServe returns expired entries younger than StaleWindow while a
	// single background refresh runs.
	StaleServe  bool          `koanf:"stale_serve"`
	StaleWindow time.Duration `koanf:"stale_window"`

	// Retention keeps expired entries long enough to carry scrape failure
	// counters into the next attempt.
	Retention    time.Duration `koanf:"retention"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`

	SweepInterval  time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	GCInterval     time.Duration `koanf:"gc_interval" validate:"gt=0"`
	GCDiscardRatio float64       `koanf:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// LimitConfig is the admission policy for one upstream.
type LimitConfig struct {
	MaxConcurrent     int           `koanf:"max_concurrent" validate:"gte=1"`
	MinDelay          time.Duration `koanf:"min_delay" validate:"gte=0"`
	MaxDelay          time.Duration `koanf:"max_delay" validate:"gtefield=MinDelay"`
	MaxQueue          int           `koanf:"max_queue" validate:"gte=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
	Burst             int           `koanf:"burst" validate:"gte=0"`
}

// RateLimitConfig holds the default limit and per-source overrides keyed by
// source or scrape site name (tmdb, omdb, mal, rt, mc).
type RateLimitConfig struct {
	Default LimitConfig            `koanf:"default"`
	Sources map[string]LimitConfig `koanf:"sources" validate:"dive"`
}

// For returns the limit for name, falling back to the default.
func (r RateLimitConfig) For(name string) LimitConfig {
	if l, ok := r.Sources[name]; ok {
		return l
	}
	return r.Default
}

// MirrorConfig configures the DuckDB-backed local IMDb ratings mirror.
type MirrorConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
	ReadOnly  bool   `koanf:"read_only"`

	// RatingsFile and EpisodesFile are already-downloaded IMDb TSV exports
	// (title.ratings.tsv.gz, title.episode.tsv.gz) loaded at startup when set.
	RatingsFile  string `koanf:"ratings_file"`
	EpisodesFile string `koanf:"episodes_file"`

	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	Concurrency int           `koanf:"concurrency" validate:"gte=1"`
}

// UpstreamConfig configures one HTTP rating API.
type UpstreamConfig struct {
	Enabled     bool          `koanf:"enabled"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	Concurrency int           `koanf:"concurrency" validate:"gte=1"`
}

// SourcesConfig configures the source clients.
type SourcesConfig struct {
	TMDB UpstreamConfig `koanf:"tmdb"`
	OMDB UpstreamConfig `koanf:"omdb"`
	MAL  UpstreamConfig `koanf:"mal"`

	// PositiveTTL and NegativeTTL apply to every source value.
	PositiveTTL time.Duration `koanf:"positive_ttl" validate:"gt=0"`
	NegativeTTL time.Duration `koanf:"negative_ttl" validate:"gt=0"`

	UserAgent string `koanf:"user_agent"`

	// Breaker settings shared by all upstream circuit breakers.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// ScraperConfig configures the Rotten Tomatoes and Metacritic scrapers.
type ScraperConfig struct {
	Enabled     bool          `koanf:"enabled"`
	RTBaseURL   string        `koanf:"rt_base_url"`
	MCBaseURL   string        `koanf:"mc_base_url"`
	UserAgent   string        `koanf:"user_agent"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	Retries     int           `koanf:"retries" validate:"gte=0,lte=5"`
	RetryDelay  time.Duration `koanf:"retry_delay" validate:"gte=0"`
	Concurrency int           `koanf:"concurrency" validate:"gte=1"`
	PositiveTTL time.Duration `koanf:"positive_ttl" validate:"gt=0"`
	NegativeTTL time.Duration `koanf:"negative_ttl" validate:"gt=0"`
}

// BatchConfig configures windowed fan-out.
type BatchConfig struct {
	WarmupDelay time.Duration `koanf:"warmup_delay" validate:"gte=0"`
	WindowDelay time.Duration `koanf:"window_delay" validate:"gte=0"`
	ItemTimeout time.Duration `koanf:"item_timeout" validate:"gt=0"`
}

// ConsolidateConfig configures consolidated result caching.
type ConsolidateConfig struct {
	TTL         time.Duration `koanf:"ttl" validate:"gt=0"`
	NegativeTTL time.Duration `koanf:"negative_ttl" validate:"gt=0"`
}

// IDMapConfig configures foreign id translation. Both sources are optional
// and are consulted in order: File, then Table in the mirror database.
type IDMapConfig struct {
	File  string `koanf:"file"`
	Table string `koanf:"table"`
}

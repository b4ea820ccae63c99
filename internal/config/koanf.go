// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/consensus/config.yaml",
	"/etc/consensus/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. Config file and environment
// values are layered on top.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              7788,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RequestTimeout:    45 * time.Second,
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Capacity:       50000,
			Policy:         "lru",
			BadgerPath:     "/data/cache",
			StaleServe:     true,
			StaleWindow:    24 * time.Hour,
			Retention:      30 * 24 * time.Hour,
			FetchTimeout:   30 * time.Second,
			SweepInterval:  10 * time.Minute,
			GCInterval:     time.Hour,
			GCDiscardRatio: 0.5,
		},
		RateLimit: RateLimitConfig{
			Default: LimitConfig{
				MaxConcurrent: 4,
				MaxQueue:      200,
			},
			Sources: map[string]LimitConfig{
				"tmdb": {MaxConcurrent: 8, MaxQueue: 400, RequestsPerSecond: 40, Burst: 10},
				"omdb": {MaxConcurrent: 4, MinDelay: 50 * time.Millisecond, MaxDelay: 150 * time.Millisecond, MaxQueue: 200},
				"mal":  {MaxConcurrent: 2, MinDelay: 350 * time.Millisecond, MaxDelay: 600 * time.Millisecond, MaxQueue: 100, RequestsPerSecond: 3, Burst: 1},
				"rt":   {MaxConcurrent: 1, MinDelay: 1500 * time.Millisecond, MaxDelay: 4 * time.Second, MaxQueue: 50},
				"mc":   {MaxConcurrent: 1, MinDelay: 1500 * time.Millisecond, MaxDelay: 4 * time.Second, MaxQueue: 50},
			},
		},
		Mirror: MirrorConfig{
			Enabled:     true,
			Path:        "/data/imdb.duckdb",
			MaxMemory:   "1GB",
			Threads:     0,
			Timeout:     10 * time.Second,
			Concurrency: 16,
		},
		Sources: SourcesConfig{
			TMDB: UpstreamConfig{
				BaseURL:     "https://api.themoviedb.org/3",
				Timeout:     10 * time.Second,
				Concurrency: 8,
			},
			OMDB: UpstreamConfig{
				BaseURL:     "https://www.omdbapi.com",
				Timeout:     12 * time.Second,
				Concurrency: 4,
			},
			MAL: UpstreamConfig{
				Enabled:     true,
				BaseURL:     "https://api.jikan.moe/v4",
				Timeout:     15 * time.Second,
				Concurrency: 2,
			},
			PositiveTTL:     7 * 24 * time.Hour,
			NegativeTTL:     7 * 24 * time.Hour,
			UserAgent:       "consensus/1.0",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Scraper: ScraperConfig{
			Enabled:     true,
			RTBaseURL:   "https://www.rottentomatoes.com",
			MCBaseURL:   "https://www.metacritic.com",
			UserAgent:   "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
			Timeout:     15 * time.Second,
			Retries:     2,
			RetryDelay:  time.Second,
			Concurrency: 2,
			PositiveTTL: 7 * 24 * time.Hour,
			NegativeTTL: 3 * 24 * time.Hour,
		},
		Batch: BatchConfig{
			WarmupDelay: 250 * time.Millisecond,
			WindowDelay: 25 * time.Millisecond,
			ItemTimeout: 20 * time.Second,
		},
		Consolidate: ConsolidateConfig{
			TTL:         12 * time.Hour,
			NegativeTTL: time.Hour,
		},
		IDMap: IDMapConfig{
			Table: "id_mappings",
		},
	}
}

// Load loads configuration from defaults, an optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf performs the layered load.
//
// Priority (highest wins): environment variables, config file, defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// TMDB_API_KEY -> sources.tmdb.api_key
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

var envMappings = map[string]string{
	// Server
	"http_host":            "server.host",
	"http_port":            "server.port",
	"http_read_timeout":    "server.read_timeout",
	"http_write_timeout":   "server.write_timeout",
	"http_request_timeout": "server.request_timeout",
	"http_cors_origins":    "server.cors_origins",
	"http_rate_limit":      "server.rate_limit_requests",
	"http_rate_window":     "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Cache
	"cache_capacity":         "cache.capacity",
	"cache_policy":           "cache.policy",
	"cache_badger_path":      "cache.badger_path",
	"cache_badger_in_memory": "cache.badger_in_memory",
	"cache_sync_writes":      "cache.sync_writes",
	"cache_stale_serve":      "cache.stale_serve",
	"cache_stale_window":     "cache.stale_window",
	"cache_retention":        "cache.retention",
	"cache_fetch_timeout":    "cache.fetch_timeout",

	// Local mirror
	"mirror_enabled":       "mirror.enabled",
	"mirror_path":          "mirror.path",
	"duckdb_path":          "mirror.path",
	"duckdb_max_memory":    "mirror.max_memory",
	"duckdb_threads":       "mirror.threads",
	"mirror_read_only":     "mirror.read_only",
	"mirror_ratings_file":  "mirror.ratings_file",
	"mirror_episodes_file": "mirror.episodes_file",

	// Upstream APIs
	"tmdb_enabled":        "sources.tmdb.enabled",
	"tmdb_api_key":        "sources.tmdb.api_key",
	"tmdb_base_url":       "sources.tmdb.base_url",
	"tmdb_timeout":        "sources.tmdb.timeout",
	"omdb_enabled":        "sources.omdb.enabled",
	"omdb_api_key":        "sources.omdb.api_key",
	"omdb_base_url":       "sources.omdb.base_url",
	"omdb_timeout":        "sources.omdb.timeout",
	"mal_enabled":         "sources.mal.enabled",
	"mal_base_url":        "sources.mal.base_url",
	"mal_timeout":         "sources.mal.timeout",
	"source_positive_ttl": "sources.positive_ttl",
	"source_negative_ttl": "sources.negative_ttl",

	// Scraper
	"scraper_enabled":     "scraper.enabled",
	"scraper_user_agent":  "scraper.user_agent",
	"scraper_retries":     "scraper.retries",
	"scraper_retry_delay": "scraper.retry_delay",
	"rt_base_url":         "scraper.rt_base_url",
	"mc_base_url":         "scraper.mc_base_url",

	// Batch
	"batch_warmup_delay": "batch.warmup_delay",
	"batch_window_delay": "batch.window_delay",
	"batch_item_timeout": "batch.item_timeout",

	// Consolidation
	"consolidate_ttl":          "consolidate.ttl",
	"consolidate_negative_ttl": "consolidate.negative_ttl",

	// ID mapping
	"idmap_file":  "idmap.file",
	"idmap_table": "idmap.table",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

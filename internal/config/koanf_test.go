// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 7788 {
		t.Errorf("Server.Port = %d, want 7788", cfg.Server.Port)
	}
	if cfg.Cache.Policy != "lru" {
		t.Errorf("Cache.Policy = %q, want lru", cfg.Cache.Policy)
	}
	if cfg.Sources.PositiveTTL != 7*24*time.Hour {
		t.Errorf("Sources.PositiveTTL = %v, want 168h", cfg.Sources.PositiveTTL)
	}
	if cfg.Sources.TMDB.Enabled || cfg.Sources.OMDB.Enabled {
		t.Error("keyed upstreams should be disabled by default")
	}
	if cfg.Scraper.Retries != 2 {
		t.Errorf("Scraper.Retries = %d, want 2", cfg.Scraper.Retries)
	}
	if cfg.Consolidate.NegativeTTL != time.Hour {
		t.Errorf("Consolidate.NegativeTTL = %v, want 1h", cfg.Consolidate.NegativeTTL)
	}

	rt := cfg.RateLimit.For("rt")
	if rt.MaxConcurrent != 1 || rt.MinDelay != 1500*time.Millisecond {
		t.Errorf("rt limit = %+v", rt)
	}
	if got := cfg.RateLimit.For("unknown"); got != cfg.RateLimit.Default {
		t.Errorf("unknown source limit = %+v, want default", got)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"CACHE_BADGER_PATH", "cache.badger_path"},
		{"TMDB_API_KEY", "sources.tmdb.api_key"},
		{"OMDB_API_KEY", "sources.omdb.api_key"},
		{"DUCKDB_PATH", "mirror.path"},
		{"MIRROR_PATH", "mirror.path"},
		{"scraper_retries", "scraper.retries"},
		{"BATCH_WARMUP_DELAY", "batch.warmup_delay"},

		// Unknown (should return empty)
		{"RANDOM_VAR", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestFindConfigFile verifies config file discovery
func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	t.Run("no config file exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if got := findConfigFile(); got != "" && !strings.HasPrefix(got, "/etc/") {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if err := os.WriteFile("config.yaml", []byte("logging:\n  level: debug\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		defer os.Remove("config.yaml")
		if got := findConfigFile(); got != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", got)
		}
	})

	t.Run("CONFIG_PATH takes priority", func(t *testing.T) {
		custom := filepath.Join(tmpDir, "custom.yaml")
		if err := os.WriteFile(custom, []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		t.Setenv(ConfigPathEnvVar, custom)
		if got := findConfigFile(); got != custom {
			t.Errorf("findConfigFile() = %q, want %q", got, custom)
		}
	})
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TMDB_ENABLED", "true")
	t.Setenv("TMDB_API_KEY", "tmdb-key")
	t.Setenv("CACHE_STALE_WINDOW", "2h")
	t.Setenv("CACHE_BADGER_PATH", "/tmp/consensus-cache")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Sources.TMDB.Enabled || cfg.Sources.TMDB.APIKey != "tmdb-key" {
		t.Errorf("TMDB = %+v", cfg.Sources.TMDB)
	}
	if cfg.Cache.StaleWindow != 2*time.Hour {
		t.Errorf("Cache.StaleWindow = %v, want 2h", cfg.Cache.StaleWindow)
	}
	if cfg.Cache.BadgerPath != "/tmp/consensus-cache" {
		t.Errorf("Cache.BadgerPath = %q", cfg.Cache.BadgerPath)
	}

	// Defaults still apply for unset values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Sources.TMDB.BaseURL != "https://api.themoviedb.org/3" {
		t.Errorf("TMDB.BaseURL = %q (default)", cfg.Sources.TMDB.BaseURL)
	}
}

// TestLoadWithKoanfConfigFile tests loading configuration from a YAML file,
// including a partial per-source rate limit override.
func TestLoadWithKoanfConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	configContent := `
server:
  port: 8088
cache:
  policy: lfu
  capacity: 1000
ratelimit:
  sources:
    rt:
      max_concurrent: 2
      min_delay: 2s
      max_delay: 5s
      max_queue: 10
sources:
  omdb:
    enabled: true
    api_key: omdb-file-key
`
	path := filepath.Join(tmpDir, "consensus.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("OMDB_API_KEY", "omdb-env-key")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want 8088", cfg.Server.Port)
	}
	if cfg.Cache.Policy != "lfu" || cfg.Cache.Capacity != 1000 {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	rt := cfg.RateLimit.For("rt")
	if rt.MaxConcurrent != 2 || rt.MinDelay != 2*time.Second || rt.MaxDelay != 5*time.Second {
		t.Errorf("rt limit = %+v", rt)
	}
	if mc := cfg.RateLimit.For("mc"); mc.MaxConcurrent != 1 {
		t.Errorf("mc limit should keep its default, got %+v", mc)
	}
	if cfg.Sources.OMDB.APIKey != "omdb-env-key" {
		t.Errorf("env should override file, got %q", cfg.Sources.OMDB.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			modify: func(*Config) {},
		},
		{
			name:    "tmdb without key",
			modify:  func(c *Config) { c.Sources.TMDB.Enabled = true },
			wantErr: "TMDB_API_KEY is required",
		},
		{
			name: "omdb bad url",
			modify: func(c *Config) {
				c.Sources.OMDB.Enabled = true
				c.Sources.OMDB.APIKey = "k"
				c.Sources.OMDB.BaseURL = "ftp://omdb"
			},
			wantErr: "scheme must be http or https",
		},
		{
			name: "delay range inverted",
			modify: func(c *Config) {
				c.RateLimit.Default.MinDelay = 2 * time.Second
				c.RateLimit.Default.MaxDelay = time.Second
			},
			wantErr: "max_delay",
		},
		{
			name:    "unknown policy",
			modify:  func(c *Config) { c.Cache.Policy = "fifo" },
			wantErr: "must be one of",
		},
		{
			name:    "retention shorter than stale window",
			modify:  func(c *Config) { c.Cache.Retention = time.Hour },
			wantErr: "CACHE_RETENTION",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "zero request timeout",
			modify:  func(c *Config) { c.Server.RequestTimeout = 0 },
			wantErr: "request_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateHTTPURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.themoviedb.org/3", false},
		{"http://localhost:8080", false},
		{"https://www.omdbapi.com/?apikey=x", true},
		{"www.omdbapi.com", true},
		{"https://", true},
	}
	for _, tt := range tests {
		err := validateHTTPURL(tt.url, "TEST_URL")
		if (err != nil) != tt.wantErr {
			t.Errorf("validateHTTPURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

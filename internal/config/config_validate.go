// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/consensus/internal/validation"
)

// Validate checks struct tag constraints first, then the cross-field rules
// tags cannot express.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validateSources(); err != nil {
		return err
	}

	if err := c.validateScraper(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateCache() error {
	if c.Cache.StaleServe && c.Cache.StaleWindow <= 0 {
		return fmt.Errorf("CACHE_STALE_WINDOW must be positive when CACHE_STALE_SERVE=true")
	}
	if c.Cache.Retention > 0 && c.Cache.Retention < c.Cache.StaleWindow {
		return fmt.Errorf("CACHE_RETENTION (%s) must not be shorter than CACHE_STALE_WINDOW (%s)",
			c.Cache.Retention, c.Cache.StaleWindow)
	}
	return nil
}

func (c *Config) validateSources() error {
	upstreams := []struct {
		name    string
		cfg     UpstreamConfig
		needKey bool
	}{
		{"TMDB", c.Sources.TMDB, true},
		{"OMDB", c.Sources.OMDB, true},
		{"MAL", c.Sources.MAL, false},
	}

	for _, u := range upstreams {
		if !u.cfg.Enabled {
			continue
		}
		if u.needKey && u.cfg.APIKey == "" {
			return fmt.Errorf("%s_API_KEY is required when %s_ENABLED=true", u.name, u.name)
		}
		if err := validateHTTPURL(u.cfg.BaseURL, u.name+"_BASE_URL"); err != nil {
			return err
		}
	}

	if c.Mirror.Enabled && c.Mirror.Path == "" {
		return fmt.Errorf("MIRROR_PATH is required when MIRROR_ENABLED=true")
	}
	return nil
}

func (c *Config) validateScraper() error {
	if !c.Scraper.Enabled {
		return nil
	}
	if err := validateHTTPURL(c.Scraper.RTBaseURL, "RT_BASE_URL"); err != nil {
		return err
	}
	return validateHTTPURL(c.Scraper.MCBaseURL, "MC_BASE_URL")
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console; got %q", c.Logging.Format)
	}
	return nil
}

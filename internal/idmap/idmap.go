// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

// Package idmap translates foreign catalog ids (mal:, kitsu:, anilist:,
// anidb:) onto IMDb ids so every source can be queried by one canonical id.
package idmap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/consensus/internal/logging"
)

var foreignPrefixes = []string{"mal:", "kitsu:", "anilist:", "anidb:"}

// IsForeign reports whether id uses a non-IMDb prefix.
func IsForeign(id string) bool {
	for _, p := range foreignPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// MALID extracts the MyAnimeList id from a "mal:<n>" id.
func MALID(id string) (string, bool) {
	rest, ok := strings.CutPrefix(id, "mal:")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// Mapper resolves a foreign id to an IMDb id.
type Mapper interface {
	CanonicalID(ctx context.Context, foreignID string) (string, bool)
}

// MapperFunc adapts a function to Mapper.
type MapperFunc func(ctx context.Context, foreignID string) (string, bool)

func (f MapperFunc) CanonicalID(ctx context.Context, foreignID string) (string, bool) {
	return f(ctx, foreignID)
}

// Chain tries each mapper in order and returns the first hit.
func Chain(mappers ...Mapper) Mapper {
	return MapperFunc(func(ctx context.Context, id string) (string, bool) {
		for _, m := range mappers {
			if m == nil {
				continue
			}
			if out, ok := m.CanonicalID(ctx, id); ok {
				return out, true
			}
		}
		return "", false
	})
}

// StaticMapper is an in-memory mapping table.
type StaticMapper struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewStaticMapper copies entries into a new mapper.
func NewStaticMapper(entries map[string]string) *StaticMapper {
	m := make(map[string]string, len(entries))
	for k, v := range entries {
		m[k] = v
	}
	return &StaticMapper{m: m}
}

func (s *StaticMapper) CanonicalID(_ context.Context, id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.m[id]
	return out, ok
}

// Set adds or replaces one mapping.
func (s *StaticMapper) Set(foreignID, imdbID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[foreignID] = imdbID
}

func (s *StaticMapper) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// LoadFile reads a YAML mapping file:
//
//	mappings:
//	  "mal:5114": tt1355642
//	  "kitsu:3936": tt1355642
func LoadFile(path string) (*StaticMapper, error) {
	k := koanf.New("/")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load id mappings from %s: %w", path, err)
	}
	entries := k.StringMap("mappings")
	if len(entries) == 0 {
		return nil, fmt.Errorf("no mappings found in %s", path)
	}
	return NewStaticMapper(entries), nil
}

// SQLMapper looks ids up in a table with (foreign_id, imdb_id) columns,
// typically shipped alongside the local ratings mirror.
type SQLMapper struct {
	db    *sql.DB
	query string
}

// NewSQLMapper queries table on db.
func NewSQLMapper(db *sql.DB, table string) *SQLMapper {
	return &SQLMapper{
		db:    db,
		query: "SELECT imdb_id FROM " + table + " WHERE foreign_id = ? LIMIT 1",
	}
}

func (s *SQLMapper) CanonicalID(ctx context.Context, id string) (string, bool) {
	var out string
	err := s.db.QueryRowContext(ctx, s.query, id).Scan(&out)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Ctx(ctx).Warn().Err(err).Str("id", id).Msg("ID mapping query failed")
		}
		return "", false
	}
	return out, out != ""
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/consensus/internal/cache"
	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/ratelimit"
)

// DefaultMaxItems bounds one batch request.
const DefaultMaxItems = 200

// maxBodyBytes bounds a POST body.
const maxBodyBytes = 1 << 20

// Resolver is the engine entry point the handlers call.
type Resolver interface {
	Resolve(ctx context.Context, items []models.MediaItem) map[string]*models.ConsolidatedRating
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerConfig wires a Handler. Only Resolver is required.
type HandlerConfig struct {
	Resolver Resolver
	Mirror   Pinger
	Store    *cache.Store
	Limiter  *ratelimit.Limiter
	Version  string
	MaxItems int
}

// Handler serves the rating endpoints.
type Handler struct {
	resolver  Resolver
	mirror    Pinger
	store     *cache.Store
	limiter   *ratelimit.Limiter
	version   string
	maxItems  int
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Handler{
		resolver:  cfg.Resolver,
		mirror:    cfg.Mirror,
		store:     cfg.Store,
		limiter:   cfg.Limiter,
		version:   cfg.Version,
		maxItems:  cfg.MaxItems,
		startTime: time.Now(),
	}
}

// GetRatings handles GET /api/v1/ratings?item=<id>:<type>&item=...
func (h *Handler) GetRatings(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()["item"]
	if len(params) > h.maxItems {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("at most %d items per request", h.maxItems), nil)
		return
	}

	req := models.RatingsRequest{Items: make([]models.MediaItem, 0, len(params))}
	for _, p := range params {
		item, err := parseItemParam(p)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
				fmt.Sprintf("item %q must be <id>:<type> or a series:season:episode id", sanitizeLogValue(p)), nil)
			return
		}
		req.Items = append(req.Items, item)
	}

	h.serveRatings(w, r, &req)
}

// PostRatings handles POST /api/v1/ratings with a RatingsRequest body.
// Titles and years supplied here let the scrapers find series pages.
func (h *Handler) PostRatings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "request body too large", nil)
			return
		}
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "request body could not be read", nil)
		return
	}
	if len(body) == 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "request body is empty", nil)
		return
	}

	var req models.RatingsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "request body is not valid JSON", nil)
		return
	}
	if len(req.Items) > h.maxItems {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
			fmt.Sprintf("at most %d items per request", h.maxItems), nil)
		return
	}
	for i := range req.Items {
		req.Items[i] = req.Items[i].Normalize()
	}

	h.serveRatings(w, r, &req)
}

// GetRating handles GET /api/v1/ratings/{id}?type=&title=&year=.
// Unlike the batch endpoints it answers 404 when nothing is known.
func (h *Handler) GetRating(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	item := models.MediaItem{ID: chi.URLParam(r, "id"), Title: q.Get("title")}
	if t := q.Get("type"); t != "" {
		typ, err := models.ParseMediaType(t)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "type must be movie, series or episode", nil)
			return
		}
		item.Type = typ
	}
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "year must be a number", nil)
			return
		}
		item.Year = year
	}
	item = item.Normalize()
	if apiErr := validateRequest(&item); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	start := time.Now()
	rating, ok := h.resolver.Resolve(r.Context(), []models.MediaItem{item})[item.ID]
	if !ok {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "no rating available for this item", nil)
		return
	}
	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   rating,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Requested:   1,
			Resolved:    1,
		},
	})
}

func (h *Handler) serveRatings(w http.ResponseWriter, r *http.Request, req *models.RatingsRequest) {
	if apiErr := validateRequest(req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	start := time.Now()
	ratings := h.resolver.Resolve(r.Context(), req.Items)
	elapsed := time.Since(start)

	logging.Ctx(r.Context()).Debug().
		Int("requested", len(req.Items)).
		Int("resolved", len(ratings)).
		Dur("duration", elapsed).
		Msg("Ratings served")

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   ratings,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: elapsed.Milliseconds(),
			Requested:   len(req.Items),
			Resolved:    len(ratings),
		},
	})
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/consensus/internal/logging"
	"github.com/tomtom215/consensus/internal/models"
	"github.com/tomtom215/consensus/internal/validation"
)

// sanitizeLogValue escapes control characters so client input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error envelope. err is logged, never returned to
// the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API Error")
	}

	respondJSON(w, r, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

// respondAPIError sends a prepared APIError, typically from validation.
func respondAPIError(w http.ResponseWriter, r *http.Request, status int, apiErr *models.APIError) {
	respondJSON(w, r, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    apiErr,
	})
}

// validateRequest validates a struct using go-playground/validator and
// returns nil or a VALIDATION_ERROR APIError.
func validateRequest(v any) *models.APIError {
	if verr := validation.ValidateStruct(v); verr != nil {
		return verr.ToAPIError()
	}
	return nil
}

// parseItemParam parses one "item" query value.
//
//	tt0111161:movie      -> {ID: tt0111161, Type: movie}
//	tt0944947:1:1        -> {ID: tt0944947:1:1, Type: episode}
//	mal:5114:series      -> {ID: mal:5114, Type: series}
func parseItemParam(raw string) (models.MediaItem, error) {
	raw = strings.TrimSpace(raw)
	if _, _, _, ok := models.ParseEpisodeID(raw); ok {
		return models.MediaItem{ID: raw, Type: models.MediaTypeEpisode}.Normalize(), nil
	}

	i := strings.LastIndexByte(raw, ':')
	if i <= 0 || i == len(raw)-1 {
		return models.MediaItem{}, fmt.Errorf("%w: %q", ErrMalformedItem, raw)
	}
	typ, err := models.ParseMediaType(raw[i+1:])
	if err != nil {
		return models.MediaItem{}, fmt.Errorf("%w: %q: %w", ErrMalformedItem, raw, err)
	}
	return models.MediaItem{ID: raw[:i], Type: typ}.Normalize(), nil
}

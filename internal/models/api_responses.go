// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package models

import (
	"time"
)

// APIResponse is the envelope used by every HTTP endpoint.
//
// Status is "success" with Data populated, or "error" with Error populated.
//
//	{
//	  "status": "success",
//	  "data": {"tt0111161": {"rating": 8.9, "color": "excellent", ...}},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "query_time_ms": 45}
//	}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data,omitempty"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata carries timing information for a response.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Requested   int       `json:"requested,omitempty"`
	Resolved    int       `json:"resolved,omitempty"`
}

// APIError is a machine-readable error.
//
// Codes: VALIDATION_ERROR, NOT_FOUND, INTERNAL_ERROR.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// RatingsRequest is the body accepted by the batch ratings endpoint.
type RatingsRequest struct {
	Items []MediaItem `json:"items" validate:"required,min=1,max=200,dive"`
}

// HealthStatus is returned by GET /health.
//
// Status is "healthy" when every enabled dependency answers, "degraded"
// otherwise. Degraded instances still serve cached ratings.
type HealthStatus struct {
	Status          string                  `json:"status"`
	Version         string                  `json:"version"`
	Uptime          float64                 `json:"uptime_seconds"`
	MirrorConnected bool                    `json:"mirror_connected"`
	MirrorError     string                  `json:"mirror_error,omitempty"`
	Cache           any                     `json:"cache,omitempty"`
	RateLimits      map[string]LimiterState `json:"rate_limits,omitempty"`
}

// LimiterState is the live admission state of one upstream.
type LimiterState struct {
	Active       int        `json:"active"`
	Waiting      int        `json:"waiting"`
	LastDispatch *time.Time `json:"last_dispatch,omitempty"`
}

// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/consensus/internal/models"
)

// healthPingTimeout bounds the mirror ping.
const healthPingTimeout = 2 * time.Second

// Health reports dependency status. It always answers 200 while the process
// can serve; Status is "degraded" when the local mirror is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := models.HealthStatus{
		Status:          "healthy",
		Version:         h.version,
		Uptime:          time.Since(h.startTime).Seconds(),
		MirrorConnected: true,
	}

	if h.mirror != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		err := h.mirror.Ping(ctx)
		cancel()
		if err != nil {
			health.Status = "degraded"
			health.MirrorConnected = false
			health.MirrorError = err.Error()
		}
	} else {
		health.MirrorConnected = false
	}

	if h.store != nil {
		health.Cache = h.store.Stats()
	}

	if h.limiter != nil {
		names := h.limiter.Sources()
		health.RateLimits = make(map[string]models.LimiterState, len(names))
		for _, name := range names {
			snap := h.limiter.Snapshot(name)
			st := models.LimiterState{Active: snap.Active, Waiting: snap.Waiting}
			if !snap.LastDispatch.IsZero() {
				last := snap.LastDispatch
				st.LastDispatch = &last
			}
			health.RateLimits[name] = st
		}
	}

	respondJSON(w, r, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     health,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

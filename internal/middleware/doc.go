// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package middleware provides the chi-compatible HTTP middleware shared by the
API router.

Key Components:

  - RequestID: honors or generates X-Request-ID and threads it into the
    logging context so every log line of a lookup carries it
  - PrometheusMetrics: request counts, latency and in-flight gauge labelled
    by chi route pattern, not raw path
  - AccessLog: one structured line per request
  - SecurityHeaders: nosniff, frame denial and referrer policy

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)
	r.Use(middleware.SecurityHeaders)
*/
package middleware

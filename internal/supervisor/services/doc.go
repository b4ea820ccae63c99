// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

/*
Package services adapts server components to suture's Serve(ctx) error
model.

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe into Serve

Cache Janitor (CacheJanitorService):
  - Sweeps expired memory tier entries past retention
  - Runs badger value log GC on its own interval

Each service implements fmt.Stringer so suture logs it by name.
*/
package services

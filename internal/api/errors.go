// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

package api

import "errors"

// ErrMalformedItem is returned for an item parameter that is neither
// "<id>:<type>" nor a Stremio episode id.
var ErrMalformedItem = errors.New("malformed item")

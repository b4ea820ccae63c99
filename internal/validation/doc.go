// Consensus - Consolidated Media Rating Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/consensus

// Package validation wraps go-playground/validator with a shared instance
// and readable error messages.
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
//
// Configuration structs and HTTP request bodies are validated through the
// same instance so struct metadata is parsed once.
package validation

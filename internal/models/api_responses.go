// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package models defines the API response envelope shared by all HTTP
// endpoints.
package models

import "time"

// APIResponse is the standardized response wrapper for every endpoint,
// successful or not.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries a stable machine-readable code plus a human message.
//
// Codes used by the API:
//   - VALIDATION_ERROR: malformed request body or parameters
//   - DIMENSION_MISMATCH: survey response of the wrong shape
//   - DUPLICATE_IDENTITY: registration name already taken
//   - MODEL_NOT_FITTED: no model artifact published yet
//   - INVALID_CREDENTIALS: login rejected
//   - NOT_FOUND: unknown resource
//   - SERVICE_ERROR: internal failure
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/kindredlabs/kindred/internal/logging"
	"github.com/kindredlabs/kindred/internal/models"
)

// validate is the shared request validator instance. validator.New is
// expensive; the instance caches struct metadata and is safe for
// concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// respondJSON writes a JSON response with the standard envelope.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError writes an error response with a stable code.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondSuccess writes a success response, recording elapsed query time.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// decodeJSON decodes and validates a request body into dst. Returns false
// after writing an error response when the body is malformed or fails
// validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed request body", err)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			msg := fmt.Sprintf("Field %q fails %q validation", field.Field(), field.Tag())
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
			return false
		}
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", err)
		return false
	}
	return true
}

// getIntParam parses an integer query parameter with a default.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

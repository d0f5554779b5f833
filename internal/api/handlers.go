// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package api provides the HTTP handlers and routing for Kindred.
//
// All handlers follow a consistent pattern:
//  1. Parameter parsing and validation
//  2. Scoring service / store call with the request context
//  3. JSON response in the standard envelope
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/kindredlabs/kindred/internal/artifacts"
	"github.com/kindredlabs/kindred/internal/config"
	"github.com/kindredlabs/kindred/internal/database"
	"github.com/kindredlabs/kindred/internal/models"
	"github.com/kindredlabs/kindred/internal/scoring"
	"github.com/kindredlabs/kindred/internal/survey"
)

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	svc      *scoring.Service
	db       *database.DB
	manifest *survey.Manifest
	snapshot *artifacts.Snapshot
	tokens   *TokenIssuer
	cfg      *config.Config
}

// NewHandler creates the API handler.
func NewHandler(svc *scoring.Service, db *database.DB, manifest *survey.Manifest, snapshot *artifacts.Snapshot, cfg *config.Config) *Handler {
	return &Handler{
		svc:      svc,
		db:       db,
		manifest: manifest,
		snapshot: snapshot,
		tokens:   NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL),
		cfg:      cfg,
	}
}

// HealthLive reports process liveness.
//
// Method: GET
// Path: /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady reports readiness: database reachable, and whether a model
// artifact is published. A missing model keeps the service ready (survey
// and login still work) but is surfaced for operators.
//
// Method: GET
// Path: /api/v1/health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Database not available", err)
		return
	}

	version := h.snapshot.Version()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status":          "ready",
		"model_published": version != "",
		"model_version":   version,
	}, start)
}

// Survey returns the questionnaire manifest: scales and ordered items with
// prompts, the same schema the feature extractor scores against.
//
// Method: GET
// Path: /api/v1/survey
func (h *Handler) Survey(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"scales":     survey.Scales(),
		"items":      h.manifest.Items(),
		"min_answer": survey.MinAnswer,
		"max_answer": survey.MaxAnswer,
	}, start)
}

// Me returns the authenticated user's profile.
//
// Method: GET
// Path: /api/v1/users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Authentication required", nil)
		return
	}

	user, err := h.db.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Profile lookup failed", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"id":            user.ID,
		"name":          user.Name,
		"age":           user.Age,
		"gender":        user.Gender,
		"country":       user.Country,
		"cluster":       user.ClusterID,
		"model_version": user.ModelVersion,
		"created_at":    user.CreatedAt,
	}, start)
}

// Matches returns the authenticated user's ranked matches.
//
// Method: GET
// Path: /api/v1/matches?limit=10
//
// Response:
//   - 200: Ranked matches (possibly empty — matching is non-critical and
//     degrades to an empty list on candidate-fetch failures)
//   - 401: Missing or invalid token
//   - 404: Token subject no longer exists
func (h *Handler) Matches(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, ok := userIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Authentication required", nil)
		return
	}

	limit := getIntParam(r, "limit", h.cfg.API.MatchLimit)
	if limit <= 0 || limit > h.cfg.API.MaxMatchLimit {
		limit = h.cfg.API.MatchLimit
	}

	matches, err := h.svc.Matches(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "User not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Match listing failed", err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"matches": matches,
			"count":   len(matches),
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

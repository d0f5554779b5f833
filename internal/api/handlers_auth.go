// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/kindredlabs/kindred/internal/database"
	"github.com/kindredlabs/kindred/internal/metrics"
	"github.com/kindredlabs/kindred/internal/scoring"
	"github.com/kindredlabs/kindred/internal/survey"
)

// registerRequest is the registration payload. The password cap matches
// bcrypt's 72-byte input limit.
type registerRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=50"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Age          int    `json:"age" validate:"omitempty,gte=13,lte=120"`
	Gender       string `json:"gender" validate:"omitempty,max=32"`
	Country      string `json:"country" validate:"omitempty,max=64"`
	Answers      []int  `json:"answers" validate:"required"`
	ProfileImage string `json:"profile_image,omitempty" validate:"omitempty,base64"`
}

type loginRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=50"`
	Password string `json:"password" validate:"required,min=1,max=72"`
}

// Register scores a new respondent and creates their account.
//
// Method: POST
// Path: /api/v1/auth/register
//
// Response:
//   - 201: Account created, returns token plus cluster assignment
//   - 400: Malformed body, wrong answer count, or out-of-range answer
//   - 409: Name already taken
//   - 503: No model artifact published yet
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var image []byte
	if req.ProfileImage != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ProfileImage)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Profile image is not valid base64", err)
			return
		}
		image = decoded
	}

	user, err := h.svc.Register(r.Context(), &scoring.RegistrationRequest{
		Name:         req.Name,
		Password:     req.Password,
		Age:          req.Age,
		Gender:       req.Gender,
		Country:      req.Country,
		Answers:      req.Answers,
		ProfileImage: image,
	})
	if err != nil {
		switch {
		case errors.Is(err, survey.ErrDimensionMismatch):
			respondError(w, http.StatusBadRequest, "DIMENSION_MISMATCH", "Survey response has the wrong number of answers", err)
		case errors.Is(err, survey.ErrAnswerOutOfRange):
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Survey answer outside the allowed range", err)
		case errors.Is(err, database.ErrDuplicateIdentity):
			respondError(w, http.StatusConflict, "DUPLICATE_IDENTITY", "Name is already registered", nil)
		case errors.Is(err, scoring.ErrNotFitted):
			respondError(w, http.StatusServiceUnavailable, "MODEL_NOT_FITTED", "No model is available to score registrations", nil)
		default:
			respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Registration failed", err)
		}
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Token issuance failed", err)
		return
	}

	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"token":         token,
		"user_id":       user.ID,
		"name":          user.Name,
		"cluster":       user.ClusterID,
		"model_version": user.ModelVersion,
	}, start)
}

// Login verifies credentials and returns a session token.
//
// Method: POST
// Path: /api/v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.Authenticate(r.Context(), req.Name, req.Password)
	if err != nil {
		if errors.Is(err, scoring.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid name or password", nil)
			return
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Login failed", err)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "SERVICE_ERROR", "Token issuance failed", err)
		return
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"user_id": user.ID,
		"name":    user.Name,
		"cluster": user.ClusterID,
	}, start)
}

// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kindredlabs/kindred/internal/logging"
	"github.com/kindredlabs/kindred/internal/metrics"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
)

// RequestID attaches a request id to the context and response headers,
// honoring an inbound X-Request-ID from a trusted proxy.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// userIDFromContext returns the authenticated user id set by RequireAuth.
func userIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// RequireAuth verifies the Bearer token and stores the subject user id in
// the request context. Requests without a valid token are rejected before
// reaching the handler.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Missing bearer token", nil)
			return
		}

		userID, err := h.tokens.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid or expired token", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// Observe records per-request duration metrics and an access log line.
// Route patterns (not raw paths) label the histogram to bound cardinality.
func Observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		metrics.ObserveHTTPRequest(pattern, r.Method, rec.status, elapsed)

		requestID, _ := r.Context().Value(requestIDKey).(string)
		logging.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", pattern).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("Request handled")
	})
}

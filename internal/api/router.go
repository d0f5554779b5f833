// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the HTTP routing tree.
//
// Layout:
//
//	/metrics                    Prometheus scrape endpoint
//	/api/v1/health/live         Liveness
//	/api/v1/health/ready        Readiness (DB + model snapshot)
//	/api/v1/survey              Questionnaire manifest
//	/api/v1/auth/register       Create account (stricter rate limit)
//	/api/v1/auth/login          Issue token (stricter rate limit)
//	/api/v1/users/me            Authenticated profile
//	/api/v1/matches             Authenticated ranked matches
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Observe)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health/live", h.HealthLive)
		r.Get("/health/ready", h.HealthReady)

		// Auth endpoints get a tighter limit: registration runs bcrypt and
		// a model transform, login runs bcrypt.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(h.cfg.API.AuthRateLimit, time.Minute))
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(h.cfg.API.RateLimit, time.Minute))
			r.Get("/survey", h.Survey)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAuth)
				r.Get("/users/me", h.Me)
				r.Get("/matches", h.Matches)
			})
		})
	})

	return r
}

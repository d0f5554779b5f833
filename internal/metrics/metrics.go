// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package metrics provides Prometheus instrumentation for the registration
// and matching paths.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts registration attempts by outcome.
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindred_registrations_total",
			Help: "Total registration attempts by outcome",
		},
		[]string{"outcome"}, // "created", "duplicate", "invalid", "error"
	)

	// LoginsTotal counts login attempts by outcome.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindred_logins_total",
			Help: "Total login attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "rejected", "error"
	)

	// MatchQueriesTotal counts match listings by outcome.
	MatchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kindred_match_queries_total",
			Help: "Total match listing queries by outcome",
		},
		[]string{"outcome"}, // "ok", "empty", "degraded", "error"
	)

	// RankDuration observes end-to-end similarity ranking time, including
	// the candidate fetch.
	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kindred_rank_duration_seconds",
			Help:    "Duration of similarity ranking per match listing",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ModelPublishes counts artifact snapshot swaps on the serving path.
	ModelPublishes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kindred_model_publishes_total",
			Help: "Total fitted model artifacts published to the serving snapshot",
		},
	)

	// HTTPRequestDuration observes handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kindred_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(path, method string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(path, method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// ObserveRank records one ranking pass.
func ObserveRank(duration time.Duration) {
	RankDuration.Observe(duration.Seconds())
}

// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package main is the entry point for the Kindred server.
//
// Kindred matches people by personality: respondents answer a 163-item
// questionnaire, a fitted factor model reduces the answers to a compact
// trait vector, k-means assigns a cluster, and matches are ranked by cosine
// similarity within the cluster.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, config.yaml, and
//     environment variables (Koanf v2)
//  2. Database: DuckDB user store
//  3. Model store: BadgerDB artifact store plus the serving snapshot
//  4. Scoring service: registration and match ranking
//  5. Supervisor tree: HTTP server and artifact watcher under suture
//
// The model itself is fitted out of process by cmd/pipeline; the server
// only ever reads published artifacts. On startup the latest artifact (if
// any) is published to the snapshot, and the artifact watcher hot-swaps in
// newer versions as the pipeline publishes them.
//
// # Configuration
//
// Key environment variables:
//   - HTTP_PORT: listen port (default 8460)
//   - DUCKDB_PATH: user database path
//   - ARTIFACTS_DIR: BadgerDB model store directory
//   - JWT_SECRET: 32+ character secret for token signing
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the supervisor
// tree stops, in-flight requests get the configured shutdown timeout, then
// stores are closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kindredlabs/kindred/internal/api"
	"github.com/kindredlabs/kindred/internal/artifacts"
	"github.com/kindredlabs/kindred/internal/config"
	"github.com/kindredlabs/kindred/internal/database"
	"github.com/kindredlabs/kindred/internal/logging"
	"github.com/kindredlabs/kindred/internal/scoring"
	"github.com/kindredlabs/kindred/internal/supervisor"
	"github.com/kindredlabs/kindred/internal/supervisor/services"
	"github.com/kindredlabs/kindred/internal/survey"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config not yet available, default logger
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("artifacts_dir", cfg.Artifacts.Dir).
		Int("port", cfg.Server.Port).
		Msg("Starting Kindred")

	if cfg.Security.JWTSecret == "" {
		logging.Fatal().Msg("JWT_SECRET is required")
	}

	manifest, err := buildManifest(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build survey manifest")
	}

	db, err := database.New(&cfg.Database, cfg.Model.Factors)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	badgerDB, err := artifacts.Open(cfg.Artifacts.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open artifact store")
	}
	defer func() {
		if err := badgerDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing artifact store")
		}
	}()

	store := artifacts.NewStore(badgerDB)
	snapshot := artifacts.NewSnapshot()

	// Publish the latest fitted model, if the pipeline has run.
	startupCtx := context.Background()
	if artifact, err := store.LoadLatest(startupCtx); err == nil {
		snapshot.Publish(artifact)
		logging.Info().Str("version", artifact.Version).Msg("Model artifact loaded")
	} else if errors.Is(err, artifacts.ErrArtifactNotFound) {
		logging.Warn().Msg("No model artifact published yet; registration is unavailable until the pipeline runs")
	} else {
		logging.Fatal().Err(err).Msg("Failed to load model artifact")
	}

	svc := scoring.NewService(db, snapshot, manifest, scoring.Config{
		BcryptCost: cfg.Security.BcryptCost,
		MatchLimit: cfg.API.MatchLimit,
	})

	handler := api.NewHandler(svc, db, manifest, snapshot, cfg)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddModelService(services.NewArtifactWatchService(store, snapshot, cfg.Artifacts.RefreshInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
		os.Exit(1)
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, s := range unstopped {
			logging.Warn().Str("service", s.Name).Msg("Service did not stop within timeout")
		}
	}
	logging.Info().Msg("Shutdown complete")
}

// buildManifest assembles the questionnaire manifest, attaching prompt text
// from the configured codebook when present.
func buildManifest(cfg *config.Config) (*survey.Manifest, error) {
	manifest := survey.NewManifest()
	if cfg.Survey.CodebookPath == "" {
		return manifest, nil
	}
	f, err := os.Open(cfg.Survey.CodebookPath)
	if err != nil {
		return nil, fmt.Errorf("open codebook: %w", err)
	}
	defer f.Close()
	if err := manifest.LoadCodebook(f); err != nil {
		return nil, fmt.Errorf("load codebook: %w", err)
	}
	return manifest, nil
}

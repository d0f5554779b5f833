// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package main is the offline modeling pipeline.
//
// The pipeline runs out of process from the server and publishes its output
// through the shared artifact store:
//
//	pipeline fit    Fetch the corpus, fit the factor model and clusters,
//	                and publish a versioned artifact
//	pipeline seed   Score corpus respondents under the latest artifact and
//	                insert them as seed users
//
// The server's artifact watcher picks up a newly published version within
// its refresh interval; no server restart is needed after a refit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/kindredlabs/kindred/internal/artifacts"
	"github.com/kindredlabs/kindred/internal/cluster"
	"github.com/kindredlabs/kindred/internal/config"
	"github.com/kindredlabs/kindred/internal/database"
	"github.com/kindredlabs/kindred/internal/factor"
	"github.com/kindredlabs/kindred/internal/ingest"
	"github.com/kindredlabs/kindred/internal/logging"
	"github.com/kindredlabs/kindred/internal/survey"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx := context.Background()

	switch flag.Arg(0) {
	case "fit":
		err = runFit(ctx, cfg)
	case "seed":
		err = runSeed(ctx, cfg)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("Pipeline failed")
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: pipeline <fit|seed>\n\n")
	fmt.Fprintf(os.Stderr, "  fit   fetch the corpus, fit the model, publish an artifact\n")
	fmt.Fprintf(os.Stderr, "  seed  insert corpus respondents as seed users under the latest artifact\n")
}

// runFit executes the full offline fit and publishes the artifact.
func runFit(ctx context.Context, cfg *config.Config) error {
	manifest := survey.NewManifest()

	respondents, err := ingest.Fetch(ctx, &cfg.Corpus, manifest)
	if err != nil {
		return fmt.Errorf("fetch corpus: %w", err)
	}

	corpus := make([][]int, len(respondents))
	for i := range respondents {
		corpus[i] = respondents[i].Answers
	}

	start := time.Now()
	extractor, err := factor.Fit(corpus, factor.Config{
		Factors:     cfg.Model.Factors,
		PromaxPower: cfg.Model.PromaxPower,
	})
	if err != nil {
		return fmt.Errorf("fit factor model: %w", err)
	}
	logging.Info().
		Int("respondents", len(corpus)).
		Int("factors", cfg.Model.Factors).
		Dur("elapsed", time.Since(start)).
		Msg("Factor model fitted")

	vectors := make([][]float64, len(corpus))
	for i := range corpus {
		vectors[i], err = factor.Transform(extractor, corpus[i])
		if err != nil {
			return fmt.Errorf("transform corpus row %d: %w", i, err)
		}
	}

	start = time.Now()
	clusters, err := cluster.Fit(vectors, cluster.Config{
		Clusters:      cfg.Model.Clusters,
		Seed:          cfg.Model.Seed,
		MaxIterations: cfg.Model.MaxIterations,
	})
	if err != nil {
		return fmt.Errorf("fit clusters: %w", err)
	}
	logging.Info().
		Int("clusters", cfg.Model.Clusters).
		Dur("elapsed", time.Since(start)).
		Msg("Clusters fitted")

	badgerDB, err := artifacts.Open(cfg.Artifacts.Dir)
	if err != nil {
		return err
	}
	defer badgerDB.Close()

	store := artifacts.NewStore(badgerDB)
	artifact := &artifacts.Artifact{Extractor: extractor, Clusters: clusters}
	if err := store.Save(ctx, artifact); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}

	logging.Info().Str("version", artifact.Version).Msg("Artifact published")
	return nil
}

// seedPassword is the shared credential for corpus-derived seed accounts.
// Seed users exist to populate clusters for matching, not to log in.
const seedPassword = "kindred-seed-account"

// runSeed scores every corpus respondent under the latest published
// artifact and inserts them as users. Existing names are skipped so the
// command is safe to re-run.
func runSeed(ctx context.Context, cfg *config.Config) error {
	manifest := survey.NewManifest()

	badgerDB, err := artifacts.Open(cfg.Artifacts.Dir)
	if err != nil {
		return err
	}
	defer badgerDB.Close()

	artifact, err := artifacts.NewStore(badgerDB).LoadLatest(ctx)
	if err != nil {
		return fmt.Errorf("load latest artifact (run fit first): %w", err)
	}

	respondents, err := ingest.Fetch(ctx, &cfg.Corpus, manifest)
	if err != nil {
		return fmt.Errorf("fetch corpus: %w", err)
	}

	db, err := database.New(&cfg.Database, cfg.Model.Factors)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// One shared hash: bcrypt per row would dominate the seed time.
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	inserted, skipped := 0, 0
	for i, resp := range respondents {
		vector, err := factor.Transform(artifact.Extractor, resp.Answers)
		if err != nil {
			return fmt.Errorf("transform respondent %d: %w", i, err)
		}
		clusterID, err := cluster.Predict(artifact.Clusters, vector)
		if err != nil {
			return fmt.Errorf("assign respondent %d: %w", i, err)
		}

		user := &database.UserRecord{
			ID:           uuid.NewString(),
			Name:         fmt.Sprintf("seed_%06d", i+1),
			PasswordHash: string(hash),
			Age:          resp.Age,
			Gender:       resp.Gender,
			Country:      resp.Country,
			Vector:       vector,
			ClusterID:    clusterID,
			ModelVersion: artifact.Version,
		}
		if err := db.InsertUser(ctx, user); err != nil {
			if errors.Is(err, database.ErrDuplicateIdentity) {
				skipped++
				continue
			}
			return fmt.Errorf("insert respondent %d: %w", i, err)
		}
		inserted++
	}

	logging.Info().
		Int("inserted", inserted).
		Int("skipped", skipped).
		Str("model_version", artifact.Version).
		Msg("Seed users loaded")
	return nil
}

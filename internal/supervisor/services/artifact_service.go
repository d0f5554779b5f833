// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package services

import (
	"context"
	"errors"
	"time"

	"github.com/kindredlabs/kindred/internal/artifacts"
	"github.com/kindredlabs/kindred/internal/logging"
	"github.com/kindredlabs/kindred/internal/metrics"
)

// ArtifactWatchService polls the artifact store for a newly published model
// version and hot-swaps it into the serving snapshot. The offline pipeline
// writes artifacts out of process, so polling is the coordination point.
//
// A poll failure logs and retries on the next tick; the snapshot keeps
// serving the last good model throughout.
type ArtifactWatchService struct {
	store    *artifacts.Store
	snapshot *artifacts.Snapshot
	interval time.Duration
}

// NewArtifactWatchService creates the watcher. Interval defaults to 1m
// when zero.
func NewArtifactWatchService(store *artifacts.Store, snapshot *artifacts.Snapshot, interval time.Duration) *ArtifactWatchService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ArtifactWatchService{
		store:    store,
		snapshot: snapshot,
		interval: interval,
	}
}

// Serve implements suture.Service.
func (a *ArtifactWatchService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.refresh(ctx)
		}
	}
}

// refresh publishes the latest stored artifact if it differs from the one
// currently served.
func (a *ArtifactWatchService) refresh(ctx context.Context) {
	latest, err := a.store.LatestVersion(ctx)
	if err != nil {
		if !errors.Is(err, artifacts.ErrArtifactNotFound) {
			logging.Error().Err(err).Msg("Artifact version check failed")
		}
		return
	}

	if latest == a.snapshot.Version() {
		return
	}

	artifact, err := a.store.Load(ctx, latest)
	if err != nil {
		logging.Error().Err(err).Str("version", latest).Msg("Artifact load failed, keeping current snapshot")
		return
	}

	a.snapshot.Publish(artifact)
	metrics.ModelPublishes.Inc()
	logging.Info().Str("version", artifact.Version).Time("created_at", artifact.CreatedAt).Msg("Model artifact published to serving snapshot")
}

// String identifies the service in supervisor log messages.
func (a *ArtifactWatchService) String() string {
	return "artifact-watcher"
}

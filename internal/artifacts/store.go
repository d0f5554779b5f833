// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package artifacts persists fitted model parameters as versioned blobs in
// BadgerDB and publishes them to the serving path through an atomic
// snapshot.
//
// An artifact's version is the content hash of its parameters, so the same
// fit always yields the same version and any byte drift is detectable at
// load time. The online scoring path must only ever score against the same
// artifact version that produced the factor vectors already stored for
// existing users; the version is recorded on every user row for exactly
// that check.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/kindredlabs/kindred/internal/cluster"
	"github.com/kindredlabs/kindred/internal/factor"
)

// Key layout in BadgerDB.
const (
	artifactKeyPrefix = "artifact:"
	latestKey         = "artifact_latest"
)

// Sentinel errors for the storage boundary.
var (
	// ErrArtifactNotFound indicates no artifact exists at the requested
	// version (or no artifact has ever been published).
	ErrArtifactNotFound = errors.New("artifacts: artifact not found")

	// ErrArtifactCorrupt indicates a stored blob that fails to deserialize
	// or whose content no longer matches its version hash.
	ErrArtifactCorrupt = errors.New("artifacts: artifact corrupt")
)

// Artifact is one versioned snapshot of fitted model parameters. Treat as
// read-only once published.
type Artifact struct {
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Extractor *factor.Params  `json:"extractor"`
	Clusters  *cluster.Params `json:"clusters"`
}

// ComputeVersion hashes the fitted parameters. CreatedAt is deliberately
// excluded: two fits with identical parameters are the same artifact.
func ComputeVersion(extractor *factor.Params, clusters *cluster.Params) (string, error) {
	payload, err := json.Marshal(struct {
		Extractor *factor.Params  `json:"extractor"`
		Clusters  *cluster.Params `json:"clusters"`
	}{extractor, clusters})
	if err != nil {
		return "", fmt.Errorf("hash artifact: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8]), nil
}

// Store is the BadgerDB-backed model store.
type Store struct {
	db *badger.DB
}

// NewStore creates a model store over an open BadgerDB handle.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the artifact database at dir.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	return db, nil
}

// Save persists the artifact under its version and advances the latest
// pointer in the same transaction, so a reader following the pointer can
// never observe a version whose blob is missing.
func (s *Store) Save(ctx context.Context, artifact *Artifact) error {
	if artifact.Extractor == nil || artifact.Clusters == nil {
		return errors.New("artifacts: incomplete artifact")
	}

	version, err := ComputeVersion(artifact.Extractor, artifact.Clusters)
	if err != nil {
		return err
	}
	artifact.Version = version
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(artifactKeyPrefix+version), data); err != nil {
			return fmt.Errorf("set artifact: %w", err)
		}
		if err := txn.Set([]byte(latestKey), []byte(version)); err != nil {
			return fmt.Errorf("set latest pointer: %w", err)
		}
		return nil
	})
}

// Load retrieves one artifact by version. Returns ErrArtifactNotFound when
// absent and ErrArtifactCorrupt when the blob fails to decode or its
// parameters no longer hash to the stored version.
func (s *Store) Load(ctx context.Context, version string) (*Artifact, error) {
	var artifact Artifact

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(artifactKeyPrefix + version))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: version %s", ErrArtifactNotFound, version)
		}
		if err != nil {
			return fmt.Errorf("get artifact: %w", err)
		}

		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &artifact); err != nil {
				return fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	computed, err := ComputeVersion(artifact.Extractor, artifact.Clusters)
	if err != nil || computed != version {
		return nil, fmt.Errorf("%w: version %s fails content check", ErrArtifactCorrupt, version)
	}
	return &artifact, nil
}

// LoadLatest retrieves the most recently published artifact.
func (s *Store) LoadLatest(ctx context.Context) (*Artifact, error) {
	var version string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrArtifactNotFound
		}
		if err != nil {
			return fmt.Errorf("get latest pointer: %w", err)
		}
		return item.Value(func(val []byte) error {
			version = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return s.Load(ctx, version)
}

// LatestVersion returns the published version without decoding the blob.
func (s *Store) LatestVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrArtifactNotFound
		}
		if err != nil {
			return fmt.Errorf("get latest pointer: %w", err)
		}
		return item.Value(func(val []byte) error {
			version = string(val)
			return nil
		})
	})
	return version, err
}

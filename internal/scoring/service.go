// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package scoring implements the online entry points: registration (score a
// new respondent and persist the record) and match listing (rank same-cluster
// users by similarity).
//
// Both paths are read-only over the published model snapshot; registration's
// single side effect is one transactional user insert, so cancellation
// before that write is always safe.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kindredlabs/kindred/internal/artifacts"
	"github.com/kindredlabs/kindred/internal/cluster"
	"github.com/kindredlabs/kindred/internal/database"
	"github.com/kindredlabs/kindred/internal/factor"
	"github.com/kindredlabs/kindred/internal/logging"
	"github.com/kindredlabs/kindred/internal/metrics"
	"github.com/kindredlabs/kindred/internal/ranking"
	"github.com/kindredlabs/kindred/internal/survey"
)

// Sentinel errors surfaced to the API layer.
var (
	// ErrNotFitted indicates no model artifact has been published yet.
	ErrNotFitted = errors.New("scoring: no fitted model published")

	// ErrInvalidCredentials indicates a failed name/password check.
	ErrInvalidCredentials = errors.New("scoring: invalid credentials")
)

// Config holds scoring service settings.
type Config struct {
	// BcryptCost is the password hashing cost.
	BcryptCost int

	// MatchLimit is the default match listing size.
	MatchLimit int
}

// RegistrationRequest carries one respondent's in-flight raw answers and
// metadata before they become a UserRecord.
type RegistrationRequest struct {
	Name         string
	Password     string
	Age          int
	Gender       string
	Country      string
	Answers      []int
	ProfileImage []byte
}

// Match is one ranked match with display metadata.
type Match struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Age     int     `json:"age,omitempty"`
	Gender  string  `json:"gender,omitempty"`
	Country string  `json:"country,omitempty"`
	Score   float64 `json:"score"`
}

// Service wires the matching pipeline components to the user store.
type Service struct {
	db       *database.DB
	snapshot *artifacts.Snapshot
	manifest *survey.Manifest
	cfg      Config
}

// NewService creates the scoring service.
func NewService(db *database.DB, snapshot *artifacts.Snapshot, manifest *survey.Manifest, cfg Config) *Service {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.MatchLimit <= 0 {
		cfg.MatchLimit = ranking.DefaultLimit
	}
	return &Service{
		db:       db,
		snapshot: snapshot,
		manifest: manifest,
		cfg:      cfg,
	}
}

// Register scores a new respondent against the published model and persists
// the resulting UserRecord in one transaction. On any error no partial
// record exists.
func (s *Service) Register(ctx context.Context, req *RegistrationRequest) (*database.UserRecord, error) {
	if err := s.manifest.ValidateResponse(req.Answers); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	artifact, ok := s.snapshot.Current()
	if !ok {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, ErrNotFitted
	}

	vector, err := factor.Transform(artifact.Extractor, req.Answers)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("transform response: %w", err)
	}

	clusterID, err := cluster.Predict(artifact.Clusters, vector)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("assign cluster: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &database.UserRecord{
		ID:           uuid.NewString(),
		Name:         req.Name,
		PasswordHash: string(hash),
		Age:          req.Age,
		Gender:       req.Gender,
		Country:      req.Country,
		Vector:       vector,
		ClusterID:    clusterID,
		ModelVersion: artifact.Version,
		ProfileImage: req.ProfileImage,
	}

	if err := s.db.InsertUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateIdentity) {
			metrics.RegistrationsTotal.WithLabelValues("duplicate").Inc()
		} else {
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	logging.Info().
		Str("user_id", user.ID).
		Int("cluster", clusterID).
		Str("model_version", artifact.Version).
		Msg("User registered")
	return user, nil
}

// Authenticate verifies a name/password pair against the stored hash.
func (s *Service) Authenticate(ctx context.Context, name, password string) (*database.UserRecord, error) {
	user, err := s.db.GetUserByName(ctx, name)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Matches returns the top matches for a user: all users in the same cluster
// scored under the same model version, ranked by cosine similarity.
//
// Ranking only ever compares vectors produced by one artifact version, so a
// stale user (scored under an older version than the served snapshot) still
// gets consistent results against peers of that version; the staleness is
// logged for the refit pipeline to pick up. Candidate-fetch failures degrade
// to an empty listing since matching is non-critical.
func (s *Service) Matches(ctx context.Context, userID string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = s.cfg.MatchLimit
	}

	user, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		metrics.MatchQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if served := s.snapshot.Version(); served != "" && served != user.ModelVersion {
		logging.Warn().
			Str("user_id", user.ID).
			Str("user_version", user.ModelVersion).
			Str("served_version", served).
			Msg("User scored under stale model version")
	}

	start := time.Now()
	members, err := s.db.ListClusterMembers(ctx, user.ClusterID, user.ID, user.ModelVersion)
	if err != nil {
		logging.Error().Err(err).Str("user_id", user.ID).Msg("Candidate fetch failed, degrading to empty match list")
		metrics.MatchQueriesTotal.WithLabelValues("degraded").Inc()
		return []Match{}, nil
	}

	candidates := make([]ranking.Candidate, len(members))
	byID := make(map[string]*database.ClusterMember, len(members))
	for i := range members {
		candidates[i] = ranking.Candidate{ID: members[i].ID, Vector: members[i].Vector}
		byID[members[i].ID] = &members[i]
	}

	ranked := ranking.Rank(user.Vector, candidates, user.ID, limit)
	metrics.ObserveRank(time.Since(start))

	matches := make([]Match, 0, len(ranked))
	for _, r := range ranked {
		m := byID[r.ID]
		matches = append(matches, Match{
			ID:      m.ID,
			Name:    m.Name,
			Age:     m.Age,
			Gender:  m.Gender,
			Country: m.Country,
			Score:   r.Score,
		})
	}

	if len(matches) == 0 {
		metrics.MatchQueriesTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.MatchQueriesTotal.WithLabelValues("ok").Inc()
	}
	return matches, nil
}

// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package config provides layered configuration for Kindred via Koanf v2.
//
// Loading order (highest priority wins):
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml)
//  3. Environment variables
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Model     ModelConfig     `koanf:"model"`
	Survey    SurveyConfig    `koanf:"survey"`
	Corpus    CorpusConfig    `koanf:"corpus"`
	Security  SecurityConfig  `koanf:"security"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8460)
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds DuckDB settings for the user store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// ArtifactsConfig holds the BadgerDB model-store settings.
type ArtifactsConfig struct {
	// Dir is the BadgerDB directory holding fitted model artifacts.
	Dir string `koanf:"dir"`

	// RefreshInterval is how often the server polls for a newly published
	// artifact version to hot-swap into the serving snapshot.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// ModelConfig holds the modeling pipeline hyperparameters. Changing any of
// these produces a new artifact version; users scored under the old version
// are skipped from ranking until re-scored.
type ModelConfig struct {
	Factors       int     `koanf:"factors"`
	Clusters      int     `koanf:"clusters"`
	Seed          int64   `koanf:"seed"`
	MaxIterations int     `koanf:"max_iterations"`
	PromaxPower   float64 `koanf:"promax_power"`
}

// SurveyConfig holds questionnaire settings.
type SurveyConfig struct {
	// CodebookPath is an optional tab-separated file attaching prompt text
	// to manifest item ids.
	CodebookPath string `koanf:"codebook_path"`
}

// CorpusConfig holds the raw corpus source for the offline fit.
type CorpusConfig struct {
	// URL is the zip archive containing the historical respondent data.
	URL string `koanf:"url"`

	// DataFile is the tab-separated data file name inside the archive.
	DataFile string `koanf:"data_file"`

	// LocalPath, when set, reads the data file directly from disk instead
	// of fetching the archive.
	LocalPath string `koanf:"local_path"`

	// FetchTimeout bounds the archive download.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// SecurityConfig holds authentication settings.
//
// Environment Variables:
//   - JWT_SECRET: 32+ character secret for token signing (required in production)
type SecurityConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`

	// MaxNameLength and MaxPasswordLength bound registration credentials.
	// The password cap matches bcrypt's 72-byte input limit.
	MaxNameLength     int `koanf:"max_name_length"`
	MaxPasswordLength int `koanf:"max_password_length"`
}

// APIConfig holds request handling limits.
type APIConfig struct {
	// MatchLimit is the default number of matches returned per listing.
	MatchLimit int `koanf:"match_limit"`

	// MaxMatchLimit caps the client-requested limit.
	MaxMatchLimit int `koanf:"max_match_limit"`

	// RateLimit is requests per minute per client for data endpoints.
	RateLimit int `koanf:"rate_limit"`

	// AuthRateLimit is requests per minute per client for auth endpoints.
	AuthRateLimit int `koanf:"auth_rate_limit"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks configuration consistency after loading.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts dir is required")
	}
	if c.Model.Factors <= 0 {
		return fmt.Errorf("model factors must be positive, got %d", c.Model.Factors)
	}
	if c.Model.Clusters <= 0 {
		return fmt.Errorf("model clusters must be positive, got %d", c.Model.Clusters)
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 characters")
	}
	if c.API.MatchLimit <= 0 || c.API.MatchLimit > c.API.MaxMatchLimit {
		return fmt.Errorf("match limit %d outside (0, %d]", c.API.MatchLimit, c.API.MaxMatchLimit)
	}
	return nil
}

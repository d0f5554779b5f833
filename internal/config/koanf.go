// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/kindred/config.yaml",
	"/etc/kindred/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8460,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/kindred.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Artifacts: ArtifactsConfig{
			Dir:             "/data/artifacts",
			RefreshInterval: time.Minute,
		},
		Model: ModelConfig{
			Factors:       12,
			Clusters:      10,
			Seed:          42,
			MaxIterations: 300,
			PromaxPower:   4,
		},
		Survey: SurveyConfig{
			CodebookPath: "",
		},
		Corpus: CorpusConfig{
			URL:          "http://openpsychometrics.org/_rawdata/16PF.zip",
			DataFile:     "16PF/data.csv",
			LocalPath:    "",
			FetchTimeout: 2 * time.Minute,
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			TokenTTL:          24 * time.Hour,
			BcryptCost:        10,
			MaxNameLength:     50,
			MaxPasswordLength: 72, // bcrypt input limit
		},
		API: APIConfig{
			MatchLimit:    10,
			MaxMatchLimit: 100,
			RateLimit:     300,
			AuthRateLimit: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: highest priority
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, JWT_SECRET -> security.jwt_secret, etc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring CONFIG_PATH first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names to koanf config paths.
// Only variables listed here are honored; everything else is ignored so
// unrelated environment noise cannot leak into the configuration.
var envMappings = map[string]string{
	"http_host":                "server.host",
	"http_port":                "server.port",
	"http_read_timeout":        "server.read_timeout",
	"http_write_timeout":       "server.write_timeout",
	"http_shutdown_timeout":    "server.shutdown_timeout",
	"duckdb_path":              "database.path",
	"duckdb_max_memory":        "database.max_memory",
	"duckdb_threads":           "database.threads",
	"artifacts_dir":            "artifacts.dir",
	"artifacts_refresh":        "artifacts.refresh_interval",
	"model_factors":            "model.factors",
	"model_clusters":           "model.clusters",
	"model_seed":               "model.seed",
	"model_max_iterations":     "model.max_iterations",
	"model_promax_power":       "model.promax_power",
	"survey_codebook_path":     "survey.codebook_path",
	"corpus_url":               "corpus.url",
	"corpus_data_file":         "corpus.data_file",
	"corpus_local_path":        "corpus.local_path",
	"corpus_fetch_timeout":     "corpus.fetch_timeout",
	"jwt_secret":               "security.jwt_secret",
	"token_ttl":                "security.token_ttl",
	"bcrypt_cost":              "security.bcrypt_cost",
	"api_match_limit":          "api.match_limit",
	"api_max_match_limit":      "api.max_match_limit",
	"api_rate_limit":           "api.rate_limit",
	"api_auth_rate_limit":      "api.auth_rate_limit",
	"log_level":                "logging.level",
	"log_format":               "logging.format",
}

// envTransformFunc maps an environment variable name to its koanf path, or
// empty to skip it.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

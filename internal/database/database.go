// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package database provides the DuckDB-backed user store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/kindredlabs/kindred/internal/config"
	"github.com/kindredlabs/kindred/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn    *sql.DB
	cfg     *config.DatabaseConfig
	factors int
}

// New creates a new database connection and initializes the schema.
// The factor count fixes the number of factor columns on the users table;
// it must match the fitted extractor's dimensionality.
func New(cfg *config.DatabaseConfig, factors int) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		conn:    conn,
		cfg:     cfg,
		factors: factors,
	}

	// DuckDB is an embedded single-writer engine; a small pool avoids
	// write contention while still letting reads overlap.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates the schema if it does not exist.
func (db *DB) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	factorCols := ""
	for i := 1; i <= db.factors; i++ {
		factorCols += fmt.Sprintf("factor_%d DOUBLE NOT NULL DEFAULT 0,\n\t\t", i)
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS users (
		id VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL UNIQUE,
		password_hash VARCHAR NOT NULL,
		age INTEGER,
		gender VARCHAR,
		country VARCHAR,
		%scluster_id INTEGER NOT NULL,
		model_version VARCHAR NOT NULL,
		profile_image BLOB,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_users_cluster ON users (cluster_id);
	`, factorCols)

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	logging.Debug().Int("factors", db.factors).Msg("Database schema initialized")
	return nil
}

// Conn returns the underlying SQL database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies connectivity for health checks.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// closeQuietly closes a connection, logging rather than returning errors.
func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for the persistence boundary.
var (
	// ErrDuplicateIdentity indicates an insert whose name already exists.
	ErrDuplicateIdentity = errors.New("database: identity already registered")

	// ErrUserNotFound indicates a lookup for an unknown user id or name.
	ErrUserNotFound = errors.New("database: user not found")
)

// UserRecord is one persisted user with scoring results attached.
type UserRecord struct {
	ID           string
	Name         string
	PasswordHash string
	Age          int
	Gender       string
	Country      string
	Vector       []float64
	ClusterID    int
	ModelVersion string
	ProfileImage []byte
	CreatedAt    time.Time
}

// ClusterMember is the candidate view used by the similarity ranker:
// identity, factor vector, and the display metadata the match listing shows.
type ClusterMember struct {
	ID      string
	Name    string
	Age     int
	Gender  string
	Country string
	Vector  []float64
}

// factorColumns returns the ordered factor column names.
func (db *DB) factorColumns() []string {
	cols := make([]string, db.factors)
	for i := range cols {
		cols[i] = fmt.Sprintf("factor_%d", i+1)
	}
	return cols
}

// InsertUser persists a new user inside a single transaction: the record is
// either fully committed or not present at all. A name collision returns
// ErrDuplicateIdentity and leaves the store unchanged.
func (db *DB) InsertUser(ctx context.Context, user *UserRecord) error {
	if len(user.Vector) != db.factors {
		return fmt.Errorf("database: vector has %d factors, want %d", len(user.Vector), db.factors)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Explicit existence check gives a clean duplicate error on engines
	// where the constraint violation text varies; the UNIQUE constraint
	// still backstops concurrent inserts.
	var existing int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE name = ?", user.Name).Scan(&existing); err != nil {
		return fmt.Errorf("check identity: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, user.Name)
	}

	cols := append([]string{"id", "name", "password_hash", "age", "gender", "country"}, db.factorColumns()...)
	cols = append(cols, "cluster_id", "model_version", "profile_image")

	args := make([]any, 0, len(cols))
	args = append(args, user.ID, user.Name, user.PasswordHash, user.Age, user.Gender, user.Country)
	for _, v := range user.Vector {
		args = append(args, v)
	}
	args = append(args, user.ClusterID, user.ModelVersion, user.ProfileImage)

	query := fmt.Sprintf("INSERT INTO users (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateIdentity, user.Name)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

// GetUserByID retrieves one user by id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*UserRecord, error) {
	return db.getUser(ctx, "id", id)
}

// GetUserByName retrieves one user by registered name.
func (db *DB) GetUserByName(ctx context.Context, name string) (*UserRecord, error) {
	return db.getUser(ctx, "name", name)
}

func (db *DB) getUser(ctx context.Context, column, value string) (*UserRecord, error) {
	query := fmt.Sprintf(
		"SELECT id, name, password_hash, age, gender, country, %s, cluster_id, model_version, profile_image, created_at FROM users WHERE %s = ?",
		strings.Join(db.factorColumns(), ", "), column)

	user := &UserRecord{Vector: make([]float64, db.factors)}
	var (
		age             sql.NullInt64
		gender, country sql.NullString
		image           []byte
	)

	dest := make([]any, 0, 11+db.factors)
	dest = append(dest, &user.ID, &user.Name, &user.PasswordHash, &age, &gender, &country)
	for i := range user.Vector {
		dest = append(dest, &user.Vector[i])
	}
	dest = append(dest, &user.ClusterID, &user.ModelVersion, &image, &user.CreatedAt)

	err := db.conn.QueryRowContext(ctx, query, value).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %q", ErrUserNotFound, column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.Age = int(age.Int64)
	user.Gender = gender.String
	user.Country = country.String
	user.ProfileImage = image
	return user, nil
}

// ListClusterMembers returns all users in a cluster scored under the given
// model version, excluding one id. The query is fully parameterized; no
// caller-influenced value is ever formatted into the SQL text.
func (db *DB) ListClusterMembers(ctx context.Context, clusterID int, excludeID, modelVersion string) ([]ClusterMember, error) {
	query := fmt.Sprintf(
		"SELECT id, name, age, gender, country, %s FROM users WHERE cluster_id = ? AND id <> ? AND model_version = ? ORDER BY id",
		strings.Join(db.factorColumns(), ", "))

	rows, err := db.conn.QueryContext(ctx, query, clusterID, excludeID, modelVersion)
	if err != nil {
		return nil, fmt.Errorf("list cluster members: %w", err)
	}
	defer rows.Close()

	var members []ClusterMember
	for rows.Next() {
		m := ClusterMember{Vector: make([]float64, db.factors)}
		var (
			age             sql.NullInt64
			gender, country sql.NullString
		)

		dest := make([]any, 0, 5+db.factors)
		dest = append(dest, &m.ID, &m.Name, &age, &gender, &country)
		for i := range m.Vector {
			dest = append(dest, &m.Vector[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan cluster member: %w", err)
		}

		m.Age = int(age.Int64)
		m.Gender = gender.String
		m.Country = country.String
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster members: %w", err)
	}
	return members, nil
}

// CountUsers returns the total number of registered users.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// isDuplicateKey detects a unique-constraint violation from the engine's
// error text.
func isDuplicateKey(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

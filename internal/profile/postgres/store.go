// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package postgres implements profile.Store using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/solverspace/solverspace/internal/profile"
)

// querier is the subset of pgxpool.Pool the store uses. Satisfied by
// pgxmock in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements profile.Store using PostgreSQL.
type Store struct {
	db querier
}

// NewStore creates a Store over a pgx pool.
func NewStore(db querier) (*Store, error) {
	if db == nil {
		return nil, oops.Errorf("database pool is required")
	}
	return &Store{db: db}, nil
}

// GetByID retrieves a profile by identity ID.
func (s *Store) GetByID(ctx context.Context, id string) (*profile.Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, created_at
		FROM profiles
		WHERE id = $1
	`, id)

	prof, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROFILE_NOT_FOUND").
			With("id", id).
			Wrap(profile.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_BY_ID_FAILED").
			With("id", id).
			Wrap(err)
	}
	return prof, nil
}

// GetByUsername retrieves a profile by username (case-insensitive).
func (s *Store) GetByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, created_at
		FROM profiles
		WHERE LOWER(username) = LOWER($1)
	`, username)

	prof, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PROFILE_NOT_FOUND").
			With("username", username).
			Wrap(profile.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PROFILE_GET_BY_USERNAME_FAILED").
			With("username", username).
			Wrap(err)
	}
	return prof, nil
}

// Insert stores a new profile. A username uniqueness violation maps to
// profile.ErrUsernameTaken so callers can race-check without parsing
// driver errors.
func (s *Store) Insert(ctx context.Context, p *profile.Profile) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO profiles (id, username, created_at)
		VALUES ($1, $2, $3)
	`, p.ID, p.Username, createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			if pgErr.ConstraintName == "profiles_username_idx" {
				return oops.Code("PROFILE_USERNAME_TAKEN").
					With("username", p.Username).
					Wrap(profile.ErrUsernameTaken)
			}
			// Duplicate id: the profile already exists, which the lazy
			// creation paths treat as success.
			return nil
		}
		return oops.Code("PROFILE_INSERT_FAILED").
			With("id", p.ID).
			With("username", p.Username).
			Wrap(err)
	}
	return nil
}

// scanProfile scans a single row into a Profile.
// Callers are responsible for handling pgx.ErrNoRows.
func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var prof profile.Profile
	err := row.Scan(&prof.ID, &prof.Username, &prof.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("PROFILE_SCAN_FAILED").Wrap(err)
	}
	return &prof, nil
}

// Compile-time interface check.
var _ profile.Store = (*Store)(nil)

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package profile defines the user profile record and its persistence
// contract. Profiles carry the data the auth backend does not own, chiefly
// the chosen username.
package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested profile does not exist.
var ErrNotFound = errors.New("profile not found")

// ErrUsernameTaken is returned by Insert when the username is already in
// use (case-insensitive).
var ErrUsernameTaken = errors.New("username already taken")

// Profile is the stored profile record. ID matches the backend identity ID.
type Profile struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// Store manages profile persistence.
type Store interface {
	// GetByID retrieves a profile by identity ID.
	GetByID(ctx context.Context, id string) (*Profile, error)

	// GetByUsername retrieves a profile by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Profile, error)

	// Insert stores a new profile. Returns ErrUsernameTaken when the
	// username is already in use.
	Insert(ctx context.Context, p *Profile) error
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package memory implements profile.Store with an in-process map, for
// development and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/solverspace/solverspace/internal/profile"
)

// Store implements profile.Store in memory.
type Store struct {
	mu   sync.RWMutex
	byID map[string]profile.Profile
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]profile.Profile)}
}

// GetByID retrieves a profile by identity ID.
func (s *Store) GetByID(_ context.Context, id string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if prof, ok := s.byID[id]; ok {
		return &prof, nil
	}
	return nil, profile.ErrNotFound
}

// GetByUsername retrieves a profile by username (case-insensitive).
func (s *Store) GetByUsername(_ context.Context, username string) (*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, prof := range s.byID {
		if strings.EqualFold(prof.Username, username) {
			p := prof
			return &p, nil
		}
	}
	return nil, profile.ErrNotFound
}

// Insert stores a new profile. A duplicate username returns
// profile.ErrUsernameTaken; a duplicate ID is treated as success, the
// way the lazy creation paths expect.
func (s *Store) Insert(_ context.Context, p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.ID]; exists {
		return nil
	}
	for _, existing := range s.byID {
		if strings.EqualFold(existing.Username, p.Username) {
			return profile.ErrUsernameTaken
		}
	}

	stored := *p
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.byID[stored.ID] = stored
	return nil
}

// Compile-time interface check.
var _ profile.Store = (*Store)(nil)

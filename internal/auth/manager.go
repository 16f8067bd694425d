// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/solverspace/solverspace/internal/profile"
)

// DefaultMaxIdle is how long a session may go without activity before the
// reaper drops it.
const DefaultMaxIdle = 24 * time.Hour

// managed pairs a session with its last-activity timestamp.
type managed struct {
	session    *Session
	lastActive time.Time
}

// BackendFactory creates one Backend per client session. Backends hold
// per-user token state, so sessions never share one.
type BackendFactory func() (Backend, error)

// Manager is the registry of live client sessions, keyed by an opaque ULID
// the web layer stores in a cookie. Each client connection gets exactly
// one Session; sessions are not shared across clients.
type Manager struct {
	newBackend BackendFactory
	profiles   profile.Store
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[ulid.ULID]*managed

	// wg tracks the reaper goroutine for graceful shutdown.
	wg sync.WaitGroup
}

// NewManager creates a Manager with a no-op logger.
func NewManager(newBackend BackendFactory, profiles profile.Store) (*Manager, error) {
	return NewManagerWithLogger(newBackend, profiles, slog.New(slog.DiscardHandler))
}

// NewManagerWithLogger creates a Manager with the provided logger.
func NewManagerWithLogger(newBackend BackendFactory, profiles profile.Store, logger *slog.Logger) (*Manager, error) {
	if newBackend == nil {
		return nil, oops.Errorf("backend factory is required")
	}
	if profiles == nil {
		return nil, oops.Errorf("profile store is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Manager{
		newBackend: newBackend,
		profiles:   profiles,
		logger:     logger,
		sessions:   make(map[ulid.ULID]*managed),
	}, nil
}

// Create registers a new session and returns its key.
func (m *Manager) Create() (ulid.ULID, *Session, error) {
	backend, err := m.newBackend()
	if err != nil {
		return ulid.ULID{}, nil, oops.Wrapf(err, "creating session backend")
	}
	session, err := NewSessionWithLogger(backend, m.profiles, m.logger)
	if err != nil {
		return ulid.ULID{}, nil, err
	}

	id := ulid.Make()
	m.mu.Lock()
	m.sessions[id] = &managed{session: session, lastActive: time.Now()}
	m.mu.Unlock()

	return id, session, nil
}

// Get returns the session for a key and refreshes its activity timestamp.
// Returns nil when the key is unknown (expired or never issued).
func (m *Manager) Get(id ulid.ULID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil
	}
	entry.lastActive = time.Now()
	return entry.session
}

// End removes a session from the registry.
func (m *Manager) End(id ulid.ULID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap drops sessions idle for longer than maxIdle and returns the count
// of dropped sessions.
func (m *Manager) Reap(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, entry := range m.sessions {
		if entry.lastActive.Before(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

// StartReaper runs Reap every interval until ctx is cancelled.
func (m *Manager) StartReaper(ctx context.Context, interval, maxIdle time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if dropped := m.Reap(maxIdle); dropped > 0 {
					m.logger.Debug("reaped idle sessions", "count", dropped)
				}
			}
		}
	}()
}

// Wait blocks until the reaper goroutine has stopped. Call after
// cancelling the context passed to StartReaper.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package main

import (
	"context"

	"github.com/solverspace/solverspace/internal/auth"
	"github.com/solverspace/solverspace/internal/observability"
	"github.com/solverspace/solverspace/internal/profile"
)

// ServeDeps contains injectable dependencies for the serve command.
// All nil fields fall back to their default implementations.
type ServeDeps struct {
	// ProfileStoreFactory opens the profile store for a database URL.
	// The returned func releases the underlying pool.
	// Default: store.Connect + postgres.NewStore
	ProfileStoreFactory func(ctx context.Context, dsn string) (profile.Store, func(), error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// WebServerFactory creates the JSON API server.
	// Default: web.NewServerWithLogger
	WebServerFactory func(addr string, manager *auth.Manager) (WebServer, error)
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// WebServer wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	SetMetrics(m *observability.Metrics)
}

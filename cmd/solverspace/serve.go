// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/solverspace/solverspace/internal/auth"
	authmem "github.com/solverspace/solverspace/internal/auth/memory"
	"github.com/solverspace/solverspace/internal/auth/supabase"
	"github.com/solverspace/solverspace/internal/config"
	"github.com/solverspace/solverspace/internal/logging"
	"github.com/solverspace/solverspace/internal/observability"
	"github.com/solverspace/solverspace/internal/profile"
	profilemem "github.com/solverspace/solverspace/internal/profile/memory"
	profilepg "github.com/solverspace/solverspace/internal/profile/postgres"
	"github.com/solverspace/solverspace/internal/store"
	"github.com/solverspace/solverspace/internal/web"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		Long: `Start the authentication service: the JSON API, the session
reaper, and (when configured) the metrics/health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	// Flag names map to config keys by replacing the first dash with a
	// dot; unset flags never override file values.
	flags := cmd.Flags()
	flags.String("server-addr", config.Default().Server.Addr, "JSON API listen address")
	flags.String("metrics-addr", config.Default().Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", config.Default().Log.Format, "log format (json or text)")
	flags.String("log-level", config.Default().Log.Level, "log level (debug, info, warn, error)")
	flags.String("db-url", "", "PostgreSQL URL for the profile store (empty = in-memory)")
	flags.String("supabase-url", "", "hosted auth backend URL (empty = in-memory backend)")
	flags.String("supabase-key", "", "hosted auth backend anon key")
	flags.Duration("auth-max-idle", config.Default().Auth.MaxIdle, "idle time before a session is reaped")
	flags.Duration("auth-reap-interval", config.Default().Auth.ReapInterval, "how often idle sessions are reaped")
	flags.Bool("auth-require-confirmation", false, "require email confirmation on in-memory signups")

	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ProfileStoreFactory == nil {
		deps.ProfileStoreFactory = openProfileStore
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	logger := logging.Setup("solverspace", version, cfg.Log.Format, cfg.Log.Level, nil)
	slog.SetDefault(logger)

	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(addr string, manager *auth.Manager) (WebServer, error) {
			return web.NewServerWithLogger(addr, manager, logger)
		}
	}

	logger.Info("starting", "config", cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	profiles, closeProfiles, err := deps.ProfileStoreFactory(ctx, cfg.DB.URL)
	if err != nil {
		return oops.Code("SERVE_PROFILE_STORE_FAILED").Wrap(err)
	}
	defer closeProfiles()

	backendFactory, err := newBackendFactory(cfg, logger)
	if err != nil {
		return err
	}

	manager, err := auth.NewManagerWithLogger(backendFactory, profiles, logger)
	if err != nil {
		return oops.Code("SERVE_MANAGER_FAILED").Wrap(err)
	}
	manager.StartReaper(ctx, cfg.Auth.ReapInterval, cfg.Auth.MaxIdle)
	// Cancel before waiting so the reaper goroutine can exit.
	defer func() {
		cancel()
		manager.Wait()
	}()

	webServer, err := deps.WebServerFactory(cfg.Server.Addr, manager)
	if err != nil {
		return oops.Code("SERVE_WEB_INIT_FAILED").Wrap(err)
	}

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool { return true })
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return oops.Code("SERVE_METRICS_FAILED").Wrap(obsErr)
		}
		webServer.SetMetrics(obsServer.Metrics())
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	webErrChan, err := webServer.Start()
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("SERVE_WEB_START_FAILED").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Solver Space started")
	logger.Info("ready", "addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if stopErr := webServer.Stop(shutdownCtx); stopErr != nil {
		logger.Warn("error stopping web server", "error", stopErr)
	}
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return nil
}

// newBackendFactory selects the auth backend: the hosted provider when
// configured, otherwise the in-memory store. Either way each session
// gets its own client because clients hold per-user token state.
func newBackendFactory(cfg *config.Config, logger *slog.Logger) (auth.BackendFactory, error) {
	if cfg.Supabase.URL != "" {
		supaCfg := supabase.Config{BaseURL: cfg.Supabase.URL, APIKey: cfg.Supabase.Key}
		// Validate the config once up front so misconfiguration fails at
		// startup rather than on the first session.
		if _, err := supabase.NewClient(supaCfg); err != nil {
			return nil, oops.Code("SERVE_BACKEND_INVALID").Wrap(err)
		}
		return func() (auth.Backend, error) {
			return supabase.NewClientWithLogger(supaCfg, logger)
		}, nil
	}

	accounts, err := authmem.NewStoreWithLogger(authmem.Config{
		RequireConfirmation: cfg.Auth.RequireConfirmation,
	}, logger)
	if err != nil {
		return nil, oops.Code("SERVE_BACKEND_INVALID").Wrap(err)
	}
	logger.Warn("no auth backend configured, using in-memory accounts")
	return func() (auth.Backend, error) {
		return accounts.Client(), nil
	}, nil
}

// openProfileStore opens the PostgreSQL profile store, or the in-memory
// store when no database URL is configured.
func openProfileStore(ctx context.Context, dsn string) (profile.Store, func(), error) {
	if dsn == "" {
		slog.Warn("no database configured, using in-memory profiles")
		return profilemem.NewStore(), func() {}, nil
	}

	pool, err := store.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	pgStore, err := profilepg.NewStore(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgStore, pool.Close, nil
}

func stopObservability(obsServer ObservabilityServer, logger *slog.Logger) {
	if obsServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels the context when a server reports a
// terminal error. It exits when an error arrives, the channel closes,
// or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package store provides the PostgreSQL connection pool and schema
// management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	connectBaseDelay   = 250 * time.Millisecond
	connectMaxAttempts = 5
)

// Connect opens a pgx pool and probes it with a backed-off ping. A
// database that is still starting up (common under docker compose) gets
// a few seconds to come around before the error surfaces.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrapf(err, "parsing database URL")
	}

	backoff := retry.WithMaxRetries(connectMaxAttempts, retry.NewExponential(connectBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_UNREACHABLE").Wrapf(err, "pinging database")
	}

	return pool, nil
}

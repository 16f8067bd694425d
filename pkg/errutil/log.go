// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package errutil provides glue between samber/oops errors and log/slog,
// plus test assertion helpers for error codes.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error at error level with structured context if it's an
// oops error: message, code, and context are extracted into attributes.
// Standard errors are logged as their error string.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, errAttrs(err)...)
}

// LogWarn logs an error at warn level. Used for non-fatal side-operation
// failures that degrade gracefully instead of aborting the parent
// operation.
func LogWarn(logger *slog.Logger, msg string, err error) {
	logger.Warn(msg, errAttrs(err)...)
}

func errAttrs(err error) []any {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{"error", oopsErr.Error()}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		return attrs
	}
	return []any{"error", err}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package validate provides form-field validation for the authentication
// layer.
//
// All functions are pure: they take a raw string and return a structured
// pass/fail result with a user-facing message. Callers decide when results
// are displayed (see the touched-field gating in internal/auth) and whether
// results are cached.
//
// Username validation is security-first: input is NFKC-normalized before the
// format check, and the permitted character class is ASCII-only, so Unicode
// homographs and mixed-script names are rejected at the format level rather
// than through a separate confusables list.
package validate

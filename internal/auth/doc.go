// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package auth provides the client-facing authentication core for Solver
// Space.
//
// # Domain Types
//
// User is the identity record owned by a Session once authenticated. It is
// created from a backend Identity plus a profile lookup and destroyed on
// logout or failed session restore.
//
// # Session
//
// Session is a per-client state machine over an external auth Backend and a
// profile.Store. It holds the raw form field values, touched flags, bounded
// validation caches, and the user/processing/error/success state the UI
// renders. Session operations never return errors to the caller: every
// failure path ends by setting a user-facing message on the session.
//
// # Backend
//
// Backend abstracts the hosted auth provider. Structured rejections are
// returned as *BackendError with a Kind the session maps to a stable
// user-facing message; transport faults are ordinary wrapped errors and
// degrade to a generic message.
package auth

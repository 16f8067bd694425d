// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Identity is the account record returned by the auth backend.
type Identity struct {
	ID        string
	Email     string
	CreatedAt time.Time
	LastLogin *time.Time
}

// ErrNoSession is returned by CurrentSession when the backend has no
// active session for this client.
var ErrNoSession = errors.New("no active session")

// ErrorKind classifies a structured backend rejection.
type ErrorKind string

// Backend rejection kinds the session maps to user-facing messages.
const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindWeakPassword       ErrorKind = "weak_password"
	KindEmailTaken         ErrorKind = "email_taken"
	KindInvalidEmail       ErrorKind = "invalid_email"
	KindCodeInvalid        ErrorKind = "code_invalid"
	KindUnavailable        ErrorKind = "unavailable"
)

// BackendError is a structured rejection from the auth backend. Message is
// the backend's own text (for weak-password rejections it is the
// period-separated requirement list the session turns into bullets);
// it is never shown to users verbatim except through that mapping.
type BackendError struct {
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend rejected request (%s): %s", e.Kind, e.Message)
}

// RejectionKind extracts the backend rejection kind from an error chain.
// Returns ("", false) for transport or unexpected failures.
func RejectionKind(err error) (ErrorKind, bool) {
	var berr *BackendError
	if errors.As(err, &berr) {
		return berr.Kind, true
	}
	return "", false
}

// Backend is the contract with the hosted auth provider. Implementations
// return *BackendError for structured rejections and wrapped transport
// errors otherwise. All calls are remote I/O and honor ctx cancellation.
type Backend interface {
	// SignIn authenticates with email and password.
	SignIn(ctx context.Context, email, password string) (*Identity, error)

	// SignUp creates a new auth identity.
	SignUp(ctx context.Context, email, password string) (*Identity, error)

	// SignOut ends the backend session for this client.
	SignOut(ctx context.Context) error

	// CurrentSession returns the identity of an existing backend session,
	// or ErrNoSession when there is none.
	CurrentSession(ctx context.Context) (*Identity, error)

	// VerifyCode confirms an email address with a one-time code.
	VerifyCode(ctx context.Context, email, code string) (*Identity, error)

	// ResendCode requests a fresh one-time code for the email.
	ResendCode(ctx context.Context, email string) error
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package validate

import "regexp"

// Email validation messages.
const (
	ErrEmailRequired = "Email is required"
	ErrEmailFormat   = "Please enter a valid email address"
)

// emailRegex accepts a single-at-sign, dotted-domain address. This is a
// display-level format check; the auth backend remains the authority on
// deliverability.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Email validates an email address format.
func Email(raw string) State {
	if raw == "" {
		return State{Valid: false, Message: ErrEmailRequired}
	}
	if !emailRegex.MatchString(raw) {
		return State{Valid: false, Message: ErrEmailFormat}
	}
	return State{Valid: true}
}

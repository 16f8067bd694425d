// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package auth

import "strings"

// Navigation intents emitted by session operations. The UI collaborator
// performs the actual navigation.
const (
	PathHome  = "/"
	PathLogin = "/login"
)

// User-facing messages. These are stable: backend-specific failures are
// mapped onto them rather than surfaced verbatim.
const (
	MsgInvalidLogin    = "Invalid email or password"
	MsgUsernameTaken   = "Username already taken"
	MsgEmailRegistered = "Email already registered"
	MsgInvalidEmail    = "Please enter a valid email address"
	MsgGenericError    = "An error occurred. Please try again."
	MsgAccountCreated  = "Account created. Please log in."
	MsgCodeInvalid     = "Invalid or expired code"
	MsgCodeResent      = "Verification code sent"
	MsgResendFailed    = "Failed to resend code. Please try again."
	MsgVerifyExpired   = "Verification session expired. Please sign up again."
)

// weakPasswordMessage turns the backend's period-separated requirement
// text into a bulleted list. Falls back to the generic message when the
// text yields no bullets.
func weakPasswordMessage(backendMsg string) string {
	var bullets []string
	for _, part := range strings.Split(backendMsg, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bullets = append(bullets, "• "+part)
	}
	if len(bullets) == 0 {
		return MsgGenericError
	}
	return strings.Join(bullets, "\n")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Username length constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// Username validation messages.
const (
	ErrUsernameLength   = "Username must be between 3-30 characters"
	ErrUsernameFormat   = "Username must start with a letter and contain only letters, numbers, and underscores"
	ErrUsernameReserved = "This username is reserved"
)

// usernameRegex matches usernames that start with an ASCII letter and
// contain only ASCII letters, numbers, and underscores. Because input is
// NFKC-normalized first and normalization never converts non-Latin letters
// into this class, the pattern also rejects homograph and mixed-script
// attempts.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{2,29}$`)

// reservedUsernames are denied regardless of format validity.
var reservedUsernames = map[string]struct{}{
	"admin": {}, "administrator": {}, "root": {}, "sudo": {},
	"www": {}, "api": {}, "mail": {}, "smtp": {}, "support": {},
	"help": {}, "info": {}, "contact": {}, "login": {}, "logout": {},
	"signin": {}, "signup": {}, "register": {}, "password": {},
}

// Username validates a username against all rules, first failure wins.
// Returns (true, "") when the username is acceptable, otherwise
// (false, message) with a user-facing message.
func Username(raw string) (bool, string) {
	if n := utf8.RuneCountInString(raw); n < MinUsernameLength || n > MaxUsernameLength {
		return false, ErrUsernameLength
	}

	normalized := norm.NFKC.String(raw)
	if !usernameRegex.MatchString(normalized) {
		return false, ErrUsernameFormat
	}

	if _, reserved := reservedUsernames[strings.ToLower(normalized)]; reserved {
		return false, ErrUsernameReserved
	}

	return true, ""
}

// UsernameState runs Username and wraps the result in a State.
func UsernameState(raw string) State {
	valid, msg := Username(raw)
	return State{Valid: valid, Message: msg}
}

// SanitizeUsername converts arbitrary input into a value safe for storage.
// It never fails and does not re-validate: NFKC-normalize, replace every
// rune outside [a-zA-Z0-9_] with an underscore, prepend "u" when the result
// does not start with a letter, truncate to MaxUsernameLength.
// The transform is idempotent on its own output.
func SanitizeUsername(raw string) string {
	if raw == "" {
		return "u"
	}

	normalized := norm.NFKC.String(raw)

	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if isUsernameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	s := b.String()

	if !isASCIILetter(s[0]) {
		s = "u" + s
	}

	if len(s) > MaxUsernameLength {
		s = s[:MaxUsernameLength]
	}
	return s
}

func isUsernameRune(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

func isASCIILetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package validate

import (
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the minimum acceptable password length in runes.
const MinPasswordLength = 8

// PasswordChecks evaluates the password against each requirement and
// returns the results in fixed display order. Checks are independent; the
// password is acceptable only when every check passes.
func PasswordChecks(raw string) []Check {
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range raw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
				hasSpecial = true
			}
		}
	}

	return []Check{
		{Passed: hasLower, Message: "One lowercase letter"},
		{Passed: hasUpper, Message: "One uppercase letter"},
		{Passed: hasDigit, Message: "One number"},
		{Passed: hasSpecial, Message: "One special character"},
		{Passed: utf8.RuneCountInString(raw) >= MinPasswordLength, Message: "At least 8 characters"},
	}
}

// PasswordStateFor builds the full password validation state from the
// individual checks. ShowRequirements is true because this is only called
// for a touched field.
func PasswordStateFor(raw string) PasswordState {
	checks := PasswordChecks(raw)
	valid := true
	for _, c := range checks {
		if !c.Passed {
			valid = false
			break
		}
	}

	msg := ""
	if !valid {
		msg = "Password does not meet all requirements"
	}
	return PasswordState{
		State:            State{Valid: valid, Message: msg},
		Checks:           checks,
		ShowRequirements: true,
	}
}

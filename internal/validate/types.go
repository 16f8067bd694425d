// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package validate

// Check is the result of one atomic password requirement.
type Check struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// State is the aggregate validation result for a single field.
type State struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// PasswordState extends State with the per-requirement breakdown shown
// under the password input.
type PasswordState struct {
	State
	Checks           []Check `json:"checks"`
	ShowRequirements bool    `json:"show_requirements"`
}

// FormState is the combined validation snapshot for one render of the
// signup form.
type FormState struct {
	Username State         `json:"username"`
	Password PasswordState `json:"password"`
	Email    State         `json:"email"`
}

// ValidState returns the permissive default for an untouched field.
func ValidState() State {
	return State{Valid: true}
}

// ValidPasswordState returns the permissive default for an untouched
// password field. Requirements are hidden until the user starts typing.
func ValidPasswordState() PasswordState {
	return PasswordState{State: State{Valid: true}}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solverspace/solverspace/internal/validate"
)

func TestUsername_Valid(t *testing.T) {
	valid := []string{
		"valid_user_name",
		"abc",                              // minimum length
		"test_123",                         // letters, numbers, underscore
		"ValidMixedCase",                   // case preserved
		strings.Repeat("a", 30),            // maximum length
		"a12345678901234567890123456789"[:30],
	}

	for _, username := range valid {
		t.Run(username, func(t *testing.T) {
			ok, msg := validate.Username(username)
			assert.True(t, ok, "expected %q to be valid, got: %s", username, msg)
			assert.Empty(t, msg)
		})
	}
}

func TestUsername_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantMsg  string
	}{
		// Length violations
		{"too short", "ab", validate.ErrUsernameLength},
		{"too long", strings.Repeat("a", 31), validate.ErrUsernameLength},
		{"empty", "", validate.ErrUsernameLength},

		// Format violations
		{"digit start", "123user", validate.ErrUsernameFormat},
		{"underscore start", "_user", validate.ErrUsernameFormat},
		{"special char", "user@name", validate.ErrUsernameFormat},
		{"space", "user name", validate.ErrUsernameFormat},

		// Homograph / mixed-script attempts are caught at format level
		{"cyrillic e", "usеr", validate.ErrUsernameFormat},
		{"cyrillic r", "рassword", validate.ErrUsernameFormat},
		{"cjk script", "用户名", validate.ErrUsernameFormat},
		{"mixed script", "user名", validate.ErrUsernameFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := validate.Username(tt.username)
			require.False(t, ok, "expected %q to be invalid", tt.username)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestUsername_Reserved(t *testing.T) {
	reserved := []string{"admin", "administrator", "help", "support", "root", "signup"}

	for _, username := range reserved {
		t.Run(username, func(t *testing.T) {
			ok, msg := validate.Username(username)
			require.False(t, ok)
			assert.Equal(t, validate.ErrUsernameReserved, msg)
		})
	}

	t.Run("reserved check is case-insensitive", func(t *testing.T) {
		ok, msg := validate.Username("Admin")
		require.False(t, ok)
		assert.Equal(t, validate.ErrUsernameReserved, msg)
	})
}

func TestUsername_NFKCNormalization(t *testing.T) {
	// Fullwidth latin letters normalize into the permitted class under NFKC,
	// so a fullwidth rendering of a valid name is accepted.
	ok, msg := validate.Username("ａｂｃ") // ａｂｃ
	assert.True(t, ok, "fullwidth abc should normalize to abc: %s", msg)
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty to safe default", "", "u"},
		{"special chars to underscore", "User@Name", "User_Name"},
		{"safe prefix for digit start", "123user", "u123user"},
		{"safe prefix for underscore start", "_user", "u_user"},
		{"space to underscore", "user name", "user_name"},
		{"dot to underscore", "user.name", "user_name"},
		{"truncation", strings.Repeat("a", 35), strings.Repeat("a", 30)},
		{"case preserved", "UPPER_CASE", "UPPER_CASE"},
		{"non-latin replaced", "用户名", "u___"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validate.SanitizeUsername(tt.input))
		})
	}
}

func TestSanitizeUsername_Idempotent(t *testing.T) {
	inputs := []string{"", "User@Name", "123user", "user name", strings.Repeat("x", 40), "普通用户", "a.b.c"}

	for _, input := range inputs {
		once := validate.SanitizeUsername(input)
		twice := validate.SanitizeUsername(once)
		assert.Equal(t, once, twice, "sanitize should be idempotent for %q", input)
	}
}

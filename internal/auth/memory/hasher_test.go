// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Run("produces PHC format", func(t *testing.T) {
		hash, err := hashPassword("Abc123!@")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
	})

	t.Run("salts are random", func(t *testing.T) {
		first, err := hashPassword("Abc123!@")
		require.NoError(t, err)
		second, err := hashPassword("Abc123!@")
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("empty password rejected", func(t *testing.T) {
		_, err := hashPassword("")
		require.Error(t, err)
	})
}

func TestVerifyPassword(t *testing.T) {
	hash, err := hashPassword("Abc123!@")
	require.NoError(t, err)

	t.Run("match", func(t *testing.T) {
		ok, err := verifyPassword("Abc123!@", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("mismatch", func(t *testing.T) {
		ok, err := verifyPassword("wrong", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed hash", func(t *testing.T) {
		_, err := verifyPassword("Abc123!@", "not-a-hash")
		require.Error(t, err)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := verifyPassword("Abc123!@", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA")
		require.Error(t, err)
	})
}

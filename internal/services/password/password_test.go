// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package password_test

import (
	"context"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"codeberg.org/oliverandrich/idp-registration/internal/services/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v uint32) *uint32 { return &v }

func TestHash_PBKDF2(t *testing.T) {
	h := password.NewHasher()
	settings := kdf.Settings{Type: kdf.PBKDF2, Iterations: kdf.MinPBKDF2Iterations}

	encoded, err := h.Hash(context.Background(), "client-side-hash", settings)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$pbkdf2-sha256$i=100000$"))
	assert.NotContains(t, encoded, "client-side-hash")

	ok, err := password.Verify("client-side-hash", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = password.Verify("wrong", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_Argon2id(t *testing.T) {
	h := password.NewHasher()
	settings := kdf.Settings{Type: kdf.Argon2id, Iterations: 2, MemoryMiB: u32(8), Parallelism: u32(1)}

	encoded, err := h.Hash(context.Background(), "client-side-hash", settings)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=2,p=1$"))

	ok, err := password.Verify("client-side-hash", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = password.Verify("wrong", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_Salted(t *testing.T) {
	h := password.NewHasher()
	settings := kdf.Settings{Type: kdf.PBKDF2, Iterations: kdf.MinPBKDF2Iterations}

	first, err := h.Hash(context.Background(), "same", settings)
	require.NoError(t, err)
	second, err := h.Hash(context.Background(), "same", settings)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHash_Errors(t *testing.T) {
	h := password.NewHasher()

	_, err := h.Hash(context.Background(), "", kdf.Default())
	require.ErrorIs(t, err, password.ErrEmptySecret)

	_, err = h.Hash(context.Background(), "secret", kdf.Settings{Type: kdf.Argon2id, Iterations: 2})
	require.ErrorIs(t, err, kdf.ErrIncompleteParameters)

	_, err = h.Hash(context.Background(), "secret", kdf.Settings{Type: kdf.Type(7)})
	require.ErrorIs(t, err, kdf.ErrUnsupportedType)

	_, err = h.Hash(context.Background(), "secret",
		kdf.Settings{Type: kdf.Argon2id, Iterations: 2, MemoryMiB: u32(8), Parallelism: u32(300)})
	require.ErrorIs(t, err, kdf.ErrOutOfRange)
}

func TestHash_Argon2idMemoryDoesNotWrap(t *testing.T) {
	h := password.NewHasher()

	// 4 GiB expressed in KiB does not fit in 32 bits.
	_, err := h.Hash(context.Background(), "secret",
		kdf.Settings{Type: kdf.Argon2id, Iterations: 2, MemoryMiB: u32(4_194_304), Parallelism: u32(1)})

	require.ErrorIs(t, err, kdf.ErrOutOfRange)
}

func TestHash_CanceledContext(t *testing.T) {
	h := password.NewHasher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Hash(ctx, "secret", kdf.Default())

	require.ErrorIs(t, err, context.Canceled)
}

func TestVerify_InvalidHash(t *testing.T) {
	tests := []string{
		"",
		"plaintext",
		"$bcrypt$whatever$x$y",
		"$pbkdf2-sha256$i=abc$c2FsdA$aGFzaA",
		"$pbkdf2-sha256$i=0$c2FsdA$aGFzaA",
		"$pbkdf2-sha256$i=1000$!!!$aGFzaA",
		"$argon2id$v=18$m=8192,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=2,p=0$c2FsdA$aGFzaA",
	}

	for _, encoded := range tests {
		t.Run(encoded, func(t *testing.T) {
			ok, err := password.Verify("secret", encoded)

			require.ErrorIs(t, err, password.ErrInvalidHash)
			assert.False(t, ok)
		})
	}
}

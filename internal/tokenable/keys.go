// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package tokenable

import (
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/gorilla/securecookie"
)

// KeyLength is the required length of both the hash and block key in bytes.
const KeyLength = 32

// Keys holds the key material used to protect tokens.
// It is immutable after construction and safe for concurrent use.
type Keys struct {
	hash  []byte
	block []byte
}

// NewKeys decodes hex-encoded hash (HMAC) and block (AES-256) keys.
// Empty keys are generated randomly, which is only suitable for development
// because tokens do not survive a restart.
func NewKeys(hashKeyHex, blockKeyHex string) (*Keys, error) {
	hashKey, err := decodeKey(hashKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid token hash key: %w", err)
	}
	blockKey, err := decodeKey(blockKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid token block key: %w", err)
	}

	if hashKey == nil || blockKey == nil {
		slog.Warn("token_keys_generated", "reason", "no key configured, tokens will not survive a restart")
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(KeyLength)
	}
	if blockKey == nil {
		blockKey = securecookie.GenerateRandomKey(KeyLength)
	}
	if hashKey == nil || blockKey == nil {
		return nil, fmt.Errorf("failed to generate token keys")
	}

	return &Keys{hash: hashKey, block: blockKey}, nil
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != KeyLength {
		return nil, fmt.Errorf("must be %d bytes, got %d", KeyLength, len(key))
	}
	return key, nil
}

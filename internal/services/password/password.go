// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package password hashes master-password hashes for storage.
package password

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 16
	keyLength  = 32
)

var (
	ErrInvalidHash = errors.New("invalid password hash")
	ErrEmptySecret = errors.New("password is empty")
)

// Hasher derives PHC-formatted hashes using the account's KDF settings.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash derives a salted hash of secret. The secret is usually already a
// client-side derived hash; it is never stored as given.
func (h *Hasher) Hash(ctx context.Context, secret string, settings kdf.Settings) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	switch settings.Type {
	case kdf.PBKDF2:
		sum := pbkdf2.Key([]byte(secret), salt, int(settings.Iterations), keyLength, sha256.New)
		return fmt.Sprintf("$pbkdf2-sha256$i=%d$%s$%s",
			settings.Iterations, encode(salt), encode(sum)), nil

	case kdf.Argon2id:
		if settings.MemoryMiB == nil || settings.Parallelism == nil {
			return "", kdf.ErrIncompleteParameters
		}
		if *settings.Parallelism > math.MaxUint8 {
			return "", fmt.Errorf("%w: argon2id parallelism %d", kdf.ErrOutOfRange, *settings.Parallelism)
		}
		memory := uint64(*settings.MemoryMiB) * 1024
		if memory > math.MaxUint32 {
			return "", fmt.Errorf("%w: argon2id memory %d MiB", kdf.ErrOutOfRange, *settings.MemoryMiB)
		}
		memoryKiB := uint32(memory)
		threads := uint8(*settings.Parallelism)
		sum := argon2.IDKey([]byte(secret), salt, settings.Iterations, memoryKiB, threads, keyLength)
		return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
			argon2.Version, memoryKiB, settings.Iterations, threads, encode(salt), encode(sum)), nil

	default:
		return "", fmt.Errorf("%w: %s", kdf.ErrUnsupportedType, settings.Type)
	}
}

// Verify checks secret against an encoded hash in constant time.
func Verify(secret, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) < 5 || parts[0] != "" {
		return false, ErrInvalidHash
	}

	switch parts[1] {
	case "pbkdf2-sha256":
		if len(parts) != 5 {
			return false, ErrInvalidHash
		}
		iterations, err := parseUint32Param(parts[2], "i=")
		if err != nil || iterations == 0 {
			return false, ErrInvalidHash
		}
		salt, expected, err := decodeSaltAndSum(parts[3], parts[4])
		if err != nil {
			return false, err
		}
		actual := pbkdf2.Key([]byte(secret), salt, int(iterations), len(expected), sha256.New)
		return subtle.ConstantTimeCompare(actual, expected) == 1, nil

	case "argon2id":
		if len(parts) != 6 || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
			return false, ErrInvalidHash
		}
		memory, timeCost, threads, err := parseArgon2Params(parts[3])
		if err != nil {
			return false, err
		}
		salt, expected, err := decodeSaltAndSum(parts[4], parts[5])
		if err != nil {
			return false, err
		}
		actual := argon2.IDKey([]byte(secret), salt, timeCost, memory, threads, uint32(len(expected)))
		return subtle.ConstantTimeCompare(actual, expected) == 1, nil

	default:
		return false, ErrInvalidHash
	}
}

func encode(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}

func decodeSaltAndSum(saltPart, sumPart string) ([]byte, []byte, error) {
	salt, err := base64.RawStdEncoding.DecodeString(saltPart)
	if err != nil {
		return nil, nil, ErrInvalidHash
	}
	sum, err := base64.RawStdEncoding.DecodeString(sumPart)
	if err != nil || len(sum) == 0 {
		return nil, nil, ErrInvalidHash
	}
	return salt, sum, nil
}

func parseArgon2Params(value string) (uint32, uint32, uint8, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return 0, 0, 0, ErrInvalidHash
	}
	memory, err := parseUint32Param(parts[0], "m=")
	if err != nil {
		return 0, 0, 0, err
	}
	timeCost, err := parseUint32Param(parts[1], "t=")
	if err != nil {
		return 0, 0, 0, err
	}
	threads, err := parseUint32Param(parts[2], "p=")
	if err != nil || threads == 0 || threads > math.MaxUint8 {
		return 0, 0, 0, ErrInvalidHash
	}
	return memory, timeCost, uint8(threads), nil
}

func parseUint32Param(value, prefix string) (uint32, error) {
	if !strings.HasPrefix(value, prefix) {
		return 0, ErrInvalidHash
	}
	parsed, err := strconv.ParseUint(strings.TrimPrefix(value, prefix), 10, 32)
	if err != nil {
		return 0, ErrInvalidHash
	}
	return uint32(parsed), nil
}

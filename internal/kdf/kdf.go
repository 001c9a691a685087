// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package kdf resolves the key-derivation parameters stored for a new account.
package kdf

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type identifies a key-derivation function.
type Type int

const (
	PBKDF2 Type = iota
	Argon2id
)

const (
	// DefaultPBKDF2Iterations is used when no settings are supplied.
	DefaultPBKDF2Iterations uint32 = 600_000
	// MinPBKDF2Iterations is the lowest accepted PBKDF2 work factor.
	MinPBKDF2Iterations uint32 = 100_000
	// MinArgon2Iterations is the lowest accepted Argon2id time cost.
	MinArgon2Iterations uint32 = 2

	// Upper bounds keep a single registration from exhausting the host.
	MaxPBKDF2Iterations  uint32 = 2_000_000
	MaxArgon2Iterations  uint32 = 10
	MaxArgon2MemoryMiB   uint32 = 1024
	MaxArgon2Parallelism uint32 = 16
)

var (
	ErrIncompleteParameters = errors.New("argon2id requires memory and parallelism")
	ErrOutOfRange           = errors.New("kdf parameter out of range")
	ErrUnsupportedType      = errors.New("unsupported kdf type")
)

func (t Type) String() string {
	switch t {
	case PBKDF2:
		return "pbkdf2"
	case Argon2id:
		return "argon2id"
	default:
		return fmt.Sprintf("kdf(%d)", int(t))
	}
}

// UnmarshalJSON accepts the numeric value (0, 1) or a type name such as
// "argon2id".
func (t *Type) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if Type(n) != PBKDF2 && Type(n) != Argon2id {
			return fmt.Errorf("%w: %d", ErrUnsupportedType, n)
		}
		*t = Type(n)
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, data)
	}
	parsed, err := ParseType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses "pbkdf2" or "argon2id", case-insensitively.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pbkdf2", "pbkdf2_sha256", "pbkdf2-sha256":
		return PBKDF2, nil
	case "argon2id", "argon2":
		return Argon2id, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
	}
}

// Settings are the parameters a client derives its master key with.
// MemoryMiB and Parallelism are only meaningful for Argon2id.
type Settings struct {
	MemoryMiB   *uint32
	Parallelism *uint32
	Type        Type
	Iterations  uint32
}

// Default returns the settings applied when a client sends none.
func Default() Settings {
	return Settings{Type: PBKDF2, Iterations: DefaultPBKDF2Iterations}
}

// Resolve fills in defaults, raises parameters below the minimums and
// rejects parameters above the maximums. It never weakens the requested
// parameters.
func Resolve(requested *Settings) (Settings, error) {
	if requested == nil {
		return Default(), nil
	}

	switch requested.Type {
	case PBKDF2:
		if requested.Iterations > MaxPBKDF2Iterations {
			return Settings{}, fmt.Errorf("%w: pbkdf2 iterations %d exceed %d",
				ErrOutOfRange, requested.Iterations, MaxPBKDF2Iterations)
		}
		return Settings{
			Type:       PBKDF2,
			Iterations: max(requested.Iterations, MinPBKDF2Iterations),
		}, nil

	case Argon2id:
		if requested.MemoryMiB == nil || *requested.MemoryMiB == 0 ||
			requested.Parallelism == nil || *requested.Parallelism == 0 {
			return Settings{}, ErrIncompleteParameters
		}
		memory, parallelism := *requested.MemoryMiB, *requested.Parallelism
		switch {
		case requested.Iterations > MaxArgon2Iterations:
			return Settings{}, fmt.Errorf("%w: argon2id iterations %d exceed %d",
				ErrOutOfRange, requested.Iterations, MaxArgon2Iterations)
		case memory > MaxArgon2MemoryMiB:
			return Settings{}, fmt.Errorf("%w: argon2id memory %d MiB exceeds %d",
				ErrOutOfRange, memory, MaxArgon2MemoryMiB)
		case parallelism > MaxArgon2Parallelism:
			return Settings{}, fmt.Errorf("%w: argon2id parallelism %d exceeds %d",
				ErrOutOfRange, parallelism, MaxArgon2Parallelism)
		}
		return Settings{
			Type:        Argon2id,
			Iterations:  max(requested.Iterations, MinArgon2Iterations),
			MemoryMiB:   &memory,
			Parallelism: &parallelism,
		}, nil

	default:
		return Settings{}, fmt.Errorf("%w: %s", ErrUnsupportedType, requested.Type)
	}
}

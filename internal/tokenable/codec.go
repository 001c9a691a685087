// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package tokenable protects typed, expiring payloads as opaque strings.
//
// A token carries an identifier naming its purpose, so a token minted for one
// flow is rejected by every other flow even though its integrity check passes.
// Tokens are not single-use; consumers that need replay protection must track
// redemption themselves.
package tokenable

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
)

// Token verification errors. Exactly one is returned for a rejected token.
var (
	ErrMalformed    = errors.New("token is malformed")
	ErrIntegrity    = errors.New("token failed integrity check")
	ErrTypeMismatch = errors.New("token identifier mismatch")
	ErrExpired      = errors.New("token expired")
)

// cookieName is bound into the MAC. The purpose lives in the envelope so that
// a wrong-purpose token is reported as a mismatch and not as forged.
const cookieName = "tokenable"

// maxTokenLength bounds encoded token size before any decoding work is done.
const maxTokenLength = 8192

// Envelope is the metadata stored next to every payload.
type Envelope struct {
	Identifier string          `json:"id"`
	IssuedAt   time.Time       `json:"iat"`
	ExpiresAt  time.Time       `json:"exp"`
	Payload    json.RawMessage `json:"p"`
}

// Codec seals and opens tokens with a fixed set of keys.
type Codec struct {
	sc  *securecookie.SecureCookie
	now func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a codec using the given key material.
func NewCodec(keys *Keys, opts ...Option) *Codec {
	sc := securecookie.New(keys.hash, keys.block).
		MaxAge(0). // expiry is carried in the envelope
		MaxLength(maxTokenLength)
	sc.SetSerializer(securecookie.JSONEncoder{})

	c := &Codec{sc: sc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Protect seals payload under identifier, valid for ttl from now.
func (c *Codec) Protect(identifier string, payload any, ttl time.Duration) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("token identifier is required")
	}
	if ttl < 0 {
		return "", fmt.Errorf("token ttl must not be negative")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode token payload: %w", err)
	}

	now := c.now().UTC()
	env := Envelope{
		Identifier: identifier,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		Payload:    raw,
	}

	token, err := c.sc.Encode(cookieName, env)
	if err != nil {
		return "", fmt.Errorf("failed to protect token: %w", err)
	}
	return token, nil
}

// Unprotect opens token, checks it was issued for expectedIdentifier and has
// not expired, and decodes its payload into dst.
func (c *Codec) Unprotect(token, expectedIdentifier string, dst any) (*Envelope, error) {
	if !wellFormed(token) {
		return nil, ErrMalformed
	}

	var env Envelope
	if err := c.sc.Decode(cookieName, token, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegrity, err)
	}

	if env.Identifier != expectedIdentifier {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrTypeMismatch, env.Identifier, expectedIdentifier)
	}

	if c.now().After(env.ExpiresAt) {
		return nil, fmt.Errorf("%w: at %s", ErrExpired, env.ExpiresAt.Format(time.RFC3339))
	}

	if dst != nil {
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	return &env, nil
}

// wellFormed checks the outer framing without touching keys: canonical
// base64 wrapping "timestamp|value|mac".
func wellFormed(token string) bool {
	if token == "" || len(token) > maxTokenLength {
		return false
	}
	raw, err := base64.URLEncoding.Strict().DecodeString(token)
	if err != nil {
		return false
	}
	parts := bytes.SplitN(raw, []byte("|"), 3)
	if len(parts) != 3 || len(parts[0]) == 0 {
		return false
	}
	for _, b := range parts[0] {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// Reason returns a short, log-friendly name for a token error.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrExpired):
		return "expired"
	default:
		return "unknown"
	}
}

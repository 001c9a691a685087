// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package webauthn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/config"
	"codeberg.org/oliverandrich/idp-registration/internal/models"
	"codeberg.org/oliverandrich/idp-registration/internal/tokenable"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// AssertionTTL bounds the time between requesting options and asserting.
const AssertionTTL = 17 * time.Minute

var (
	ErrInvalidConfig         = errors.New("invalid webauthn config")
	ErrInvalidAssertionToken = errors.New("invalid assertion options token")
	ErrAssertionFailed       = errors.New("webauthn assertion failed")
)

// UserStore resolves passkey owners and records sign counts.
type UserStore interface {
	GetUserByWebAuthnID(ctx context.Context, handle []byte) (*models.User, error)
	UpdateCredentialSignCount(ctx context.Context, credentialID []byte, signCount uint32) error
}

// Service provides passkey login without server-side session state:
// the assertion session travels in a tokenable.
type Service struct {
	wa    *webauthn.WebAuthn
	codec *tokenable.Codec
	users UserStore
}

// NewService creates a new WebAuthn service.
func NewService(cfg *config.WebAuthnConfig, codec *tokenable.Codec, users UserStore) (*Service, error) {
	if cfg.RPID == "" {
		return nil, fmt.Errorf("%w: relying party id is required", ErrInvalidConfig)
	}
	if cfg.RPOrigin == "" {
		return nil, fmt.Errorf("%w: relying party origin is required", ErrInvalidConfig)
	}

	wconfig := &webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     []string{cfg.RPOrigin},
	}

	wa, err := webauthn.New(wconfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Service{
		wa:    wa,
		codec: codec,
		users: users,
	}, nil
}

// WebAuthn returns the underlying webauthn.WebAuthn instance.
func (s *Service) WebAuthn() *webauthn.WebAuthn {
	return s.wa
}

// BeginAssertion starts a discoverable login. The returned token must be
// presented with the assertion.
func (s *Service) BeginAssertion() (*protocol.CredentialAssertion, string, error) {
	options, session, err := s.wa.BeginDiscoverableLogin()
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin discoverable login: %w", err)
	}

	token, err := tokenable.Seal(s.codec, tokenable.WebAuthnLoginAssertionOptions{Session: *session}, AssertionTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to seal assertion options: %w", err)
	}

	return options, token, nil
}

// FinishAssertion validates the assertion in r against the session sealed in
// token and returns the authenticated user.
func (s *Service) FinishAssertion(ctx context.Context, token string, r *http.Request) (*models.User, error) {
	opened, err := tokenable.Open[tokenable.WebAuthnLoginAssertionOptions](s.codec, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAssertionToken, err)
	}

	var found *models.User
	credential, err := s.wa.FinishDiscoverableLogin(
		func(_, userHandle []byte) (webauthn.User, error) {
			user, userErr := s.users.GetUserByWebAuthnID(ctx, userHandle)
			if userErr != nil {
				return nil, userErr
			}
			found = user
			return user, nil
		},
		opened.Payload.Session,
		r,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssertionFailed, err)
	}

	if err := s.users.UpdateCredentialSignCount(ctx, credential.ID, credential.Authenticator.SignCount); err != nil {
		slog.WarnContext(ctx, "sign_count_update_failed", "user_id", found.ID, "error", err)
	}

	slog.InfoContext(ctx, "webauthn_assertion_succeeded", "user_id", found.ID)
	return found, nil
}

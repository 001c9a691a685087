// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/idp-registration/internal/events"
	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"codeberg.org/oliverandrich/idp-registration/internal/models"
	"codeberg.org/oliverandrich/idp-registration/internal/repository"
	"codeberg.org/oliverandrich/idp-registration/internal/tokenable"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// State is the furthest step a registration attempt reached.
type State int

const (
	StateStart State = iota
	StateTokenVerified
	StateKdfResolved
	StatePasswordHashed
	StateUserCreated
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateTokenVerified:
		return "token_verified"
	case StateKdfResolved:
		return "kdf_resolved"
	case StatePasswordHashed:
		return "password_hashed"
	case StateUserCreated:
		return "user_created"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// KeyPair is the client-generated asymmetric key pair.
type KeyPair struct {
	PublicKey           string
	EncryptedPrivateKey string
}

// Validate implements validation.Validatable.
func (k KeyPair) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.PublicKey, validation.Required),
		validation.Field(&k.EncryptedPrivateKey, validation.Required),
	)
}

// Request is a finish-registration request.
type Request struct {
	Kdf                *kdf.Settings
	Email              string
	Name               string
	MasterPasswordHash string
	MasterPasswordHint string
	UserSymmetricKey   string
	UserAsymmetricKeys KeyPair
	Authorization
}

// Validate implements validation.Validatable. The authorization union is
// checked separately by Register.
func (r Request) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 256), is.Email),
		validation.Field(&r.Name, validation.Length(0, 50)),
		validation.Field(&r.MasterPasswordHash, validation.Required, validation.Length(1, 1000)),
		validation.Field(&r.MasterPasswordHint, validation.Length(0, 50)),
		validation.Field(&r.UserSymmetricKey, validation.Required),
		validation.Field(&r.UserAsymmetricKeys),
	)
}

// Service registers new users.
type Service struct {
	verifier *Verifier
	users    UserStore
	hasher   PasswordHasher
	events   events.Sink
}

// NewService creates a registration service. A nil sink discards events.
func NewService(verifier *Verifier, users UserStore, hasher PasswordHasher, sink events.Sink) *Service {
	if sink == nil {
		sink = events.Discard
	}
	return &Service{
		verifier: verifier,
		users:    users,
		hasher:   hasher,
		events:   sink,
	}
}

// attempt tracks one registration for logging.
type attempt struct {
	email  string
	source Source
	state  State
}

func (a *attempt) advance(to State) {
	a.state = to
}

func (a *attempt) reject(ctx context.Context, err error, attrs ...any) error {
	args := append([]any{"email", a.email, "state", a.state.String(), "reason", err.Error()}, attrs...)
	if a.source != "" {
		args = append(args, "source", string(a.source))
	}
	slog.WarnContext(ctx, "registration_rejected", args...)
	return err
}

// Register creates the account authorized by req and returns its ID.
// Nothing is written unless every step succeeds.
func (s *Service) Register(ctx context.Context, req Request) (uuid.UUID, error) {
	a := &attempt{email: NormalizeEmail(req.Email), state: StateStart}

	if req.branches() != 1 {
		return uuid.Nil, a.reject(ctx, ErrAmbiguousAuthorization)
	}
	if err := req.Validate(); err != nil {
		return uuid.Nil, a.reject(ctx, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	identity, err := s.verifier.Verify(req.Authorization)
	if err != nil {
		return uuid.Nil, a.reject(ctx, ErrUnauthorized, "cause", verificationCause(err))
	}
	a.source = identity.Source
	if !strings.EqualFold(strings.TrimSpace(identity.Email), a.email) {
		return uuid.Nil, a.reject(ctx, ErrUnauthorized, "cause", "email_mismatch")
	}
	a.advance(StateTokenVerified)

	existing, err := s.users.FindUserByEmail(ctx, a.email)
	if err != nil {
		return uuid.Nil, a.reject(ctx, fmt.Errorf("%w: %w", ErrPersistenceFailure, err))
	}
	if existing != nil {
		return uuid.Nil, a.reject(ctx, ErrEmailTaken)
	}

	settings, err := kdf.Resolve(req.Kdf)
	if err != nil {
		return uuid.Nil, a.reject(ctx, fmt.Errorf("%w: %w", ErrInvalidKdfParameters, err))
	}
	a.advance(StateKdfResolved)

	hash, err := s.hasher.Hash(ctx, req.MasterPasswordHash, settings)
	if err != nil {
		return uuid.Nil, a.reject(ctx, fmt.Errorf("failed to hash master password: %w", err))
	}
	a.advance(StatePasswordHashed)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = identity.Name
	}
	user := &models.User{
		Email:                  a.email,
		Name:                   name,
		MasterPassword:         hash,
		MasterPasswordHint:     req.MasterPasswordHint,
		Key:                    req.UserSymmetricKey,
		PublicKey:              req.UserAsymmetricKeys.PublicKey,
		PrivateKey:             req.UserAsymmetricKeys.EncryptedPrivateKey,
		EmailVerified:          identity.Source == SourceEmailVerification,
		ReceiveMarketingEmails: identity.ReceiveMarketingEmails,
	}
	user.SetKdf(settings)

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return uuid.Nil, a.reject(ctx, ErrEmailTaken)
		}
		return uuid.Nil, a.reject(ctx, fmt.Errorf("%w: %w", ErrPersistenceFailure, err))
	}
	a.advance(StateUserCreated)

	slog.InfoContext(ctx, "registration_succeeded",
		"user_id", user.ID, "email", user.Email, "source", string(identity.Source), "kdf", settings.Type.String())

	s.events.Emit(ctx, events.New(events.UserRegistered, map[string]string{
		"user_id": user.ID.String(),
		"source":  string(identity.Source),
	}))

	return user.ID, nil
}

// verificationCause names a verification failure for logs.
func verificationCause(err error) string {
	if errors.Is(err, ErrIdentityMismatch) {
		return "identity_mismatch"
	}
	if reason := tokenable.Reason(err); reason != "" && reason != "unknown" {
		return reason
	}
	return "invalid_token"
}

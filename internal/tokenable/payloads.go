// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package tokenable

import (
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Token identifiers.
const (
	EmailVerificationIdentifier = "EmailVerificationTokenable"
	OrgInviteIdentifier         = "OrgUserInviteTokenable"

	WebAuthnLoginAssertionOptionsIdentifier = "WebAuthnLoginAssertionOptionsTokenable"
)

// Payload is a value that can be sealed into a token of its own kind.
// TokenIdentifier must not depend on the receiver's fields.
type Payload interface {
	TokenIdentifier() string
}

// Tokenable is an opened token with its metadata.
type Tokenable[T Payload] struct {
	Payload    T
	Identifier string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Seal protects payload with the identifier of its type.
func Seal[T Payload](c *Codec, payload T, ttl time.Duration) (string, error) {
	return c.Protect(payload.TokenIdentifier(), payload, ttl)
}

// Open unprotects token, expecting the identifier of T.
func Open[T Payload](c *Codec, token string) (Tokenable[T], error) {
	var payload T
	env, err := c.Unprotect(token, payload.TokenIdentifier(), &payload)
	if err != nil {
		return Tokenable[T]{}, err
	}
	return Tokenable[T]{
		Payload:    payload,
		Identifier: env.Identifier,
		IssuedAt:   env.IssuedAt,
		ExpiresAt:  env.ExpiresAt,
	}, nil
}

// EmailVerification authorizes registration of a verified email address.
type EmailVerification struct {
	Email                  string `json:"email"`
	Name                   string `json:"name,omitempty"`
	ReceiveMarketingEmails bool   `json:"receiveMarketingEmails"`
}

// TokenIdentifier implements Payload.
func (EmailVerification) TokenIdentifier() string { return EmailVerificationIdentifier }

// OrgInvite authorizes a specific organization user to finish registration.
type OrgInvite struct {
	OrganizationUserID uuid.UUID `json:"orgUserId"`
	Email              string    `json:"email"`
}

// TokenIdentifier implements Payload.
func (OrgInvite) TokenIdentifier() string { return OrgInviteIdentifier }

// WebAuthnLoginAssertionOptions carries the session data of a pending
// discoverable login between the options and assertion requests.
type WebAuthnLoginAssertionOptions struct {
	Session webauthn.SessionData `json:"session"`
}

// TokenIdentifier implements Payload.
func (WebAuthnLoginAssertionOptions) TokenIdentifier() string {
	return WebAuthnLoginAssertionOptionsIdentifier
}

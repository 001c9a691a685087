// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package registration

import (
	"fmt"

	"codeberg.org/oliverandrich/idp-registration/internal/tokenable"
	"github.com/google/uuid"
)

// Authorization carries the token that allows a registration.
// Exactly one of EmailVerificationToken and OrgInviteToken must be set.
type Authorization struct {
	EmailVerificationToken string
	OrgInviteToken         string
	OrganizationUserID     uuid.UUID
}

func (a Authorization) branches() int {
	n := 0
	if a.EmailVerificationToken != "" {
		n++
	}
	if a.OrgInviteToken != "" {
		n++
	}
	return n
}

// Source tells which token authorized a registration.
type Source string

const (
	SourceEmailVerification Source = "email_verification"
	SourceOrgInvite         Source = "org_invite"
)

// VerifiedIdentity is what a valid token vouches for.
type VerifiedIdentity struct {
	Email                  string
	Name                   string
	Source                 Source
	OrganizationUserID     uuid.UUID
	ReceiveMarketingEmails bool
}

// Verifier checks registration tokens.
type Verifier struct {
	codec *tokenable.Codec
}

// NewVerifier creates a Verifier using codec.
func NewVerifier(codec *tokenable.Codec) *Verifier {
	return &Verifier{codec: codec}
}

// Verify validates the single populated authorization branch.
// Token failures are returned as ErrInvalidToken wrapping the tokenable error.
func (v *Verifier) Verify(auth Authorization) (VerifiedIdentity, error) {
	if auth.branches() != 1 {
		return VerifiedIdentity{}, ErrAmbiguousAuthorization
	}

	if auth.EmailVerificationToken != "" {
		t, err := tokenable.Open[tokenable.EmailVerification](v.codec, auth.EmailVerificationToken)
		if err != nil {
			return VerifiedIdentity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return VerifiedIdentity{
			Email:                  t.Payload.Email,
			Name:                   t.Payload.Name,
			ReceiveMarketingEmails: t.Payload.ReceiveMarketingEmails,
			Source:                 SourceEmailVerification,
		}, nil
	}

	t, err := tokenable.Open[tokenable.OrgInvite](v.codec, auth.OrgInviteToken)
	if err != nil {
		return VerifiedIdentity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if t.Payload.OrganizationUserID != auth.OrganizationUserID {
		return VerifiedIdentity{}, ErrIdentityMismatch
	}
	return VerifiedIdentity{
		Email:              t.Payload.Email,
		OrganizationUserID: t.Payload.OrganizationUserID,
		Source:             SourceOrgInvite,
	}, nil
}

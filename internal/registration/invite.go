// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package registration

import (
	"errors"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/tokenable"
	"github.com/google/uuid"
)

// DefaultOrgInviteTTL is how long an organization invite stays valid.
const DefaultOrgInviteTTL = 5 * 24 * time.Hour

// IssueInvite mints an org invite token for the given organization user.
// A non-positive ttl uses DefaultOrgInviteTTL.
func IssueInvite(codec *tokenable.Codec, organizationUserID uuid.UUID, email string, ttl time.Duration) (string, error) {
	if organizationUserID == uuid.Nil {
		return "", errors.New("organization user id is required")
	}
	email = NormalizeEmail(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	if ttl <= 0 {
		ttl = DefaultOrgInviteTTL
	}

	token, err := tokenable.Seal(codec, tokenable.OrgInvite{
		OrganizationUserID: organizationUserID,
		Email:              email,
	}, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to create invite token: %w", err)
	}
	return token, nil
}

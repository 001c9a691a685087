// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package registration turns verified email or org-invite tokens into user accounts
// and issues the email verification tokens that start the flow.
package registration

import (
	"context"
	"strings"

	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"codeberg.org/oliverandrich/idp-registration/internal/models"
)

// UserLookup finds an account by email. A missing account is (nil, nil).
type UserLookup interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// UserStore persists accounts. CreateUser must fail with repository.ErrDuplicate
// when the email is already registered.
type UserStore interface {
	UserLookup
	CreateUser(ctx context.Context, user *models.User) error
}

// PasswordHasher hashes the client-derived master password hash for storage.
type PasswordHasher interface {
	Hash(ctx context.Context, secret string, settings kdf.Settings) (string, error)
}

// Mailer delivers verification tokens.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, token string) error
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

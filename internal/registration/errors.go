// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package registration

import "errors"

// Verification errors.
var (
	ErrInvalidToken     = errors.New("invalid registration token")
	ErrIdentityMismatch = errors.New("token does not belong to this organization user")
)

// Registration errors. Token and verification failures surface only as
// ErrUnauthorized; their cause is logged.
var (
	ErrAmbiguousAuthorization = errors.New("exactly one of email verification token or org invite token is required")
	ErrInvalidRequest         = errors.New("invalid registration request")
	ErrUnauthorized           = errors.New("registration not authorized")
	ErrEmailTaken             = errors.New("email is already registered")
	ErrInvalidKdfParameters   = errors.New("invalid kdf parameters")
	ErrPersistenceFailure     = errors.New("failed to persist user")
)

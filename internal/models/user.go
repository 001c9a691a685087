// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// User is an account created by the registration pipeline.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                     uuid.UUID `db:"id" json:"id"`
	Email                  string    `db:"email" json:"email"`
	Name                   string    `db:"name" json:"name"`
	MasterPassword         string    `db:"master_password" json:"-"` // PHC-encoded server-side hash
	MasterPasswordHint     string    `db:"master_password_hint" json:"-"`
	KdfType                kdf.Type  `db:"kdf_type" json:"kdf"`
	KdfIterations          uint32    `db:"kdf_iterations" json:"kdfIterations"`
	KdfMemory              *uint32   `db:"kdf_memory" json:"kdfMemory,omitempty"`
	KdfParallelism         *uint32   `db:"kdf_parallelism" json:"kdfParallelism,omitempty"`
	Key                    string    `db:"key" json:"-"`
	PublicKey              string    `db:"public_key" json:"-"`
	PrivateKey             string    `db:"private_key" json:"-"`
	EmailVerified          bool      `db:"email_verified" json:"emailVerified"`
	ReceiveMarketingEmails bool      `db:"receive_marketing_emails" json:"-"`
	CreatedAt              time.Time `db:"created_at" json:"createdAt"`

	Credentials []Credential `db:"-" json:"-"`
}

// Kdf returns the stored key-derivation settings.
func (u *User) Kdf() kdf.Settings {
	return kdf.Settings{
		Type:        u.KdfType,
		Iterations:  u.KdfIterations,
		MemoryMiB:   u.KdfMemory,
		Parallelism: u.KdfParallelism,
	}
}

// SetKdf stores key-derivation settings on the user.
func (u *User) SetKdf(s kdf.Settings) {
	u.KdfType = s.Type
	u.KdfIterations = s.Iterations
	u.KdfMemory = s.MemoryMiB
	u.KdfParallelism = s.Parallelism
}

// WebAuthnID returns the user handle: the raw 16 bytes of the user ID.
func (u *User) WebAuthnID() []byte {
	id := u.ID
	return id[:]
}

// WebAuthnName returns the account name shown by authenticators.
func (u *User) WebAuthnName() string {
	return u.Email
}

// WebAuthnDisplayName returns the display name, falling back to the email.
func (u *User) WebAuthnDisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// WebAuthnCredentials returns the user's credentials in webauthn form.
func (u *User) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.Credentials))
	for i := range u.Credentials {
		creds[i] = u.Credentials[i].ToWebAuthn()
	}
	return creds
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models_test

import (
	"testing"

	"codeberg.org/oliverandrich/idp-registration/internal/models"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
)

func TestCredential_ToWebAuthn(t *testing.T) {
	cred := &models.Credential{
		CredentialID:    []byte("passkey-1"),
		PublicKey:       []byte("cose-key"),
		AAGUID:          []byte("aaguid"),
		SignCount:       7,
		BackupEligible:  true,
		AttestationType: "packed",
	}

	got := cred.ToWebAuthn()

	assert.Equal(t, []byte("passkey-1"), got.ID)
	assert.Equal(t, []byte("cose-key"), got.PublicKey)
	assert.Equal(t, []byte("aaguid"), got.Authenticator.AAGUID)
	assert.Equal(t, uint32(7), got.Authenticator.SignCount)
	assert.Equal(t, "packed", got.AttestationType)
	assert.True(t, got.Flags.UserPresent)
	assert.True(t, got.Flags.UserVerified)
	assert.True(t, got.Flags.BackupEligible)
	assert.False(t, got.Flags.BackupState)
}

func TestCredential_ToWebAuthnTransports(t *testing.T) {
	tests := []struct {
		name       string
		transports string
		expected   []protocol.AuthenticatorTransport
	}{
		{"none", "", nil},
		{"single", "internal", []protocol.AuthenticatorTransport{protocol.Internal}},
		{"hybrid and usb", "hybrid,usb", []protocol.AuthenticatorTransport{protocol.Hybrid, protocol.USB}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := &models.Credential{Transports: tt.transports}
			assert.Equal(t, tt.expected, cred.ToWebAuthn().Transport)
		})
	}
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/idp-registration/internal/database"
	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"codeberg.org/oliverandrich/idp-registration/internal/models"
	"codeberg.org/oliverandrich/idp-registration/internal/repository"
	"codeberg.org/oliverandrich/idp-registration/internal/tokenable"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// Hex-encoded token keys for tests.
const (
	TokenHashKey  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	TokenBlockKey = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestCodec creates a token codec with fixed test keys.
func NewTestCodec(t *testing.T, opts ...tokenable.Option) *tokenable.Codec {
	t.Helper()
	keys, err := tokenable.NewKeys(TokenHashKey, TokenBlockKey)
	require.NoError(t, err)
	return tokenable.NewCodec(keys, opts...)
}

// NewTestUser creates a test user in the database.
func NewTestUser(t *testing.T, repo *repository.Repository, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:          email,
		MasterPassword: "$pbkdf2-sha256$i=100000$c2FsdA$aGFzaA",
		Key:            "2.symmetric-key",
		PublicKey:      "public-key",
		PrivateKey:     "2.encrypted-private-key",
	}
	user.SetKdf(kdf.Default())
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewTestCredential creates a test credential for a user.
func NewTestCredential(t *testing.T, repo *repository.Repository, user *models.User, name string) *models.Credential {
	t.Helper()
	cred := &models.Credential{
		UserID:       user.ID,
		CredentialID: []byte("test-credential-id-" + name),
		PublicKey:    []byte("test-public-key"),
		AAGUID:       []byte("test-aaguid-1234"),
		Name:         name,
	}
	require.NoError(t, repo.CreateCredential(context.Background(), cred))
	return cred
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

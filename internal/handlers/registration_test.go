// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/handlers"
	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"codeberg.org/oliverandrich/idp-registration/internal/registration"
	"codeberg.org/oliverandrich/idp-registration/internal/testutil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	err   error
	calls []string
}

func (s *stubSender) SendVerification(_ context.Context, email, _ string, _ bool) (string, bool, error) {
	s.calls = append(s.calls, email)
	if s.err != nil {
		return "", false, s.err
	}
	return "token", true, nil
}

type stubRegistrar struct {
	id  uuid.UUID
	err error
	got registration.Request
}

func (s *stubRegistrar) Register(_ context.Context, req registration.Request) (uuid.UUID, error) {
	s.got = req
	return s.id, s.err
}

type recordingMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *recordingMailer) SendVerificationEmail(_ context.Context, to, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[to] = token
	return nil
}

func (m *recordingMailer) token(to string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[to]
	return token, ok
}

// slowMailer stands in for an SMTP server that takes a while to accept mail.
type slowMailer struct {
	delay time.Duration
	recordingMailer
}

func (m *slowMailer) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	time.Sleep(m.delay)
	return m.recordingMailer.SendVerificationEmail(ctx, to, name, token)
}

type plainHasher struct{}

func (plainHasher) Hash(_ context.Context, secret string, _ kdf.Settings) (string, error) {
	return "hashed:" + secret, nil
}

func TestSendVerificationEmail(t *testing.T) {
	sender := &stubSender{}
	h := handlers.NewRegistration(sender, &stubRegistrar{})
	body := `{"email":"alice@example.com","name":"Alice","receiveMarketingEmails":true}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/accounts/register/send-verification-email", strings.NewReader(body))

	err := h.SendVerificationEmail(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, []string{"alice@example.com"}, sender.calls)
}

func TestSendVerificationEmail_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"email":`},
		{"missing email", `{"name":"Alice"}`},
		{"malformed email", `{"email":"not-an-email"}`},
		{"name too long", `{"email":"alice@example.com","name":"` + strings.Repeat("a", 51) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{}
			h := handlers.NewRegistration(sender, &stubRegistrar{})
			c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(tt.body))

			err := h.SendVerificationEmail(c)

			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, sender.calls)
		})
	}
}

func TestSendVerificationEmail_SenderErrorIsHidden(t *testing.T) {
	h := handlers.NewRegistration(&stubSender{err: errors.New("smtp down")}, &stubRegistrar{})
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(`{"email":"alice@example.com"}`))

	err := h.SendVerificationEmail(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSendVerificationEmail_SameResponseForExistingAccount(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "taken@example.com")
	mailer := &recordingMailer{}
	sender := registration.NewSender(testutil.NewTestCodec(t), repo, mailer, nil, time.Hour)
	h := handlers.NewRegistration(sender, &stubRegistrar{})

	send := func(email string) (int, string, http.Header) {
		body := fmt.Sprintf(`{"email":%q}`, email)
		c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(body))
		require.NoError(t, h.SendVerificationEmail(c))
		return rec.Code, rec.Body.String(), rec.Header()
	}

	newCode, newBody, newHeader := send("fresh@example.com")
	takenCode, takenBody, takenHeader := send("taken@example.com")

	assert.Equal(t, newCode, takenCode)
	assert.Equal(t, newBody, takenBody)
	assert.Equal(t, newHeader, takenHeader)

	sender.Wait()
	_, mailed := mailer.token("fresh@example.com")
	assert.True(t, mailed)
	_, mailed = mailer.token("taken@example.com")
	assert.False(t, mailed)
}

func TestSendVerificationEmail_TimingDoesNotRevealAccount(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	testutil.NewTestUser(t, repo, "taken@example.com")
	mailer := &slowMailer{delay: 300 * time.Millisecond}
	sender := registration.NewSender(testutil.NewTestCodec(t), repo, mailer, nil, time.Hour)
	h := handlers.NewRegistration(sender, &stubRegistrar{})
	t.Cleanup(sender.Wait)

	timed := func(email string) time.Duration {
		body := fmt.Sprintf(`{"email":%q}`, email)
		c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(body))
		start := time.Now()
		require.NoError(t, h.SendVerificationEmail(c))
		elapsed := time.Since(start)
		require.Equal(t, http.StatusNoContent, rec.Code)
		return elapsed
	}

	fresh := timed("fresh@example.com")
	taken := timed("taken@example.com")

	assert.Less(t, fresh, mailer.delay/3, "new address waited for mail delivery")
	assert.Less(t, taken, mailer.delay/3)

	sender.Wait()
	_, mailed := mailer.token("fresh@example.com")
	assert.True(t, mailed)
}

func TestFinishRegistration_MapsRequest(t *testing.T) {
	id := uuid.New()
	orgUserID := uuid.New()
	registrar := &stubRegistrar{id: id}
	h := handlers.NewRegistration(&stubSender{}, registrar)
	body := fmt.Sprintf(`{
		"email": "bob@example.com",
		"name": "Bob",
		"masterPasswordHash": "client-hash",
		"masterPasswordHint": "hint",
		"kdf": 1,
		"kdfIterations": 3,
		"kdfMemory": 64,
		"kdfParallelism": 4,
		"userSymmetricKey": "sym",
		"userAsymmetricKeys": {"publicKey": "pub", "encryptedPrivateKey": "priv"},
		"orgInviteToken": "invite",
		"organizationUserId": %q
	}`, orgUserID)
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/accounts/register/finish", strings.NewReader(body))

	err := h.FinishRegistration(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q}`, id), rec.Body.String())

	got := registrar.got
	assert.Equal(t, "bob@example.com", got.Email)
	assert.Equal(t, "client-hash", got.MasterPasswordHash)
	assert.Equal(t, "sym", got.UserSymmetricKey)
	assert.Equal(t, registration.KeyPair{PublicKey: "pub", EncryptedPrivateKey: "priv"}, got.UserAsymmetricKeys)
	assert.Equal(t, "invite", got.OrgInviteToken)
	assert.Empty(t, got.EmailVerificationToken)
	assert.Equal(t, orgUserID, got.OrganizationUserID)
	require.NotNil(t, got.Kdf)
	assert.Equal(t, kdf.Argon2id, got.Kdf.Type)
	assert.Equal(t, uint32(3), got.Kdf.Iterations)
	require.NotNil(t, got.Kdf.MemoryMiB)
	assert.Equal(t, uint32(64), *got.Kdf.MemoryMiB)
	require.NotNil(t, got.Kdf.Parallelism)
	assert.Equal(t, uint32(4), *got.Kdf.Parallelism)
}

func TestFinishRegistration_KdfByName(t *testing.T) {
	registrar := &stubRegistrar{id: uuid.New()}
	h := handlers.NewRegistration(&stubSender{}, registrar)
	body := `{"email":"bob@example.com","kdf":"argon2id","kdfIterations":3,"kdfMemory":64,"kdfParallelism":4}`
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(body))

	require.NoError(t, h.FinishRegistration(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, registrar.got.Kdf)
	assert.Equal(t, kdf.Argon2id, registrar.got.Kdf.Type)
}

func TestFinishRegistration_UnknownKdf(t *testing.T) {
	registrar := &stubRegistrar{id: uuid.New()}
	h := handlers.NewRegistration(&stubSender{}, registrar)
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(`{"email":"bob@example.com","kdf":"scrypt"}`))

	require.NoError(t, h.FinishRegistration(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, registrar.got.Email)
}

func TestFinishRegistration_NoKdf(t *testing.T) {
	registrar := &stubRegistrar{id: uuid.New()}
	h := handlers.NewRegistration(&stubSender{}, registrar)
	c, _ := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(`{"email":"bob@example.com"}`))

	require.NoError(t, h.FinishRegistration(c))

	assert.Nil(t, registrar.got.Kdf)
}

func TestFinishRegistration_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"ambiguous", registration.ErrAmbiguousAuthorization, http.StatusBadRequest, registration.ErrAmbiguousAuthorization.Error()},
		{"invalid request", fmt.Errorf("%w: email: cannot be blank", registration.ErrInvalidRequest), http.StatusBadRequest, "cannot be blank"},
		{"invalid kdf", fmt.Errorf("%w: %w", registration.ErrInvalidKdfParameters, kdf.ErrIncompleteParameters), http.StatusBadRequest, "memory and parallelism"},
		{"unauthorized", registration.ErrUnauthorized, http.StatusUnauthorized, registration.ErrUnauthorized.Error()},
		{"email taken", registration.ErrEmailTaken, http.StatusConflict, registration.ErrEmailTaken.Error()},
		{"persistence", fmt.Errorf("%w: disk full", registration.ErrPersistenceFailure), http.StatusInternalServerError, "registration failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewRegistration(&stubSender{}, &stubRegistrar{err: tt.err})
			c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(`{}`))

			err := h.FinishRegistration(c)

			require.NoError(t, err)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestFinishRegistration_PersistenceDetailNotLeaked(t *testing.T) {
	h := handlers.NewRegistration(&stubSender{}, &stubRegistrar{err: fmt.Errorf("%w: disk full", registration.ErrPersistenceFailure)})
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(`{}`))

	require.NoError(t, h.FinishRegistration(c))

	assert.NotContains(t, rec.Body.String(), "disk full")
}

func TestFinishRegistration_InvalidJSON(t *testing.T) {
	registrar := &stubRegistrar{}
	h := handlers.NewRegistration(&stubSender{}, registrar)
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", strings.NewReader(`{"email":`))

	require.NoError(t, h.FinishRegistration(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, registrar.got.Email)
}

func TestRegistrationFlow(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	codec := testutil.NewTestCodec(t)
	mailer := &recordingMailer{}
	sender := registration.NewSender(codec, repo, mailer, nil, time.Hour)
	service := registration.NewService(registration.NewVerifier(codec), repo, plainHasher{}, nil)
	h := handlers.NewRegistration(sender, service)
	e := echo.New()

	c, rec := testutil.NewEchoContext(e, http.MethodPost, "/", strings.NewReader(`{"email":"alice@example.com","name":"Alice"}`))
	require.NoError(t, h.SendVerificationEmail(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
	sender.Wait()
	token, _ := mailer.token("alice@example.com")
	require.NotEmpty(t, token)

	finish := func() *httptest.ResponseRecorder {
		body := fmt.Sprintf(`{
			"email": "alice@example.com",
			"masterPasswordHash": "client-hash",
			"userSymmetricKey": "sym",
			"userAsymmetricKeys": {"publicKey": "pub", "encryptedPrivateKey": "priv"},
			"emailVerificationToken": %q
		}`, token)
		c, rec := testutil.NewEchoContext(e, http.MethodPost, "/", strings.NewReader(body))
		require.NoError(t, h.FinishRegistration(c))
		return rec
	}

	first := finish()
	assert.Equal(t, http.StatusOK, first.Code)

	user, err := repo.FindUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Alice", user.Name)
	assert.True(t, user.EmailVerified)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%q}`, user.ID), first.Body.String())

	second := finish()
	assert.Equal(t, http.StatusConflict, second.Code)
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"codeberg.org/oliverandrich/idp-registration/internal/registration"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// VerificationSender issues email verification tokens.
type VerificationSender interface {
	SendVerification(ctx context.Context, email, name string, receiveMarketingEmails bool) (string, bool, error)
}

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, req registration.Request) (uuid.UUID, error)
}

// RegistrationHandlers serves the account registration endpoints.
type RegistrationHandlers struct {
	sender    VerificationSender
	registrar Registrar
}

// NewRegistration creates the registration handlers.
func NewRegistration(sender VerificationSender, registrar Registrar) *RegistrationHandlers {
	return &RegistrationHandlers{sender: sender, registrar: registrar}
}

type sendVerificationRequest struct {
	Email                  string `json:"email"`
	Name                   string `json:"name"`
	ReceiveMarketingEmails bool   `json:"receiveMarketingEmails"`
}

func (r sendVerificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 256), is.Email),
		validation.Field(&r.Name, validation.Length(0, 50)),
	)
}

// SendVerificationEmail answers 204 whether or not the email already has an
// account, and whether or not delivery succeeded.
func (h *RegistrationHandlers) SendVerificationEmail(c echo.Context) error {
	var req sendVerificationRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	if _, _, err := h.sender.SendVerification(ctx, req.Email, req.Name, req.ReceiveMarketingEmails); err != nil {
		slog.ErrorContext(ctx, "send_verification_failed", "error", err)
	}

	return c.NoContent(http.StatusNoContent)
}

type keyPairRequest struct {
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
}

type finishRegistrationRequest struct {
	Kdf                    *kdf.Type      `json:"kdf"`
	KdfIterations          *uint32        `json:"kdfIterations"`
	KdfMemory              *uint32        `json:"kdfMemory"`
	KdfParallelism         *uint32        `json:"kdfParallelism"`
	OrganizationUserID     *uuid.UUID     `json:"organizationUserId"`
	Email                  string         `json:"email"`
	Name                   string         `json:"name"`
	MasterPasswordHash     string         `json:"masterPasswordHash"`
	MasterPasswordHint     string         `json:"masterPasswordHint"`
	UserSymmetricKey       string         `json:"userSymmetricKey"`
	EmailVerificationToken string         `json:"emailVerificationToken"`
	OrgInviteToken         string         `json:"orgInviteToken"`
	UserAsymmetricKeys     keyPairRequest `json:"userAsymmetricKeys"`
}

func (r finishRegistrationRequest) toRegistration() registration.Request {
	req := registration.Request{
		Email:              r.Email,
		Name:               r.Name,
		MasterPasswordHash: r.MasterPasswordHash,
		MasterPasswordHint: r.MasterPasswordHint,
		UserSymmetricKey:   r.UserSymmetricKey,
		UserAsymmetricKeys: registration.KeyPair{
			PublicKey:           r.UserAsymmetricKeys.PublicKey,
			EncryptedPrivateKey: r.UserAsymmetricKeys.EncryptedPrivateKey,
		},
		Authorization: registration.Authorization{
			EmailVerificationToken: r.EmailVerificationToken,
			OrgInviteToken:         r.OrgInviteToken,
		},
	}
	if r.OrganizationUserID != nil {
		req.OrganizationUserID = *r.OrganizationUserID
	}
	if r.Kdf != nil {
		settings := kdf.Settings{
			Type:        *r.Kdf,
			MemoryMiB:   r.KdfMemory,
			Parallelism: r.KdfParallelism,
		}
		if r.KdfIterations != nil {
			settings.Iterations = *r.KdfIterations
		}
		req.Kdf = &settings
	}
	return req
}

// FinishRegistration creates the account authorized by an email verification
// or org invite token.
func (h *RegistrationHandlers) FinishRegistration(c echo.Context) error {
	var body finishRegistrationRequest
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}

	id, err := h.registrar.Register(c.Request().Context(), body.toRegistration())
	if err != nil {
		return registrationError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"id": id.String()})
}

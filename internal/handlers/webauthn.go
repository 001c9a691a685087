// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/idp-registration/internal/services/webauthn"
	"github.com/labstack/echo/v4"
)

// WebAuthnHandlers serves passkey login.
type WebAuthnHandlers struct {
	webauthn *webauthn.Service
}

// NewWebAuthn creates the passkey login handlers.
func NewWebAuthn(svc *webauthn.Service) *WebAuthnHandlers {
	return &WebAuthnHandlers{webauthn: svc}
}

// AssertionOptions starts a discoverable login and returns the options
// together with the token that carries its session.
func (h *WebAuthnHandlers) AssertionOptions(c echo.Context) error {
	options, token, err := h.webauthn.BeginAssertion()
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "assertion_options_failed", "error", err)
		return jsonError(c, http.StatusInternalServerError, "failed to begin login")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"publicKey": options.Response,
		"token":     token,
	})
}

// Assertion completes a discoverable login.
func (h *WebAuthnHandlers) Assertion(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return jsonError(c, http.StatusBadRequest, "token is required")
	}

	ctx := c.Request().Context()
	user, err := h.webauthn.FinishAssertion(ctx, token, c.Request())
	if err != nil {
		slog.WarnContext(ctx, "webauthn_assertion_failed", "error", err)
		return jsonError(c, http.StatusUnauthorized, "login failed")
	}

	return c.JSON(http.StatusOK, map[string]string{"id": user.ID.String()})
}

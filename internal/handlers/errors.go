// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/idp-registration/internal/registration"
	"github.com/labstack/echo/v4"
)

// errorResponse is the JSON body of every error answer.
type errorResponse struct {
	Error string `json:"error"`
}

func jsonError(c echo.Context, code int, message string) error {
	return c.JSON(code, errorResponse{Error: message})
}

// registrationError maps a registration failure to a response. Token
// failures are never described beyond "not authorized".
func registrationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, registration.ErrAmbiguousAuthorization):
		return jsonError(c, http.StatusBadRequest, registration.ErrAmbiguousAuthorization.Error())
	case errors.Is(err, registration.ErrInvalidRequest),
		errors.Is(err, registration.ErrInvalidKdfParameters):
		return jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, registration.ErrUnauthorized):
		return jsonError(c, http.StatusUnauthorized, registration.ErrUnauthorized.Error())
	case errors.Is(err, registration.ErrEmailTaken):
		return jsonError(c, http.StatusConflict, registration.ErrEmailTaken.Error())
	default:
		slog.ErrorContext(c.Request().Context(), "registration_failed", "error", err)
		return jsonError(c, http.StatusInternalServerError, "registration failed")
	}
}

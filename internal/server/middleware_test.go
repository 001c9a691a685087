// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/oliverandrich/idp-registration/internal/config"
	"codeberg.org/oliverandrich/idp-registration/internal/i18n"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestI18nMiddleware(t *testing.T) {
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(i18nMiddleware())

	var subject string
	e.GET("/", func(c echo.Context) error {
		subject = i18n.T(c.Request().Context(), "email_verification_subject")
		return c.NoContent(http.StatusOK)
	})

	tests := []struct {
		header   string
		expected string
	}{
		{"en-US", "Verify your email address"},
		{"de-DE", "Bestätige deine E-Mail-Adresse"},
		{"fr-FR", "Verify your email address"},
		{"", "Verify your email address"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Language", tt.header)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, subject)
		})
	}
}

func TestEventsAuth(t *testing.T) {
	e := echo.New()
	e.GET("/events", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, eventsAuth("operator-secret"))

	tests := []struct {
		name   string
		header string
		query  string
		code   int
	}{
		{"bearer header", "Bearer operator-secret", "", http.StatusOK},
		{"query token", "", "?access_token=operator-secret", http.StatusOK},
		{"wrong token", "Bearer nope", "", http.StatusUnauthorized},
		{"missing token", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic operator-secret", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/events"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	e := echo.New()
	setupMiddleware(e, &config.Config{Server: config.ServerConfig{MaxBodySize: 1}})
	e.POST("/", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	small := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, small)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	large := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 2048)))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, large)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSecureAndRequestIDHeaders(t *testing.T) {
	e := echo.New()
	setupMiddleware(e, &config.Config{Server: config.ServerConfig{MaxBodySize: 64}})
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
}

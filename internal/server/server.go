// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/config"
	"codeberg.org/oliverandrich/idp-registration/internal/database"
	"codeberg.org/oliverandrich/idp-registration/internal/events"
	"codeberg.org/oliverandrich/idp-registration/internal/handlers"
	"codeberg.org/oliverandrich/idp-registration/internal/i18n"
	"codeberg.org/oliverandrich/idp-registration/internal/registration"
	"codeberg.org/oliverandrich/idp-registration/internal/repository"
	"codeberg.org/oliverandrich/idp-registration/internal/services/email"
	"codeberg.org/oliverandrich/idp-registration/internal/services/password"
	"codeberg.org/oliverandrich/idp-registration/internal/services/webauthn"
	"codeberg.org/oliverandrich/idp-registration/internal/sse"
	"codeberg.org/oliverandrich/idp-registration/internal/tokenable"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// App is a fully wired identity provider.
type App struct {
	Echo   *echo.Echo
	Hub    *sse.Hub
	sender *registration.Sender
	db     *sqlx.DB
}

// Close waits for pending verification emails and releases the database.
func (a *App) Close() error {
	a.sender.Wait()
	a.Hub.Close()
	return a.db.Close()
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	app, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	return startWithGracefulShutdown(ctx, app, cfg)
}

// New opens the database and wires every service and route.
func New(cfg *config.Config) (*App, error) {
	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app, err := wire(cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func wire(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	// Token key material
	keys, err := tokenable.NewKeys(cfg.Tokens.HashKey, cfg.Tokens.BlockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load token keys: %w", err)
	}
	codec := tokenable.NewCodec(keys)

	repo := repository.New(db)

	ttl := cmp.Or(cfg.Registration.EmailVerificationTTL, registration.DefaultEmailVerificationTTL)
	mailer, err := email.NewMailer(&cfg.SMTP, cfg.Server.BaseURL, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to set up mailer: %w", err)
	}

	hub := sse.NewHub()
	sink := events.Multi{events.NewLogSink(nil), events.NewHubSink(hub)}

	sender := registration.NewSender(codec, repo, mailer, sink, ttl)
	service := registration.NewService(registration.NewVerifier(codec), repo, password.NewHasher(), sink)

	wa, err := webauthn.NewService(&cfg.WebAuthn, codec, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to set up webauthn: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, cfg, routes{
		ops:          handlers.New(repo),
		registration: handlers.NewRegistration(sender, service),
		webauthn:     handlers.NewWebAuthn(wa),
		events:       handlers.NewEvents(hub),
	})

	return &App{Echo: e, Hub: hub, sender: sender, db: db}, nil
}

type routes struct {
	ops          *handlers.Handlers
	registration *handlers.RegistrationHandlers
	webauthn     *handlers.WebAuthnHandlers
	events       *handlers.EventsHandler
}

func setupRoutes(e *echo.Echo, cfg *config.Config, r routes) {
	e.GET("/health", r.ops.Health)

	accounts := e.Group("/accounts")
	accounts.POST("/register/send-verification-email", r.registration.SendVerificationEmail)
	accounts.POST("/register/finish", r.registration.FinishRegistration)
	accounts.POST("/webauthn/assertion-options", r.webauthn.AssertionOptions)
	accounts.POST("/webauthn/assertion", r.webauthn.Assertion)

	if cfg.Events.Token != "" {
		e.GET("/events", r.events.Events, eventsAuth(cfg.Events.Token))
	} else {
		slog.Info("event stream disabled, no events token configured")
	}
}

func startWithGracefulShutdown(ctx context.Context, app *App, cfg *config.Config) error {
	e := app.Echo

	// Setup TLS
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	// Channel for server errors
	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	switch tlsResult.Mode {
	case TLSModeOff:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		// HTTPS on :443
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		// HTTP redirect and HTTP-01 challenges on :80
		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP→HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	// Wait for interrupt signal or error
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Event streams never finish on their own.
	app.Hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}

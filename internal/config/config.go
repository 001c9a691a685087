// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	TLS          TLSConfig
	Tokens       TokensConfig
	Registration RegistrationConfig
	SMTP         SMTPConfig
	WebAuthn     WebAuthnConfig
	Events       EventsConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in KB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // ACME certificate cache
	Email    string // ACME account email
	CertFile string // manual mode
	KeyFile  string // manual mode
}

// TokensConfig holds the key material for tokenables.
// Both keys are 32-byte hex strings; empty keys are generated per process.
type TokensConfig struct {
	HashKey  string
	BlockKey string
}

type RegistrationConfig struct {
	EmailVerificationTTL time.Duration
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string // empty disables SMTP, emails are logged
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// EventsConfig guards the lifecycle event stream. An empty token disables it.
type EventsConfig struct {
	Token string
}

type WebAuthnConfig struct {
	RPID          string // Relying Party ID (domain), e.g. "localhost"
	RPOrigin      string // Relying Party Origin (full URL), e.g. "http://localhost:8080"
	RPDisplayName string // Display name shown to users
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Tokens: TokensConfig{
			HashKey:  cmd.String("token-hash-key"),
			BlockKey: cmd.String("token-block-key"),
		},
		Registration: RegistrationConfig{
			EmailVerificationTTL: cmd.Duration("email-verification-ttl"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		WebAuthn: WebAuthnConfig{
			RPID:          cmd.String("webauthn-rp-id"),
			RPOrigin:      cmd.String("webauthn-rp-origin"),
			RPDisplayName: cmd.String("webauthn-rp-display-name"),
		},
		Events: EventsConfig{
			Token: cmd.String("events-token"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	applyWebAuthnDefaults(cfg)

	return cfg
}

// applyWebAuthnDefaults sets WebAuthn defaults based on the resolved BaseURL.
func applyWebAuthnDefaults(cfg *Config) {
	if cfg.WebAuthn.RPID == "" {
		cfg.WebAuthn.RPID = cfg.Server.Host
	}
	if cfg.WebAuthn.RPOrigin == "" {
		cfg.WebAuthn.RPOrigin = cfg.Server.BaseURL
	}
	if cfg.WebAuthn.RPDisplayName == "" {
		cfg.WebAuthn.RPDisplayName = "Identity Provider"
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if UsesTLS(mode, host) {
		scheme = "https"
	}

	// ACME always serves on 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// UsesTLS reports whether the server terminates TLS itself for mode and host.
func UsesTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL used in verification links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   64,
			Usage:   "Maximum request body size in KB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_MODE"), toml.TOML("tls.mode", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for the ACME certificate cache",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_DIR"), toml.TOML("tls.cert_dir", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_EMAIL"), toml.TOML("tls.email", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_FILE"), toml.TOML("tls.cert_file", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_KEY_FILE"), toml.TOML("tls.key_file", configFile)),
		},
		// Token flags
		&cli.StringFlag{
			Name:    "token-hash-key",
			Usage:   "Token HMAC key (32-byte hex, generated per process if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_HASH_KEY"), toml.TOML("tokens.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "token-block-key",
			Usage:   "Token encryption key (32-byte hex, generated per process if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_BLOCK_KEY"), toml.TOML("tokens.block_key", configFile)),
		},
		&cli.DurationFlag{
			Name:    "email-verification-ttl",
			Value:   2 * time.Hour,
			Usage:   "Lifetime of email verification tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_VERIFICATION_TTL"), toml.TOML("registration.email_verification_ttl", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (emails are logged when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP (implicit TLS on port 465, STARTTLS otherwise)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// WebAuthn flags
		&cli.StringFlag{
			Name:    "webauthn-rp-id",
			Usage:   "WebAuthn Relying Party ID (domain, defaults to host)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("WEBAUTHN_RP_ID"), toml.TOML("webauthn.rp_id", configFile)),
		},
		&cli.StringFlag{
			Name:    "webauthn-rp-origin",
			Usage:   "WebAuthn Relying Party Origin (full URL, defaults to base_url)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("WEBAUTHN_RP_ORIGIN"), toml.TOML("webauthn.rp_origin", configFile)),
		},
		&cli.StringFlag{
			Name:    "webauthn-rp-display-name",
			Value:   "Identity Provider",
			Usage:   "WebAuthn Relying Party display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("WEBAUTHN_RP_DISPLAY_NAME"), toml.TOML("webauthn.rp_display_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "events-token",
			Usage:   "Bearer token for the /events stream (stream disabled when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EVENTS_TOKEN"), toml.TOML("events.token", configFile)),
		},
	}
}

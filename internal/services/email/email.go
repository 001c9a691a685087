// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/config"
	"codeberg.org/oliverandrich/idp-registration/internal/i18n"
	"github.com/wneessen/go-mail"
)

// Mailer delivers verification tokens.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, token string) error
}

// NewMailer returns an SMTP service, or a LogMailer when no SMTP host is configured.
func NewMailer(cfg *config.SMTPConfig, baseURL string, ttl time.Duration) (Mailer, error) {
	if cfg.Host == "" {
		slog.Warn("smtp_not_configured", "fallback", "log")
		return NewLogMailer(baseURL), nil
	}
	return NewService(cfg, baseURL, ttl)
}

// Service sends verification emails over SMTP.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
	ttl     time.Duration
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string, ttl time.Duration) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		ttl:     ttl,
	}, nil
}

// VerifyURL builds the link that finishes registration for email.
func VerifyURL(baseURL, email, token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return strings.TrimSuffix(baseURL, "/") + "/register/finish?" + q.Encode()
}

// SendVerificationEmail sends a localized verification email with the given
// token. The greeting uses name, or the address when name is empty.
func (s *Service) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	msg, err := s.verificationMessage(ctx, to, name, token)
	if err != nil {
		return err
	}
	return s.send(ctx, to, msg)
}

func (s *Service) verificationText(ctx context.Context, to, name, token string) (string, string) {
	if strings.TrimSpace(name) == "" {
		name = to
	}
	subject := i18n.T(ctx, "email_verification_subject")
	body := i18n.TData(ctx, "email_verification_body", map[string]any{
		"Name":      name,
		"VerifyURL": VerifyURL(s.baseURL, to, token),
		"Hours":     int(s.ttl.Round(time.Hour).Hours()),
	})
	return subject, body
}

func (s *Service) verificationMessage(ctx context.Context, to, name, token string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	subject, body := s.verificationText(ctx, to, name, token)
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, nil
}

// send delivers msg via SMTP using go-mail.
func (s *Service) send(ctx context.Context, to string, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Use implicit TLS (SSL) for port 465, STARTTLS for others
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	slog.InfoContext(ctx, "verification_email_sent", "to", to)
	return nil
}

// LogMailer logs verification emails instead of sending them. The link is
// logged at debug level only.
type LogMailer struct {
	baseURL string
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(baseURL string) *LogMailer {
	return &LogMailer{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// SendVerificationEmail implements Mailer.
func (m *LogMailer) SendVerificationEmail(ctx context.Context, to, _, token string) error {
	slog.InfoContext(ctx, "verification_email_logged", "to", to)
	slog.DebugContext(ctx, "verification_email_link", "to", to, "url", VerifyURL(m.baseURL, to, token))
	return nil
}

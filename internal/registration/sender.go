// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package registration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/events"
	"codeberg.org/oliverandrich/idp-registration/internal/tokenable"
)

const (
	// DefaultEmailVerificationTTL is how long an email verification token stays valid.
	DefaultEmailVerificationTTL = 2 * time.Hour

	// DeliveryTimeout bounds a single background mail delivery.
	DeliveryTimeout = 30 * time.Second
)

// Sender issues email verification tokens. Mail delivery runs in the
// background so the response time does not depend on whether an account
// already exists.
type Sender struct {
	codec   *tokenable.Codec
	users   UserLookup
	mailer  Mailer
	events  events.Sink
	ttl     time.Duration
	pending sync.WaitGroup
}

// NewSender creates a Sender. A non-positive ttl uses DefaultEmailVerificationTTL
// and a nil sink discards events.
func NewSender(codec *tokenable.Codec, users UserLookup, mailer Mailer, sink events.Sink, ttl time.Duration) *Sender {
	if ttl <= 0 {
		ttl = DefaultEmailVerificationTTL
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Sender{
		codec:  codec,
		users:  users,
		mailer: mailer,
		events: sink,
		ttl:    ttl,
	}
}

// TTL returns the token lifetime.
func (s *Sender) TTL() time.Duration {
	return s.ttl
}

// SendVerification mails a verification token to email unless it already owns
// an account. ok is false for an existing account; callers must answer both
// cases the same way. Delivery failures are logged, not returned.
func (s *Sender) SendVerification(ctx context.Context, email, name string, receiveMarketingEmails bool) (token string, ok bool, err error) {
	email = NormalizeEmail(email)

	// Minted for existing accounts too so both paths do the same work.
	token, err = tokenable.Seal(s.codec, tokenable.EmailVerification{
		Email:                  email,
		Name:                   name,
		ReceiveMarketingEmails: receiveMarketingEmails,
	}, s.ttl)
	if err != nil {
		return "", false, fmt.Errorf("failed to create verification token: %w", err)
	}

	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return "", false, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		slog.InfoContext(ctx, "verification_email_skipped", "email", email, "reason", "account_exists")
		return "", false, nil
	}

	s.pending.Add(1)
	go s.deliver(context.WithoutCancel(ctx), email, name, token)

	return token, true, nil
}

// Wait blocks until all background deliveries have finished.
func (s *Sender) Wait() {
	s.pending.Wait()
}

func (s *Sender) deliver(ctx context.Context, email, name, token string) {
	defer s.pending.Done()

	ctx, cancel := context.WithTimeout(ctx, DeliveryTimeout)
	defer cancel()

	if err := s.mailer.SendVerificationEmail(ctx, email, name, token); err != nil {
		slog.ErrorContext(ctx, "verification_email_failed", "email", email, "error", err)
		return
	}

	s.events.Emit(ctx, events.New(events.VerificationEmailSent, map[string]string{
		"email": email,
	}))
}

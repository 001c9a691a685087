// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package registration_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/events"
	"codeberg.org/oliverandrich/idp-registration/internal/kdf"
	"codeberg.org/oliverandrich/idp-registration/internal/models"
	"codeberg.org/oliverandrich/idp-registration/internal/repository"
	"github.com/google/uuid"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

// memoryStore is a UserStore enforcing unique emails.
type memoryStore struct {
	users     map[string]*models.User
	findErr   error
	createErr error
	finds     int
	creates   int
	mu        sync.Mutex
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]*models.User)}
}

func (s *memoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.users[strings.ToLower(email)], nil
}

func (s *memoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return s.createErr
	}
	key := strings.ToLower(user.Email)
	if _, ok := s.users[key]; ok {
		return errors.Join(repository.ErrDuplicate, errors.New("UNIQUE constraint failed: users.email"))
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.users[key] = user
	return nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type fakeHasher struct {
	err      error
	settings []kdf.Settings
	mu       sync.Mutex
}

func (h *fakeHasher) Hash(_ context.Context, secret string, settings kdf.Settings) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.settings = append(h.settings, settings)
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + secret, nil
}

func (h *fakeHasher) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.settings)
}

type sentMail struct {
	to    string
	name  string
	token string
}

type fakeMailer struct {
	err  error
	sent []sentMail
	mu   sync.Mutex
}

func (m *fakeMailer) SendVerificationEmail(_ context.Context, to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, name: name, token: token})
	return nil
}

func (m *fakeMailer) deliveries() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// blockingMailer holds every delivery until release is closed.
type blockingMailer struct {
	release chan struct{}
	fakeMailer
}

func newBlockingMailer() *blockingMailer {
	return &blockingMailer{release: make(chan struct{})}
}

func (m *blockingMailer) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	select {
	case <-m.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.fakeMailer.SendVerificationEmail(ctx, to, name, token)
}

type recordingSink struct {
	events []events.Event
	mu     sync.Mutex
}

func (r *recordingSink) Emit(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *recordingSink) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

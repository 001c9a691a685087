// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"errors"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, email, name, master_password, master_password_hint,
	kdf_type, kdf_iterations, kdf_memory, kdf_parallelism,
	key, public_key, private_key, email_verified, receive_marketing_emails, created_at`

// CreateUser inserts a new user. A missing ID or creation time is filled in.
// Returns ErrDuplicate if the email is already registered.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (
		:id, :email, :name, :master_password, :master_password_hint,
		:kdf_type, :kdf_iterations, :kdf_memory, :kdf_parallelism,
		:key, :public_key, :private_key, :email_verified, :receive_marketing_emails, :created_at)`,
		user)
	return wrapError(err)
}

// FindUserByEmail returns the user owning email, or nil if there is none.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		if err = wrapError(err); errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID with its credentials.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}

	creds, err := r.GetCredentialsByUserID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Credentials = creds

	return &user, nil
}

// GetUserByWebAuthnID resolves a WebAuthn user handle to a user.
func (r *Repository) GetUserByWebAuthnID(ctx context.Context, handle []byte) (*models.User, error) {
	id, err := uuid.FromBytes(handle)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.GetUserByID(ctx, id)
}

// CountUsers returns the total number of users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`)
	return count, err
}

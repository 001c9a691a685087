// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/idp-registration/internal/models"
	"github.com/google/uuid"
)

// CreateCredential creates a new credential.
func (r *Repository) CreateCredential(ctx context.Context, cred *models.Credential) error {
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.NamedExecContext(ctx, `INSERT INTO credentials (
		user_id, credential_id, public_key, aaguid, sign_count, transports,
		name, backup_eligible, backup_state, attestation_type, created_at
	) VALUES (
		:user_id, :credential_id, :public_key, :aaguid, :sign_count, :transports,
		:name, :backup_eligible, :backup_state, :attestation_type, :created_at
	)`, cred)
	if err != nil {
		return wrapError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	cred.ID = id
	return nil
}

// GetCredentialsByUserID retrieves all credentials for a user.
func (r *Repository) GetCredentialsByUserID(ctx context.Context, userID uuid.UUID) ([]models.Credential, error) {
	var creds []models.Credential
	err := r.db.SelectContext(ctx, &creds, `SELECT * FROM credentials WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return creds, nil
}

// UpdateCredentialSignCount updates the sign count for a credential.
func (r *Repository) UpdateCredentialSignCount(ctx context.Context, credentialID []byte, signCount uint32) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET sign_count = ? WHERE credential_id = ?`,
		signCount, credentialID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

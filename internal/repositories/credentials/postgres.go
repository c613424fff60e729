package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/dbx"
	"github.com/agentllm/agentllm/internal/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns common.ErrorNotFound when no row matches.
func (r *PostgresRepository) Get(ctx context.Context, provider, userID string) (*models.CredentialRecord, error) {
	query := `
		SELECT ciphertext, nonce, updated_at
		FROM credentials
		WHERE provider = $1 AND user_id = $2
	`
	rec := &models.CredentialRecord{Provider: provider, UserID: userID}
	if err := r.db.QueryRowContext(ctx, query, provider, userID).Scan(&rec.Ciphertext, &rec.Nonce, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// Upsert writes the record, replacing ciphertext, nonce and updated_at on conflict.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.CredentialRecord) error {
	query := `
		INSERT INTO credentials (provider, user_id, ciphertext, nonce, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, user_id) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			nonce = EXCLUDED.nonce,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, rec.Provider, rec.UserID, rec.Ciphertext, rec.Nonce, rec.UpdatedAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// Delete removes the credential for (provider, userID).
func (r *PostgresRepository) Delete(ctx context.Context, provider, userID string) error {
	query := `
		DELETE FROM credentials
		WHERE provider = $1 AND user_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, provider, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.CredentialRecord, error) {
	query := `
		SELECT provider, ciphertext, nonce, updated_at
		FROM credentials
		WHERE user_id = $1
		ORDER BY provider
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.CredentialRecord
	for rows.Next() {
		rec := models.CredentialRecord{UserID: userID}
		if err := rows.Scan(&rec.Provider, &rec.Ciphertext, &rec.Nonce, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

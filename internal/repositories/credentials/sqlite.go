package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/dbx"
	"github.com/agentllm/agentllm/internal/models"
)

// SQLiteRepository stores updated_at as unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, provider, userID string) (*models.CredentialRecord, error) {
	rec := &models.CredentialRecord{Provider: provider, UserID: userID}
	var updated int64
	err := r.db.QueryRowContext(ctx, `
		SELECT ciphertext, nonce, updated_at
		FROM credentials
		WHERE provider = ? AND user_id = ?
	`, provider, userID).Scan(&rec.Ciphertext, &rec.Nonce, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential[%s/%s]: %w", provider, userID, err)
	}
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return rec, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.CredentialRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (provider, user_id, ciphertext, nonce, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider, user_id) DO UPDATE SET
			ciphertext = excluded.ciphertext,
			nonce = excluded.nonce,
			updated_at = excluded.updated_at
	`, rec.Provider, rec.UserID, rec.Ciphertext, rec.Nonce, rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert credential[%s/%s]: %w", rec.Provider, rec.UserID, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, provider, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE provider = ? AND user_id = ?`, provider, userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential[%s/%s]: %w", provider, userID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]models.CredentialRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider, ciphertext, nonce, updated_at
		FROM credentials
		WHERE user_id = ?
		ORDER BY provider
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.CredentialRecord
	for rows.Next() {
		rec := models.CredentialRecord{UserID: userID}
		var updated int64
		if err := rows.Scan(&rec.Provider, &rec.Ciphertext, &rec.Nonce, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan credential row: %w", err)
		}
		rec.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credential rows: %w", err)
	}
	return out, nil
}

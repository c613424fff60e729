// Package credentials declares the repository contract for encrypted
// provider credentials and its SQLite and PostgreSQL implementations.
package credentials

import (
	"context"

	"github.com/agentllm/agentllm/internal/models"
)

// Repository persists one encrypted credential per (provider, user id).
type Repository interface {
	// Get returns the record for (provider, userID) or common.ErrorNotFound.
	Get(ctx context.Context, provider, userID string) (*models.CredentialRecord, error)

	// Upsert inserts the record or fully replaces the existing one.
	Upsert(ctx context.Context, rec *models.CredentialRecord) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, provider, userID string) error

	// ListByUser returns every record stored for userID ordered by provider.
	ListByUser(ctx context.Context, userID string) ([]models.CredentialRecord, error)
}

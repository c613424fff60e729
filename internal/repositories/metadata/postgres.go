package metadata

import (
	"context"
	"fmt"

	"github.com/agentllm/agentllm/internal/dbx"
)

const (
	postgresSelectValue = `SELECT value FROM metadata WHERE key = $1`
	postgresInsertValue = `INSERT INTO metadata (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`
)

// PostgresRepository implements Repository over pgx's database/sql driver.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, key string) ([]byte, error) {
	return getValue(ctx, r.db, postgresSelectValue, key)
}

func (r *PostgresRepository) SetIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error) {
	if _, err := r.db.ExecContext(ctx, postgresInsertValue, key, value); err != nil {
		return nil, fmt.Errorf("insert metadata %q: %w", key, err)
	}
	return r.Get(ctx, key)
}

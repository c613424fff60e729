package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agentllm/agentllm/internal/dbx"
)

const (
	sqliteSelectValue = `SELECT value FROM metadata WHERE key = ?`
	sqliteInsertValue = `INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`
)

// SQLiteRepository implements Repository for the modernc SQLite driver.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	return getValue(ctx, r.db, sqliteSelectValue, key)
}

func (r *SQLiteRepository) SetIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error) {
	if _, err := r.db.ExecContext(ctx, sqliteInsertValue, key, value); err != nil {
		return nil, fmt.Errorf("insert metadata %q: %w", key, err)
	}
	return r.Get(ctx, key)
}

func getValue(ctx context.Context, db dbx.DBTX, query, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, query, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select metadata %q: %w", key, err)
	}
	return value, nil
}

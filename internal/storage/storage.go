// Package storage opens the credential database, runs migrations and hands
// out repositories bound to the connection.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/agentllm/agentllm/internal/dbx"
	"github.com/agentllm/agentllm/internal/repositories/credentials"
	"github.com/agentllm/agentllm/internal/repositories/metadata"
	"github.com/agentllm/agentllm/internal/storage/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

// RepositoryManager exposes the repositories sharing one connection pool.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Conn() *sql.DB
	Dialect() string
	Credentials() credentials.Repository
	Metadata() metadata.Repository
	PurgeUser(ctx context.Context, userID string) (int, error)
	Close() error
}

type manager struct {
	db          *sql.DB
	dialect     string
	credentials credentials.Repository
	metadata    metadata.Repository
}

func (m *manager) Conn() *sql.DB                       { return m.db }
func (m *manager) Dialect() string                     { return m.dialect }
func (m *manager) Credentials() credentials.Repository { return m.credentials }
func (m *manager) Metadata() metadata.Repository       { return m.metadata }
func (m *manager) Close() error                        { return m.db.Close() }

func (m *manager) credentialsFor(tx dbx.DBTX) credentials.Repository {
	if m.dialect == DialectPostgres {
		return credentials.NewPostgresRepository(tx)
	}
	return credentials.NewSQLiteRepository(tx)
}

// PurgeUser removes every credential stored for userID in one transaction
// and returns how many were deleted.
func (m *manager) PurgeUser(ctx context.Context, userID string) (int, error) {
	n := 0
	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.credentialsFor(tx)
		recs, err := repo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, r := range recs {
			if err := repo.Delete(ctx, r.Provider, userID); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge credentials for %s: %w", userID, err)
	}
	return n, nil
}

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

func (m *manager) RunMigrations(ctx context.Context) error {
	var fsys embed.FS
	var dir string
	switch m.dialect {
	case DialectPostgres:
		fsys, dir = migrations.Postgres, "postgres"
	default:
		fsys, dir = migrations.SQLite, "sqlite"
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(m.dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, m.db, dir)
}

// IsPostgresDSN reports whether dsn addresses a PostgreSQL server.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn and migrates the schema. PostgreSQL URLs use pgx;
// anything else is treated as a SQLite path or "file:" URI.
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	var m *manager
	if IsPostgresDSN(dsn) {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		m = &manager{
			db:          db,
			dialect:     DialectPostgres,
			credentials: credentials.NewPostgresRepository(db),
			metadata:    metadata.NewPostgresRepository(db),
		}
	} else {
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		// single writer; also keeps ":memory:" databases on one connection
		db.SetMaxOpenConns(1)
		m = &manager{
			db:          db,
			dialect:     DialectSQLite,
			credentials: credentials.NewSQLiteRepository(db),
			metadata:    metadata.NewSQLiteRepository(db),
		}
	}

	if err := m.db.PingContext(ctx); err != nil {
		_ = m.db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := m.RunMigrations(ctx); err != nil {
		_ = m.db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return m, nil
}

func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if dsn == ":memory:" || strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_pragma=busy_timeout(5000)"
}

package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentllm/agentllm/internal/common"
	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/filex"
	"github.com/agentllm/agentllm/internal/storage"
)

// encryptionKey resolves the credential encryption secret: the
// AGENTLLM_ENCRYPTION_KEY variable first, then the key file next to the
// database. With create set, a missing key file (and its directory) is
// generated; otherwise nothing is written.
func (a *App) encryptionKey(dbPath string, create bool) (string, error) {
	if k := a.getenv("AGENTLLM_ENCRYPTION_KEY"); k != "" {
		return k, nil
	}
	if storage.IsPostgresDSN(dbPath) {
		return "", fmt.Errorf("%w: set AGENTLLM_ENCRYPTION_KEY", common.ErrMissingEncryptionKey)
	}

	dirOf := filex.ParentDir
	if create {
		dirOf = filex.EnsureParentDir
	}
	dir, err := dirOf(dbPath)
	if err != nil {
		return "", err
	}
	keyFile := filepath.Join(dir, KeyFileName)

	key, err := filex.ReadSecretFile(keyFile)
	if err != nil {
		return "", err
	}
	if key != "" {
		return key, nil
	}
	if !create {
		return "", fmt.Errorf("%w: set AGENTLLM_ENCRYPTION_KEY or create %s", common.ErrMissingEncryptionKey, keyFile)
	}

	key, err = common.RandomHex(32)
	if err != nil {
		return "", err
	}
	if err := filex.WriteSecretFile(keyFile, key); err != nil {
		return "", err
	}
	a.logger.Info(context.Background(), "generated encryption key", "path", keyFile)
	return key, nil
}

// openStore opens the database at dbPath and returns the encrypted store
// and a close function.
func (a *App) openStore(ctx context.Context, dbPath string, create bool) (*credentials.EncryptedStore, func(), error) {
	key, err := a.encryptionKey(dbPath, create)
	if err != nil {
		return nil, nil, err
	}

	sm, err := openDatabase(ctx, dbPath)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := sm.Close(); err != nil {
			a.logger.Warn(ctx, "close database", "error", err)
		}
	}

	store, err := credentials.NewEncryptedStore(ctx, sm.Credentials(), sm.Metadata(), key, credentials.WithLogger(a.logger))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

func openDatabase(ctx context.Context, dbPath string) (storage.RepositoryManager, error) {
	if !storage.IsPostgresDSN(dbPath) && dbPath != ":memory:" {
		if _, err := filex.EnsureParentDir(dbPath); err != nil {
			return nil, err
		}
	}
	sm, err := storage.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	return sm, nil
}

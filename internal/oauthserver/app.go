// Package oauthserver wires the OAuth callback server: configuration,
// credential storage, providers and the HTTP front end.
package oauthserver

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentllm/agentllm/internal/credentials"
	"github.com/agentllm/agentllm/internal/filex"
	"github.com/agentllm/agentllm/internal/logging"
	"github.com/agentllm/agentllm/internal/oauth/providers"
	"github.com/agentllm/agentllm/internal/oauth/state"
	"github.com/agentllm/agentllm/internal/oauthserver/config"
	"github.com/agentllm/agentllm/internal/oauthserver/web"
	"github.com/agentllm/agentllm/internal/storage"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	storage storage.RepositoryManager
	server  *web.Server
}

// NewApp fails when a required secret is missing or the store cannot be
// opened. Logs go to w as JSON.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(w, level, true)

	validator, err := state.NewValidator(c.StateSecret, state.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	pcfg, err := providers.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	sm, err := openStorage(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	store, err := credentials.NewEncryptedStore(ctx, sm.Credentials(), sm.Metadata(), c.EncryptionKey, credentials.WithLogger(logger))
	if err != nil {
		_ = sm.Close()
		return nil, err
	}

	reg := providers.NewDefaultRegistry(pcfg, validator, store, providers.WithLogger(logger))
	for _, name := range reg.Names() {
		if !reg.Provider(name).IsConfigured() {
			logger.Warn(ctx, "provider not configured", "provider", name)
		}
	}

	srv := web.NewServer(c.ListenAddr, c.PublicURL, c.ShutdownTimeout, reg, validator, logger)
	return &App{config: c, logger: logger, storage: sm, server: srv}, nil
}

func openStorage(ctx context.Context, dsn string) (storage.RepositoryManager, error) {
	if !storage.IsPostgresDSN(dsn) && dsn != ":memory:" {
		if _, err := filex.EnsureParentDir(dsn); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	sm, err := storage.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return sm, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a termination signal arrives or ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	defer func() {
		if err := app.storage.Close(); err != nil {
			app.logger.Error(ctx, "close storage", "error", err)
		}
	}()

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	app.logger.Info(ctx, "Stopped")
	return nil
}

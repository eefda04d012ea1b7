// Package app assembles the sync engine from a Config: store, fetcher,
// attachment storage and the runner. Both the CLI and the HTTP trigger
// build their runs through it.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/zdbackup/internal/attachments"
	"github.com/dmitrijs2005/zdbackup/internal/config"
	"github.com/dmitrijs2005/zdbackup/internal/dbx"
	"github.com/dmitrijs2005/zdbackup/internal/fetcher"
	"github.com/dmitrijs2005/zdbackup/internal/logging"
	"github.com/dmitrijs2005/zdbackup/internal/repositories/repomanager"
	"github.com/dmitrijs2005/zdbackup/internal/services"
	"github.com/dmitrijs2005/zdbackup/internal/storage"
	"github.com/dmitrijs2005/zdbackup/internal/syncer"
)

// App owns the database handle of an assembled engine.
type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	archive *services.ArchiveService
	client  *fetcher.Client
}

// Open connects to the store, applies pending migrations and builds the
// remote client. Close must be called when done.
func Open(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	db, rm, err := openStore(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	client := fetcher.New(fetcher.Options{
		Email:      c.Email,
		APIToken:   c.APIToken,
		OAuthToken: c.OAuthToken,
		Timeout:    c.Timeout,
		Logger:     logger.With("module", "fetcher"),
	})

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		archive: services.NewArchiveService(db, rm),
		client:  client,
	}, nil
}

// Migrate applies the schema without syncing.
func Migrate(ctx context.Context, c *config.Config, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	db, _, err := openStore(ctx, c, logger)
	if err != nil {
		return err
	}
	return db.Close()
}

func openStore(ctx context.Context, c *config.Config, logger logging.Logger) (*sql.DB, repomanager.RepositoryManager, error) {
	db, dialect, err := dbx.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewSQLRepositoryManager(dialect, logger.With("module", "migrations"))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	logger.Info(ctx, "store ready", "dialect", dialect)
	return db, rm, nil
}

// Runner builds a runner for one pass. With downloads false attachment
// content is never fetched, whatever the configuration says.
func (a *App) Runner(ctx context.Context, downloads bool) (*syncer.Runner, error) {
	enabled := downloads && a.config.DownloadAttachments

	var store storage.Storage
	if enabled {
		s, err := newStorage(ctx, a.config)
		if err != nil {
			return nil, err
		}
		store = s
		a.logger.Info(ctx, "attachment download enabled", "backend", a.config.AttachmentsBackend)
	}

	deps := syncer.Deps{
		Fetcher:      a.client,
		Store:        a.archive,
		Materializer: attachments.NewMaterializer(enabled, a.client, store, a.logger.With("module", "attachments")),
		Sleeper:      fetcher.RealSleeper,
		Logger:       a.logger.With("module", "syncer"),
	}
	return syncer.NewRunner(deps, syncer.FromConfig(a.config)), nil
}

// Sync runs one full pass.
func (a *App) Sync(ctx context.Context, downloads bool) (*syncer.Report, error) {
	r, err := a.Runner(ctx, downloads)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

func (a *App) Close() error {
	return a.db.Close()
}

func newStorage(ctx context.Context, c *config.Config) (storage.Storage, error) {
	switch c.AttachmentsBackend {
	case config.BackendS3:
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:          c.S3Bucket,
			Prefix:          c.S3Prefix,
			Region:          c.S3Region,
			Endpoint:        c.S3Endpoint,
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			UsePathStyle:    c.S3UsePathStyle,
		})
	default:
		return storage.NewFS(c.AttachmentsDir)
	}
}

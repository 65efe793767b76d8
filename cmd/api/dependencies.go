package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	importhandler "github.com/FACorreiaa/statement-ingest/internal/domain/import/handler"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/mapping"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	importrepo "github.com/FACorreiaa/statement-ingest/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/pkg/config"
	"github.com/FACorreiaa/statement-ingest/pkg/cron"
	"github.com/FACorreiaa/statement-ingest/pkg/db"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB                  // postgres backend only
	SQLite   *importrepo.SQLiteStore // sqlite backend only
	Logger   *slog.Logger
	Registry *prometheus.Registry // nil when metrics are disabled

	// Repositories
	TransactionStore importrepo.TransactionStore
	TemplateStore    mapping.Store
	Archive          storage.Storage // nil when archiving is disabled

	// Services
	ImportService *importservice.ImportService
	Scheduler     *cron.Scheduler

	// Handlers
	ImportHandler *importhandler.ImportHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		slog.String("store", cfg.Store.Backend),
		slog.String("archive", cfg.Archive.Type))

	return deps, nil
}

// initDatabase opens the configured transaction store backend and runs migrations
func (d *Dependencies) initDatabase() error {
	switch d.Config.Store.Backend {
	case config.StorePostgres:
		database, err := db.New(db.Config{
			DSN:              d.Config.Database.DSN(),
			MaxConns:         int32(d.Config.Database.MaxConns),
			MinConns:         int32(d.Config.Database.MinConns),
			MaxConnLifetime:  d.Config.Database.MaxConnLifetime,
			MaxConnIdleTime:  10 * time.Minute,
			StatementTimeout: d.Config.Database.StatementTimeout,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.DB = database

		if err := d.DB.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		d.Logger.Info("database connected and migrations completed successfully")

	case config.StoreSQLite:
		store, err := importrepo.OpenSQLite(context.Background(), d.Config.Store.SQLitePath)
		if err != nil {
			return err
		}
		d.SQLite = store
		d.Logger.Info("sqlite store opened", slog.String("path", d.Config.Store.SQLitePath))

	case config.StoreMemory:
		d.Logger.Warn("using in-memory transaction store, data is lost on restart")
	}
	return nil
}

// initRepositories initializes the transaction store, template sources and archive
func (d *Dependencies) initRepositories() error {
	switch {
	case d.DB != nil:
		d.TransactionStore = importrepo.NewPostgresStore(d.DB.Pool)
	case d.SQLite != nil:
		d.TransactionStore = d.SQLite
	default:
		d.TransactionStore = importrepo.NewMemoryStore()
	}

	var chain mapping.ChainStore
	if path := d.Config.Import.TemplatesFile; path != "" {
		fileStore, err := mapping.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to load templates from %s: %w", path, err)
		}
		d.Logger.Info("mapping templates loaded", slog.String("path", path), slog.Any("templates", fileStore.Names()))
		chain = append(chain, fileStore)
	}
	if d.DB != nil {
		chain = append(chain, mapping.NewPostgresStore(d.DB.Pool))
	}
	defaults, err := mapping.NewMemoryStore()
	if err != nil {
		return err
	}
	d.TemplateStore = append(chain, defaults)

	if d.Config.Archive.ArchiveEnabled() {
		archive, err := storage.New(context.Background(), &storage.Config{
			Type:      storage.Type(d.Config.Archive.Type),
			LocalPath: d.Config.Archive.LocalPath,
			GCSBucket: d.Config.Archive.GCSBucket,
			GCSPrefix: d.Config.Archive.GCSPrefix,
		})
		if err != nil {
			return fmt.Errorf("failed to init upload archive: %w", err)
		}
		d.Archive = archive
	}

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	d.ImportService = importservice.NewImportService(d.TransactionStore, d.TemplateStore, d.Logger).
		WithNormalizer(normalizer.New(d.Config.Import.DefaultAccount, d.Config.Import.DefaultCurrency))

	if d.Config.Observability.MetricsEnabled {
		d.Registry = prometheus.NewRegistry()
		d.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		d.ImportService.WithMetrics(importservice.NewMetrics(d.Registry))
	}

	if d.Archive != nil {
		d.ImportService.WithArchive(d.Archive)
		retention := time.Duration(d.Config.Archive.RetentionDays) * 24 * time.Hour
		d.Scheduler = cron.NewScheduler(d.Archive, retention, d.Config.Archive.SweepSchedule, d.Logger)
	}

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger).
		WithMaxUploadBytes(d.Config.Server.MaxUploadBytes)

	d.Logger.Info("handlers initialized")
	return nil
}

// Ping checks the transaction store backend
func (d *Dependencies) Ping(ctx context.Context) error {
	switch {
	case d.DB != nil:
		return d.DB.Ping(ctx)
	case d.SQLite != nil:
		return d.SQLite.Ping(ctx)
	default:
		return nil
	}
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.SQLite != nil {
		if err := d.SQLite.Close(); err != nil {
			d.Logger.Warn("failed to close sqlite store", slog.Any("error", err))
		}
	}
	if closer, ok := d.Archive.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			d.Logger.Warn("failed to close archive client", slog.Any("error", err))
		}
	}
	d.Logger.Info("cleanup completed")
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"schema-drift-monitor/internal/config"
	"schema-drift-monitor/internal/dialect"
	"schema-drift-monitor/internal/metrics"
	"schema-drift-monitor/internal/services"
	"schema-drift-monitor/internal/store"
)

type Application struct {
	Config         *config.AppConfig
	Logger         *slog.Logger
	SourceDB       *sql.DB
	TargetDB       *sql.DB
	Store          store.Store
	Metrics        *metrics.Collector
	SchemaService  *services.SchemaService
	Reconciler     *services.Reconciler
	MonitorService *services.MonitorService
}

// NewApplication connects to the source database, and to the target database
// when one is configured, then wires the services. Without a target the
// reconciler works against the source connection.
func NewApplication(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Application, error) {
	app := &Application{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(),
	}

	sourceDB, sourceDialect, err := config.OpenDatabase(ctx, "source", cfg.SourceDB, logger)
	if err != nil {
		return nil, err
	}
	app.SourceDB = sourceDB

	app.Store, err = OpenStore(ctx, cfg, sourceDB, sourceDialect, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.TargetDB, app.Reconciler, err = app.buildReconciler(ctx, sourceDB, sourceDialect)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.SchemaService = services.NewSchemaService(sourceDB, sourceDialect, logger)
	app.MonitorService = services.NewMonitorService(
		app.SchemaService,
		app.Store,
		app.Store,
		app.Reconciler,
		app.Metrics,
		logger,
		services.MonitorOptions{
			Schedule:      cfg.Monitor.Schedule,
			Tables:        cfg.Monitor.Tables,
			AutoReconcile: cfg.Monitor.AutoReconcile,
			CheckTimeout:  cfg.Monitor.CheckTimeout,
		},
	)

	return app, nil
}

func (app *Application) buildReconciler(ctx context.Context, sourceDB *sql.DB, sourceDialect dialect.Dialect) (*sql.DB, *services.Reconciler, error) {
	targetDB, targetDialect := sourceDB, sourceDialect
	if app.Config.TargetDB.Configured() {
		var err error
		targetDB, targetDialect, err = config.OpenDatabase(ctx, "target", app.Config.TargetDB, app.Logger)
		if err != nil {
			return nil, nil, err
		}
	} else {
		app.Logger.Info("no target database configured, reconciling against source")
	}

	sessions := services.NewSQLSessionProvider(targetDB, targetDialect)
	if txLog, ok := app.Store.(store.TxChangeLog); ok {
		sessions = sessions.WithChangeLog(txLog)
	}

	reconciler := services.NewReconciler(
		sessions,
		services.NewStatementBuilder(targetDialect),
		app.Store,
		app.Metrics,
		app.Logger,
	)
	return targetDB, reconciler, nil
}

// OpenStore opens the configured snapshot and change-log backend and runs
// its migrations. With Kafka brokers configured, appended entries are also
// published.
func OpenStore(ctx context.Context, cfg *config.AppConfig, sourceDB *sql.DB, sourceDialect dialect.Dialect, logger *slog.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	switch cfg.Store.Backend {
	case config.BackendSQL:
		flavor, ferr := store.ParseFlavor(sourceDialect.Name())
		if ferr != nil {
			return nil, ferr
		}
		if err := store.RunMigrations(sourceDB, flavor); err != nil {
			return nil, err
		}
		s = store.NewSQLStore(sourceDB, flavor)

	case config.BackendSQLite:
		s, err = store.OpenSQLiteStore(ctx, cfg.Store.SQLitePath)

	case config.BackendRedis:
		s, err = store.NewRedisStore(ctx, store.RedisConfig{
			Addr:         cfg.Store.RedisAddr,
			Password:     cfg.Store.RedisPassword,
			DB:           cfg.Store.RedisDB,
			Prefix:       cfg.Store.RedisPrefix,
			HistoryLimit: cfg.Store.HistoryLimit,
		})

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("store opened", "backend", cfg.Store.Backend)

	if cfg.Kafka.Enabled() {
		logger.Info("publishing change log to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		s = store.NewPublishingStore(s, cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	}
	return s, nil
}

func (app *Application) Close() error {
	var errs []error

	if app.MonitorService != nil && app.MonitorService.IsRunning() {
		errs = append(errs, app.MonitorService.Stop())
	}
	if app.Store != nil {
		errs = append(errs, app.Store.Close())
	}
	if app.TargetDB != nil && app.TargetDB != app.SourceDB {
		errs = append(errs, app.TargetDB.Close())
	}
	if app.SourceDB != nil {
		errs = append(errs, app.SourceDB.Close())
	}

	return errors.Join(errs...)
}

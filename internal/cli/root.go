// Package cli implements driftctl, the one-shot command line front end to
// the schema drift monitor.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	configLoader "github.com/andiksetyawan/config"
	"github.com/spf13/cobra"

	"schema-drift-monitor/internal/app"
	"schema-drift-monitor/internal/config"
	"schema-drift-monitor/internal/models"
)

// Monitor is the part of MonitorService the commands use.
type Monitor interface {
	CheckTable(ctx context.Context, tableName string) (models.CheckResult, error)
	CheckAll(ctx context.Context) []models.CheckResult
	TakeSnapshot(ctx context.Context, tableName string) (*models.TableSchema, error)
	PendingChanges(ctx context.Context, tableName string) ([]models.Change, error)
}

type (
	openMonitorFunc func(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (Monitor, io.Closer, error)
	migrateFunc     func(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error
)

type runtime struct {
	openMonitor openMonitorFunc
	migrate     migrateFunc
	loadConfig  func(envFile string) (*config.AppConfig, error)

	envFile string
	output  string
	cfg     *config.AppConfig
	logger  *slog.Logger
}

// Execute runs driftctl and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd(&runtime{
		openMonitor: openApplication,
		migrate:     runMigrations,
		loadConfig:  loadConfig,
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(rt *runtime) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "driftctl",
		Short:         "Schema drift detection and reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.output != "text" && rt.output != "json" {
				return fmt.Errorf("unknown output format %q", rt.output)
			}
			cfg, err := rt.loadConfig(rt.envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			rt.cfg = cfg
			rt.logger = config.NewLogger(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&rt.envFile, "env-file", ".env", "dotenv file with SOURCE_DB_*, STORE_* and related settings")
	rootCmd.PersistentFlags().StringVarP(&rt.output, "output", "o", "text", "output format: text or json")

	rootCmd.AddCommand(
		newCheckCmd(rt),
		newSnapshotCmd(rt),
		newDiffCmd(rt),
		newMigrateCmd(rt),
	)
	return rootCmd
}

func loadConfig(envFile string) (*config.AppConfig, error) {
	cfg := &config.AppConfig{}

	loader := configLoader.New()
	if _, err := os.Stat(envFile); err == nil {
		loader = configLoader.New(configLoader.WithEnvPath(envFile))
	}
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func openApplication(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (Monitor, io.Closer, error) {
	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application.MonitorService, application, nil
}

func runMigrations(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	db, d, err := config.OpenDatabase(ctx, "source", cfg.SourceDB, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := app.OpenStore(ctx, cfg, db, d, logger)
	if err != nil {
		return err
	}
	return s.Close()
}

func (rt *runtime) withMonitor(cmd *cobra.Command, fn func(ctx context.Context, m Monitor) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m, closer, err := rt.openMonitor(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	return fn(ctx, m)
}

func (rt *runtime) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

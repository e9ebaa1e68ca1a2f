package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"narrative-timeline/backend/internal/api"
	"narrative-timeline/backend/internal/config"
	"narrative-timeline/backend/internal/logging"
	"narrative-timeline/backend/internal/repository"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "timelines-server",
		Short:   "Narrative timeline generation service",
		Version: api.ServiceVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./config.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, logging.NewLogger(cfg.LogLevel), nil
}

// openStore connects to the configured backend. The caller owns Close.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.TimelineStore, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		logger.Debug("connecting to postgres", "host", cfg.DB.Host, "db", cfg.DB.Name)
		pool, err := initDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresTimelineStore(pool), nil
	case config.DriverSQLite:
		logger.Debug("opening sqlite", "path", cfg.Store.SQLitePath)
		store, err := repository.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initDatabase(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

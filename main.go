package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roomguard/internal/config"
	"roomguard/internal/database"
	"roomguard/internal/database/migrations"
	"roomguard/internal/logging"
)

const serviceName = "roomguard"

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "roomguard",
	Short:        "Room fire and gas safety service",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and MQTT telemetry consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return serve(cmd.Context(), cfg, logger)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := database.Open(commandContext(cmd), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if err := migrations.MigrateUp(db); err != nil {
			return err
		}
		status, err := migrations.CurrentStatus(db)
		if err != nil {
			return err
		}
		logger.Info("schema migrated", zap.Uint("version", status.Version))
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := database.Open(commandContext(cmd), cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		status, err := migrations.CurrentStatus(db)
		if err != nil {
			return err
		}
		fmt.Printf("Version: %d\n", status.Version)
		fmt.Printf("Latest:  %d\n", status.Latest)
		fmt.Printf("Dirty:   %t\n", status.Dirty)
		if status.Pending() {
			fmt.Printf("Pending: %d migration(s)\n", status.Latest-status.Version)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// bootstrap loads and validates config and builds the logger.
func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, serviceName)
	if err != nil {
		return cfg, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, logger, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

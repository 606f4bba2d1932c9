package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/painting-generator/internal/config"
)

var (
	migrateConfigPath  string
	migrateDatabaseURL string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long: `Create the users, titles, ideas, paintings and reference image tables for the
configured backend. Safe to run repeatedly.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateConfigPath, "config", "", "Path to a YAML or JSON config file")
	migrateCmd.Flags().StringVar(&migrateDatabaseURL, "db-url", "", "Database URL (overrides config; defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := migrateConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	repo, backend, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close() //nolint:errcheck

	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema applied (%s)\n", backend)
	return nil
}

// migrateConfig only needs a database URL, so the full config is loaded
// only when neither the flag nor DATABASE_URL is set.
func migrateConfig() (*config.Config, error) {
	url := migrateDatabaseURL
	if url == "" && migrateConfigPath == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url != "" {
		return &config.Config{DatabaseURL: url}, nil
	}

	cfg, err := config.Load(migrateConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

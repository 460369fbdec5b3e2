package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"instantwin/internal/database"
	"instantwin/internal/logger"
	"instantwin/internal/settings"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var migrationsPath string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Database migration tool for the settlement ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logger.Init(&logger.Options{Level: logger.ParseLevel(os.Getenv("LOG_LEVEL"))})
		},
	}
	root.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (default: $MIGRATIONS_PATH or ./migrations)")

	path := func(cfg settings.Config) string {
		if migrationsPath != "" {
			return migrationsPath
		}
		return cfg.MigrationsPath
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: func(*cobra.Command, []string) error {
				return withDB(func(h *handle) error {
					log := logger.Component("migrate")
					log.Info("running migrations")
					if err := database.RunMigrations(h.db.DB(), path(h.cfg)); err != nil {
						return fmt.Errorf("migration failed: %w", err)
					}
					log.Info("migrations completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Rollback the last migration",
			RunE: func(*cobra.Command, []string) error {
				return withDB(func(h *handle) error {
					log := logger.Component("migrate")
					log.Info("rolling back last migration")
					if err := database.RollbackMigration(h.db.DB(), path(h.cfg)); err != nil {
						return fmt.Errorf("rollback failed: %w", err)
					}
					log.Info("rollback completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show current migration version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(func(h *handle) error {
					version, dirty, err := database.GetMigrationVersion(h.db.DB(), path(h.cfg))
					if err != nil {
						return fmt.Errorf("failed to get version: %w", err)
					}
					if dirty {
						fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (DIRTY - needs manual intervention)\n", version)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\n", version)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a new migration file pair",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := settings.Load()
				if err != nil {
					return err
				}
				up, down, err := createMigration(path(cfg), args[0], time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created migration files:\n   - %s\n   - %s\n", up, down)
				return nil
			},
		},
	)
	return root
}

type handle struct {
	cfg settings.Config
	db  database.Service
}

func withDB(fn func(h *handle) error) error {
	cfg, err := settings.Load()
	if err != nil {
		return err
	}
	db := database.New(cfg.DB)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Pool().Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to database %s: %w", redact(cfg), err)
	}
	return fn(&handle{cfg: cfg, db: db})
}

// createMigration writes the next numbered up/down pair into dir.
func createMigration(dir, name string, now time.Time) (string, string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("failed to read migrations directory: %w", err)
	}

	next := 1
	for _, file := range files {
		var version int
		if _, err := fmt.Sscanf(file.Name(), "%06d_", &version); err == nil && version >= next {
			next = version + 1
		}
	}

	upFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.up.sql", next, name))
	downFile := filepath.Join(dir, fmt.Sprintf("%06d_%s.down.sql", next, name))

	upContent := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n-- Add your SQL here\n", name, now.UTC().Format(time.RFC3339))
	if err := os.WriteFile(upFile, []byte(upContent), 0644); err != nil {
		return "", "", fmt.Errorf("failed to create up migration: %w", err)
	}
	downContent := fmt.Sprintf("-- Rollback: %s\n\n-- Add your rollback SQL here\n", name)
	if err := os.WriteFile(downFile, []byte(downContent), 0644); err != nil {
		return "", "", fmt.Errorf("failed to create down migration: %w", err)
	}
	return upFile, downFile, nil
}

func redact(cfg settings.Config) string {
	return fmt.Sprintf("%s@%s:%s/%s", cfg.DB.Username, cfg.DB.Host, cfg.DB.Port, cfg.DB.Database)
}

// Package main provides a CLI tool for database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/readshelf/catalog-service/internal/config"
	"github.com/readshelf/catalog-service/internal/database"
	"github.com/readshelf/catalog-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	up := flag.Bool("up", false, "Run all pending migrations")
	down := flag.Bool("down", false, "Roll back all migrations")
	steps := flag.Int("steps", 0, "Run N migration steps (positive=up, negative=down)")
	version := flag.Bool("version", false, "Print the current migration version")
	force := flag.Int("force", -1, "Force set migration version (use to recover from failed migrations)")
	migrationsPath := flag.String("path", "", "Override the migrations directory path")
	flag.Parse()

	// Exactly one action per invocation.
	actionCount := 0
	for _, chosen := range []bool{*up, *down, *steps != 0, *version, *force >= 0} {
		if chosen {
			actionCount++
		}
	}
	if actionCount == 0 {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nPlease specify one of: -up, -down, -steps N, -version, -force V")
		return fmt.Errorf("no action specified")
	}
	if actionCount > 1 {
		return fmt.Errorf("specify only one action at a time")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	logger = logger.With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if *migrationsPath != "" {
		migrationDir = *migrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch {
	case *up:
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case *down:
		logger.Warn().Msg("rolling back all migrations")
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	case *steps != 0:
		if err := migrator.Steps(*steps); err != nil {
			return fmt.Errorf("migrate steps: %w", err)
		}
	case *force >= 0:
		logger.Warn().Int("version", *force).Msg("forcing migration version")
		if err := migrator.Force(*force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
	}

	printVersion(migrator, logger)
	return nil
}

// printVersion prints the current migration version.
func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}

// Package main provides the entry point for the book catalog HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/readshelf/catalog-service/internal/auth"
	"github.com/readshelf/catalog-service/internal/catalog"
	"github.com/readshelf/catalog-service/internal/config"
	"github.com/readshelf/catalog-service/internal/covers"
	"github.com/readshelf/catalog-service/internal/database"
	"github.com/readshelf/catalog-service/internal/observability"
	"github.com/readshelf/catalog-service/internal/render"
	"github.com/readshelf/catalog-service/internal/repository"
	"github.com/readshelf/catalog-service/internal/reviews"
	httpserver "github.com/readshelf/catalog-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("catalog-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Metrics registry with the standard process and Go collectors.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics("catalog", registry)

	// Repositories.
	bookRepo := repository.NewPgBookRepository(db)
	reviewRepo := repository.NewPgReviewRepository(db)
	userRepo := repository.NewPgUserRepository(db)

	// Cover file store.
	coverStore, err := covers.NewStore(cfg.Covers.Dir, cfg.Covers.MaxUploadBytes, logger, metrics.CoverRemovalFailures)
	if err != nil {
		return fmt.Errorf("create cover store: %w", err)
	}

	// Services.
	catalogSvc := catalog.NewService(bookRepo, coverStore, cfg.Catalog.PageSize, logger, metrics)
	reviewSvc := reviews.NewService(reviewRepo, bookRepo, render.New(), cfg.Catalog.ModerationPageSize, logger, metrics)
	verifier := auth.NewStaticVerifier(cfg.Auth.Credentials, userRepo)

	// HTTP server.
	httpSrv := httpserver.NewServer(
		httpserver.Config{
			Address:             cfg.Server.HTTPAddress(),
			ReadTimeout:         cfg.Server.ReadTimeout,
			WriteTimeout:        cfg.Server.WriteTimeout,
			IdleTimeout:         cfg.Server.IdleTimeout,
			ShutdownTimeout:     cfg.Server.ShutdownTimeout,
			SubmitRatePerSecond: cfg.Server.SubmitRatePerSecond,
			SubmitRateBurst:     cfg.Server.SubmitRateBurst,
			MaxUploadBytes:      cfg.Covers.MaxUploadBytes,
			CoversDir:           cfg.Covers.Dir,
			MetricsEnabled:      cfg.Metrics.Enabled,
			MetricsPath:         cfg.Metrics.Path,
		},
		catalogSvc,
		reviewSvc,
		verifier,
		db,
		registry,
		metrics,
		logger,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Msg("catalog-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("catalog-service shutdown complete")
	return nil
}

// Package cli provides common initialization used by the categorizer
// subcommands: logging, configuration, storage and the optional change
// publisher.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"categorizer/internal/amqp"
	"categorizer/internal/config"
	"categorizer/internal/docstore"
	apphttp "categorizer/internal/http"
	"categorizer/internal/log"
	"categorizer/internal/services"
	"categorizer/internal/storage"
)

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs the same handler as the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	handler := log.NewHandler(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(slog.New(handler))
	return log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
		Handler:   handler,
	})
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment, lets apply
// override individual values and validates the result.
func LoadAndValidateConfig(apply func(*config.Config)) (*config.Config, error) {
	cfg := config.Load()
	if apply != nil {
		apply(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// InitSQLite opens the database and applies pending migrations.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		return nil, err
	}
	logger.Debug("SQLite repository ready", "path", dbPath)
	return repo, nil
}

// InitDocstore prepares the upload directory.
func InitDocstore(cfg *config.Config) (*docstore.Store, error) {
	files, err := docstore.New(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		return nil, fmt.Errorf("init upload directory %s: %w", cfg.UploadDir, err)
	}
	return files, nil
}

// InitPublisher connects to the broker when AMQP_URL is set. Without it the
// returned publisher is nil and mutations are not announced.
func InitPublisher(logger *log.Logger, cfg *config.Config) (services.ChangePublisher, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Info("Change notifications disabled - no AMQP_URL provided")
		return nil, func() {}, nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to message broker: %w", err)
	}
	logger.Info("Change notifications enabled", "exchange", cfg.AMQPExchange)

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}
	return client, closeFn, nil
}

// BuildServices wires the services shared by the HTTP server and the
// maintenance subcommands.
func BuildServices(repo *storage.SQLiteRepository, files *docstore.Store, publisher services.ChangePublisher) apphttp.Services {
	return apphttp.Services{
		Transactions: services.NewTransactionService(repo, files, publisher),
		Taxonomy:     services.NewTaxonomyService(repo, publisher),
		Settings:     services.NewSettingsService(repo, publisher),
		Documents:    services.NewDocumentService(repo, files, publisher),
		Backup:       services.NewBackupService(repo, files),
		Maintenance:  services.NewMaintenanceService(repo, files),
	}
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM, or
// when the returned cancel func is called.
func GracefulShutdown(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"categorizer/internal/cli"
	"categorizer/internal/config"
	apphttp "categorizer/internal/http"
	"categorizer/internal/log"
	"categorizer/internal/services"
	"categorizer/internal/storage"
)

var (
	dbPath     string
	uploadDir  string
	port       string
	backupPath string
)

var rootCmd = &cobra.Command{
	Use:           "categorizer",
	Short:         "Transaction categorization backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return fmt.Errorf("migrate %s: %w", cfg.SQLiteDBPath, err)
		}
		logger.Info("Migrations applied", "path", cfg.SQLiteDBPath)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset-db",
	Short: "Drop all data and recreate the schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if cfg.IsProduction() {
			return errors.New("refusing to reset the database with APP_ENV=production")
		}

		repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		defer repo.Close()
		files, err := cli.InitDocstore(cfg)
		if err != nil {
			return err
		}

		return services.NewMaintenanceService(repo, files).Reset(cmd.Context())
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a ZIP backup of all data and documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		defer repo.Close()
		files, err := cli.InitDocstore(cfg)
		if err != nil {
			return err
		}

		backup := services.NewBackupService(repo, files)
		out := backupPath
		if out == "" {
			out = backup.FileName(time.Now())
		}
		return writeBackup(cmd.Context(), backup, out, logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&uploadDir, "uploads", "", "Document upload directory (overrides UPLOAD_DIR)")
	rootCmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port (overrides PORT)")
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port (overrides PORT)")
	backupCmd.Flags().StringVarP(&backupPath, "output", "o", "", "Archive path (default: categorizer_backup_<timestamp>.zip)")

	rootCmd.AddCommand(serveCmd, migrateCmd, resetCmd, backupCmd)
}

func main() {
	cli.LoadEnvFile()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *log.Logger, error) {
	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if dbPath != "" {
			c.SQLiteDBPath = dbPath
		}
		if uploadDir != "" {
			c.UploadDir = uploadDir
		}
		if port != "" {
			c.Port = port
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, cli.SetupLogger(cfg), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	files, err := cli.InitDocstore(cfg)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := cli.InitPublisher(logger, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	srv := apphttp.NewServer(cfg, cli.BuildServices(repo, files, publisher), logger)

	ctx, stop := cli.GracefulShutdown(cmd.Context(), logger)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting categorizer server",
			"port", cfg.Port,
			"env", cfg.AppEnv,
			"api_prefix", cfg.APIPrefix,
			"db_path", cfg.SQLiteDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		logger.Info("Server stopped gracefully")
		return nil
	})
	return g.Wait()
}

func writeBackup(ctx context.Context, backup *services.BackupService, path string, logger *log.Logger) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create backup directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	if err := backup.WriteArchive(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close backup file: %w", err)
	}

	logger.Info("Backup written", "path", path)
	return nil
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"categorizer/internal/docstore"
	"categorizer/internal/storage"
)

// MaintenanceService resets all state. It backs the test-only reset endpoint
// and the reset-db command; callers gate it on the environment.
type MaintenanceService struct {
	storage *storage.SQLiteRepository
	files   *docstore.Store
}

func NewMaintenanceService(storage *storage.SQLiteRepository, files *docstore.Store) *MaintenanceService {
	return &MaintenanceService{storage: storage, files: files}
}

// Reset drops and recreates the schema, then empties the upload directory.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if err := storage.ResetSchema(s.storage.DBPath()); err != nil {
		return fmt.Errorf("reset schema: %w", err)
	}
	if s.files != nil {
		if err := s.files.Purge(); err != nil {
			return fmt.Errorf("purge uploads: %w", err)
		}
	}
	slog.WarnContext(ctx, "Database reset", "db_path", s.storage.DBPath())
	return nil
}

// Ready reports whether the database answers.
func (s *MaintenanceService) Ready(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

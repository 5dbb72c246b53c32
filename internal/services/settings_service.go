package services

import (
	"context"
	"errors"
	"log/slog"

	"categorizer/internal/amqp"
	"categorizer/internal/core"
	"categorizer/internal/log"
	"categorizer/internal/storage"
)

type SettingsService struct {
	storage   *storage.SQLiteRepository
	publisher ChangePublisher
}

func NewSettingsService(storage *storage.SQLiteRepository, publisher ChangePublisher) *SettingsService {
	return &SettingsService{storage: storage, publisher: publisher}
}

// Get returns the stored setting. A recognized key that was never stored
// yields a zero value with ID 0; any other missing key is not found.
func (s *SettingsService) Get(ctx context.Context, key string) (core.Setting, error) {
	setting, err := s.storage.GetSetting(ctx, key)
	if errors.Is(err, core.ErrNotFound) && core.IsNumericSetting(key) {
		zero := core.AmountFromCents(0)
		return core.Setting{Key: key, Value: &zero}, nil
	}
	return setting, err
}

// Set stores the value of a recognized numeric setting. raw is parsed the
// same way as transaction amounts.
func (s *SettingsService) Set(ctx context.Context, key string, raw *string) (core.Setting, error) {
	if !core.IsNumericSetting(key) {
		return core.Setting{}, core.Validationf("Setting key '%s' is not supported.", key)
	}
	if raw == nil {
		return core.Setting{}, core.Validationf("Missing 'value' in request body.")
	}
	value, err := core.ParseAmount(*raw)
	if err != nil {
		return core.Setting{}, core.Validationf("Invalid value for '%s': %s", key, messageOf(err))
	}

	setting, err := s.storage.UpsertSetting(ctx, key, &value)
	if err != nil {
		return core.Setting{}, withPersistenceMessage(err, "Could not save setting.")
	}
	slog.InfoContext(ctx, "Setting updated", log.FieldSettingKey, key, "value", core.FormatAmount(value))
	notify(ctx, s.publisher, amqp.EntitySetting, amqp.ActionUpdated, setting.ID)
	return setting, nil
}

func (s *SettingsService) List(ctx context.Context) ([]core.Setting, error) {
	return s.storage.ListSettings(ctx)
}

func messageOf(err error) string {
	if msg, ok := core.PublicMessage(err); ok {
		return msg
	}
	return err.Error()
}

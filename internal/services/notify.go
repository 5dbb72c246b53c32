package services

import (
	"context"
	"errors"
	"log/slog"

	"categorizer/internal/core"
	"categorizer/internal/log"
)

// ChangePublisher receives a notification after a mutation has committed.
// *amqp.Client implements it.
type ChangePublisher interface {
	PublishChange(ctx context.Context, entity, action string, id int64) error
}

// notify publishes best effort: the change is already committed, so a
// failure is logged and never returned.
func notify(ctx context.Context, p ChangePublisher, entity, action string, id int64) {
	if p == nil {
		return
	}
	if err := p.PublishChange(ctx, entity, action, id); err != nil {
		slog.WarnContext(ctx, "Failed to publish change message",
			"entity", entity,
			"action", action,
			"id", id,
			log.FieldError, err)
	}
}

// withPersistenceMessage swaps the client message of storage failures for one
// naming the operation. Other kinds keep their own message.
func withPersistenceMessage(err error, msg string) error {
	if errors.Is(err, core.ErrPersistence) {
		return core.WithMessage(err, msg)
	}
	return err
}

package repository

import (
	"context"
	"fmt"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/store"

	"github.com/google/uuid"
)

// RecordWebhookError stores a failed delivery for later inspection or replay.
func (r *Repository) RecordWebhookError(ctx context.Context, rec models.WebhookError) (models.WebhookError, error) {
	if rec.Id == "" {
		rec.Id = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.timeNow()
	}
	if err := r.store.Create(ctx, store.CollectionWebhookErrors, rec.Id, rec); err != nil {
		return models.WebhookError{}, fmt.Errorf("unable to record webhook error: %w", err)
	}
	return rec, nil
}

func (r *Repository) ListWebhookErrors(ctx context.Context) ([]models.WebhookError, error) {
	docs, err := r.store.Query(ctx, store.CollectionWebhookErrors)
	if err != nil {
		return nil, fmt.Errorf("unable to list webhook errors: %w", err)
	}
	return decodeAll[models.WebhookError](docs)
}

func (r *Repository) MarkWebhookErrorReplayed(ctx context.Context, id string) error {
	return r.store.Update(ctx, store.CollectionWebhookErrors, id, map[string]any{"replayedAt": r.timeNow()})
}

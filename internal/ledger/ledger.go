// Package ledger records which payment provider events have been consumed.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/store"

	"go.uber.org/zap"
)

// ErrAlreadyProcessed is returned by MarkProcessed when the event id was marked before.
var ErrAlreadyProcessed = errors.New("event already processed")

// EventLedger is a set of processed event ids backed by exclusive inserts,
// so concurrent deliveries of one event cannot both claim it.
type EventLedger struct {
	store store.DocumentStore
	now   func() time.Time
}

func New(s store.DocumentStore) *EventLedger {
	return &EventLedger{store: s, now: time.Now}
}

func (l *EventLedger) HasProcessed(ctx context.Context, eventId string) (bool, error) {
	_, err := l.store.Get(ctx, store.CollectionWebhookEvents, eventId)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("unable to check event %s: %w", eventId, err)
	}
	return true, nil
}

// MarkProcessed claims eventId. Exactly one caller succeeds per id; the rest
// get ErrAlreadyProcessed.
func (l *EventLedger) MarkProcessed(ctx context.Context, eventId, eventType string, snapshot json.RawMessage) error {
	if eventId == "" {
		return fmt.Errorf("event id cannot be empty")
	}
	if len(snapshot) > 0 && !json.Valid(snapshot) {
		snapshot = nil
	}
	rec := models.ProcessedEvent{
		EventId:     eventId,
		Type:        eventType,
		ProcessedAt: l.now().UTC(),
		Data:        snapshot,
	}
	err := l.store.Create(ctx, store.CollectionWebhookEvents, eventId, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, eventId)
	}
	if err != nil {
		return fmt.Errorf("unable to mark event %s: %w", eventId, err)
	}
	zap.L().Debug("Event marked processed", zap.String("event_id", eventId), zap.String("type", eventType))
	return nil
}

// Get returns the processed marker, or store.ErrNotFound.
func (l *EventLedger) Get(ctx context.Context, eventId string) (*models.ProcessedEvent, error) {
	doc, err := l.store.Get(ctx, store.CollectionWebhookEvents, eventId)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, err
	}
	var rec models.ProcessedEvent
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unable to decode event %s: %w", eventId, err)
	}
	return &rec, nil
}

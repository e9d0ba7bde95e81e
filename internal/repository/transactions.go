package repository

import (
	"context"
	"fmt"
	"sort"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/store"

	"github.com/google/uuid"
)

// AppendTransaction writes an audit entry. Entries are never modified.
func (r *Repository) AppendTransaction(ctx context.Context, entry models.TransactionLogEntry) (models.TransactionLogEntry, error) {
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.timeNow()
	}
	if err := r.store.Create(ctx, store.CollectionTransactions, entry.Id, entry); err != nil {
		return models.TransactionLogEntry{}, fmt.Errorf("unable to append transaction: %w", err)
	}
	return entry, nil
}

// ListTransactions returns a user's audit entries, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userId string) ([]models.TransactionLogEntry, error) {
	docs, err := r.store.Query(ctx, store.CollectionTransactions, store.Where("userId", userId))
	if err != nil {
		return nil, fmt.Errorf("unable to list transactions: %w", err)
	}
	entries, err := decodeAll[models.TransactionLogEntry](docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	return entries, nil
}

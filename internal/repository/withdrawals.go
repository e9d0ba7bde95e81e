package repository

import (
	"context"
	"fmt"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/store"

	"github.com/google/uuid"
)

var withdrawalTransitions = map[string][]string{
	models.WithdrawalProcessing: {models.WithdrawalPending},
	models.WithdrawalCompleted:  {models.WithdrawalProcessing},
	models.WithdrawalRejected:   {models.WithdrawalPending, models.WithdrawalProcessing},
}

func (r *Repository) CreateWithdrawal(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	if w.Id == "" {
		w.Id = uuid.New().String()
	}
	if w.RequestedAt.IsZero() {
		w.RequestedAt = r.timeNow()
	}
	w.Status = models.WithdrawalPending
	if err := r.store.Create(ctx, store.CollectionWithdrawals, w.Id, w); err != nil {
		return models.Withdrawal{}, fmt.Errorf("unable to create withdrawal: %w", err)
	}
	return w, nil
}

func (r *Repository) GetWithdrawal(ctx context.Context, id string) (*models.Withdrawal, error) {
	doc, err := r.store.Get(ctx, store.CollectionWithdrawals, id)
	if err != nil {
		return nil, err
	}
	w, err := decode[models.Withdrawal](*doc)
	if err != nil {
		return nil, err
	}
	w.Id = doc.Id
	return &w, nil
}

// ListWithdrawals lists a user's withdrawals, or every withdrawal when userId is empty.
func (r *Repository) ListWithdrawals(ctx context.Context, userId string) ([]models.Withdrawal, error) {
	var filters []store.Filter
	if userId != "" {
		filters = append(filters, store.Where("userId", userId))
	}
	docs, err := r.store.Query(ctx, store.CollectionWithdrawals, filters...)
	if err != nil {
		return nil, fmt.Errorf("unable to list withdrawals: %w", err)
	}
	return decodeAll[models.Withdrawal](docs)
}

// TransitionWithdrawal advances a withdrawal through its lifecycle.
func (r *Repository) TransitionWithdrawal(ctx context.Context, id, to string) error {
	from, ok := withdrawalTransitions[to]
	if !ok {
		return fmt.Errorf("%w: unknown target %q", ErrInvalidTransition, to)
	}
	return r.transition(ctx, store.CollectionWithdrawals, id, from, to, map[string]any{"updatedAt": r.timeNow()})
}

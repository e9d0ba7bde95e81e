package repository

import (
	"context"
	"fmt"
	"time"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/store"

	"github.com/google/uuid"
)

func (r *Repository) CreateDeposit(ctx context.Context, dep models.Deposit) (models.Deposit, error) {
	if dep.Id == "" {
		dep.Id = uuid.New().String()
	}
	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = r.timeNow()
	}
	if dep.Status == "" {
		dep.Status = models.DepositPending
	}
	if err := r.store.Create(ctx, store.CollectionDeposits, dep.Id, dep); err != nil {
		return models.Deposit{}, fmt.Errorf("unable to create deposit: %w", err)
	}
	return dep, nil
}

// FindDepositByPaymentIntent returns nil when no deposit references the intent.
func (r *Repository) FindDepositByPaymentIntent(ctx context.Context, paymentIntentId string) (*models.Deposit, error) {
	docs, err := r.store.Query(ctx, store.CollectionDeposits, store.Where("paymentIntentId", paymentIntentId))
	if err != nil {
		return nil, fmt.Errorf("unable to find deposit: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	dep, err := decode[models.Deposit](docs[0])
	if err != nil {
		return nil, err
	}
	dep.Id = docs[0].Id
	return &dep, nil
}

// CompleteDeposit moves a pending deposit to completed. A deposit that is
// already completed yields ErrInvalidTransition.
func (r *Repository) CompleteDeposit(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, store.CollectionDeposits, id,
		[]string{models.DepositPending}, models.DepositCompleted,
		map[string]any{"completedAt": at})
}

func (r *Repository) ListDeposits(ctx context.Context, userId string) ([]models.Deposit, error) {
	docs, err := r.store.Query(ctx, store.CollectionDeposits, store.Where("userId", userId))
	if err != nil {
		return nil, fmt.Errorf("unable to list deposits: %w", err)
	}
	return decodeAll[models.Deposit](docs)
}

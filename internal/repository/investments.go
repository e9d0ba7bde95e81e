package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidTransition is returned when a record is not in a status the
// requested transition may start from.
var ErrInvalidTransition = errors.New("invalid status transition")

// investmentTransitions lists, per target status, the statuses it may be reached from.
var investmentTransitions = map[string][]string{
	models.InvestmentActive:    {models.InvestmentPending},
	models.InvestmentFailed:    {models.InvestmentPending},
	models.InvestmentRefunded:  {models.InvestmentPending, models.InvestmentActive},
	models.InvestmentCancelled: {models.InvestmentActive, models.InvestmentPending},
}

// CreateInvestment stores a new investment, assigning an id when empty.
func (r *Repository) CreateInvestment(ctx context.Context, inv models.Investment) (models.Investment, error) {
	if inv.Id == "" {
		inv.Id = uuid.New().String()
	}
	if inv.Timestamp.IsZero() {
		inv.Timestamp = r.timeNow()
	}
	if err := r.store.Create(ctx, store.CollectionInvestments, inv.Id, inv); err != nil {
		return models.Investment{}, fmt.Errorf("unable to create investment: %w", err)
	}
	return inv, nil
}

func (r *Repository) GetInvestment(ctx context.Context, id string) (*models.Investment, error) {
	doc, err := r.store.Get(ctx, store.CollectionInvestments, id)
	if err != nil {
		return nil, err
	}
	inv, err := decode[models.Investment](*doc)
	if err != nil {
		return nil, err
	}
	inv.Id = doc.Id
	return &inv, nil
}

func (r *Repository) ListInvestments(ctx context.Context, userId string) ([]models.Investment, error) {
	docs, err := r.store.Query(ctx, store.CollectionInvestments, store.Where("userId", userId))
	if err != nil {
		return nil, fmt.Errorf("unable to list investments: %w", err)
	}
	return decodeAll[models.Investment](docs)
}

// FindInvestmentBySubscription returns nil when no investment carries the subscription id.
func (r *Repository) FindInvestmentBySubscription(ctx context.Context, subscriptionId string) (*models.Investment, error) {
	docs, err := r.store.Query(ctx, store.CollectionInvestments, store.Where("subscriptionId", subscriptionId))
	if err != nil {
		return nil, fmt.Errorf("unable to find investment for subscription: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	inv, err := decode[models.Investment](docs[0])
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// TransitionInvestment moves an investment to status `to` and merges fields,
// only if its current status allows it. The check and write are atomic.
func (r *Repository) TransitionInvestment(ctx context.Context, id, to string, fields map[string]any) error {
	from, ok := investmentTransitions[to]
	if !ok {
		return fmt.Errorf("%w: unknown target %q", ErrInvalidTransition, to)
	}
	return r.transition(ctx, store.CollectionInvestments, id, from, to, fields)
}

// ActivateInvestment links a successful payment to a pending investment.
func (r *Repository) ActivateInvestment(ctx context.Context, id string, details models.PaymentDetails, paidAt time.Time) error {
	return r.TransitionInvestment(ctx, id, models.InvestmentActive, map[string]any{
		"paymentId":        details.PaymentIntentId,
		"paymentTimestamp": paidAt,
		"paymentDetails":   details,
	})
}

func (r *Repository) FailInvestment(ctx context.Context, id, reason, code string, at time.Time) error {
	return r.TransitionInvestment(ctx, id, models.InvestmentFailed, map[string]any{
		"failureReason": reason,
		"failureCode":   code,
		"lastAttempt":   at,
	})
}

// RefundInvestment marks an investment refunded. credited reports whether it
// was active, i.e. whether its principal had been added to the summary.
func (r *Repository) RefundInvestment(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (credited bool, err error) {
	fields := map[string]any{
		"refundedAt":   at,
		"refundAmount": amount,
	}
	err = r.transition(ctx, store.CollectionInvestments, id, []string{models.InvestmentActive}, models.InvestmentRefunded, fields)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrInvalidTransition) {
		return false, err
	}
	if err := r.transition(ctx, store.CollectionInvestments, id, []string{models.InvestmentPending}, models.InvestmentRefunded, fields); err != nil {
		return false, err
	}
	return false, nil
}

func (r *Repository) CancelInvestment(ctx context.Context, id string, valueAtCancellation decimal.Decimal, at time.Time) error {
	return r.TransitionInvestment(ctx, id, models.InvestmentCancelled, map[string]any{
		"cancelledAt":         at,
		"valueAtCancellation": valueAtCancellation,
	})
}

// UpdateInvestment merges non-status fields.
func (r *Repository) UpdateInvestment(ctx context.Context, id string, fields map[string]any) error {
	if _, ok := fields["status"]; ok {
		return fmt.Errorf("%w: status changes go through TransitionInvestment", ErrInvalidTransition)
	}
	if _, ok := fields["amount"]; ok {
		return fmt.Errorf("investment principal is immutable")
	}
	return r.store.Update(ctx, store.CollectionInvestments, id, fields)
}

func (r *Repository) transition(ctx context.Context, collection, id string, from []string, to string, fields map[string]any) error {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["status"] = to

	allowed := make([]any, len(from))
	for i, s := range from {
		allowed[i] = s
	}
	err := r.store.UpdateIf(ctx, collection, id, []store.Condition{store.FieldIn("status", allowed...)}, merged)
	if errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("%w: %s/%s to %s", ErrInvalidTransition, collection, id, to)
	}
	return err
}

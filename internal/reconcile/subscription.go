package reconcile

import (
	"context"
	"errors"
	"fmt"

	"savium-invest-go/internal/accrual"
	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"
	"savium-invest-go/internal/repository"
	"savium-invest-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// subscriptionInvestmentId derives the recurring investment id from the
// subscription id so repeated created events collide on insert.
func subscriptionInvestmentId(subscriptionId string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("subscription:"+subscriptionId)).String()
}

func (e *Engine) handleSubscriptionCreated(ctx context.Context, ev payments.Event) (string, error) {
	sub, err := ev.Subscription()
	if err != nil {
		return "", err
	}

	customerId := string(sub.Customer)
	if customerId == "" {
		zap.L().Warn("No customer in subscription data", zap.String("event_id", ev.Id))
		return OutcomeNoop, nil
	}

	customer, err := e.provider.GetCustomer(ctx, customerId)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve customer %s: %w", customerId, err)
	}
	userId := customer.Metadata["userId"]
	if userId == "" {
		zap.L().Warn("No userId in customer metadata",
			zap.String("event_id", ev.Id),
			zap.String("customer_id", customerId))
		return OutcomeNoop, nil
	}

	amount := payments.MinorToMajor(sub.UnitAmount(), sub.Currency())
	interval := sub.Interval()

	inv, err := e.repo.CreateInvestment(ctx, models.Investment{
		Id:              subscriptionInvestmentId(sub.Id),
		UserId:          userId,
		Amount:          amount,
		Timestamp:       e.now(),
		Status:          models.InvestmentActive,
		Recurring:       true,
		Frequency:       interval,
		SubscriptionId:  sub.Id,
		NextPaymentDate: sub.PeriodEnd(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			zap.L().Info("Subscription already has an investment",
				zap.String("event_id", ev.Id),
				zap.String("subscription_id", sub.Id))
			return OutcomeNoop, nil
		}
		return "", err
	}

	e.record(userId, models.TxTypeSubscriptionStarted, models.TxStatusCompleted, amount, map[string]string{
		"subscriptionId": sub.Id,
		"investmentId":   inv.Id,
		"frequency":      interval,
		"customerId":     customerId,
	})
	e.publish(ctx, models.Settlement{
		EventId:    ev.Id,
		EventType:  ev.Type,
		Kind:       models.SettlementSubscriptionStarted,
		UserId:     userId,
		RecordId:   inv.Id,
		Amount:     amount,
		Currency:   sub.Currency(),
		OccurredAt: inv.Timestamp,
	})

	zap.L().Info("Subscription created",
		zap.String("event_id", ev.Id),
		zap.String("subscription_id", sub.Id),
		zap.String("investment_id", inv.Id))
	return OutcomeApplied, nil
}

// handleSubscriptionUpdated refreshes the schedule of a recurring investment.
// A terminated subscription is treated as a cancellation.
func (e *Engine) handleSubscriptionUpdated(ctx context.Context, ev payments.Event) (string, error) {
	sub, err := ev.Subscription()
	if err != nil {
		return "", err
	}
	if sub.IsTerminated() {
		return e.cancelSubscription(ctx, ev, sub)
	}

	inv, err := e.repo.FindInvestmentBySubscription(ctx, sub.Id)
	if err != nil {
		return "", err
	}
	if inv == nil {
		zap.L().Info("No investment for updated subscription",
			zap.String("event_id", ev.Id),
			zap.String("subscription_id", sub.Id))
		return OutcomeNoop, nil
	}

	fields := map[string]any{}
	if interval := sub.Interval(); interval != "" {
		fields["frequency"] = interval
	}
	if end := sub.PeriodEnd(); end != nil {
		fields["nextPaymentDate"] = *end
	}
	if len(fields) == 0 {
		return OutcomeNoop, nil
	}
	if err := e.repo.UpdateInvestment(ctx, inv.Id, fields); err != nil {
		return "", fmt.Errorf("failed to update investment %s: %w", inv.Id, err)
	}

	zap.L().Info("Subscription updated",
		zap.String("event_id", ev.Id),
		zap.String("subscription_id", sub.Id),
		zap.String("investment_id", inv.Id))
	return OutcomeApplied, nil
}

func (e *Engine) handleSubscriptionDeleted(ctx context.Context, ev payments.Event) (string, error) {
	sub, err := ev.Subscription()
	if err != nil {
		return "", err
	}
	return e.cancelSubscription(ctx, ev, sub)
}

// cancelSubscription closes the recurring investment, freezing its value
// with the interest accrued so far.
func (e *Engine) cancelSubscription(ctx context.Context, ev payments.Event, sub payments.Subscription) (string, error) {
	inv, err := e.repo.FindInvestmentBySubscription(ctx, sub.Id)
	if err != nil {
		return "", err
	}
	if inv == nil {
		zap.L().Info("No investment for cancelled subscription",
			zap.String("event_id", ev.Id),
			zap.String("subscription_id", sub.Id))
		return OutcomeNoop, nil
	}

	now := e.now()
	value := accrual.RoundCurrency(accrual.Value(inv.Amount, accrual.ElapsedDays(inv.Timestamp, now)))

	if err := e.repo.CancelInvestment(ctx, inv.Id, value, now); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			zap.L().Info("Investment already closed",
				zap.String("event_id", ev.Id),
				zap.String("investment_id", inv.Id),
				zap.String("status", inv.Status))
			return OutcomeNoop, nil
		}
		return "", fmt.Errorf("failed to cancel investment %s: %w", inv.Id, err)
	}

	e.record(inv.UserId, models.TxTypeSubscriptionCancelled, models.TxStatusCompleted, value, map[string]string{
		"subscriptionId": sub.Id,
		"investmentId":   inv.Id,
		"principal":      inv.Amount.String(),
	})
	e.publish(ctx, models.Settlement{
		EventId:    ev.Id,
		EventType:  ev.Type,
		Kind:       models.SettlementSubscriptionCancelled,
		UserId:     inv.UserId,
		RecordId:   inv.Id,
		Amount:     value,
		Currency:   sub.Currency(),
		OccurredAt: now,
	})

	zap.L().Info("Subscription cancelled",
		zap.String("event_id", ev.Id),
		zap.String("investment_id", inv.Id),
		zap.String("value_at_cancellation", value.String()))
	return OutcomeApplied, nil
}

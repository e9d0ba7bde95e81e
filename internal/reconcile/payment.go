package reconcile

import (
	"context"
	"errors"
	"fmt"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"
	"savium-invest-go/internal/repository"
	"savium-invest-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// handleSucceeded settles a successful payment against a deposit, an
// investment, or neither, depending on the payment metadata.
func (e *Engine) handleSucceeded(ctx context.Context, ev payments.Event) (string, error) {
	obj, err := ev.PaymentObject()
	if err != nil {
		return "", err
	}

	userId := obj.Metadata["userId"]
	if userId == "" {
		zap.L().Warn("No userId in payment metadata",
			zap.String("event_id", ev.Id),
			zap.String("object_id", obj.Id))
		return OutcomeNoop, nil
	}

	amount := payments.MinorToMajor(obj.Amount, obj.Currency)
	intentId := obj.IntentId()
	now := e.now()

	if obj.Metadata["purpose"] == models.PurposeAccountDeposit {
		return e.settleDeposit(ctx, ev, obj, userId, intentId)
	}

	if investmentId := obj.Metadata["investmentId"]; investmentId != "" {
		return e.settleInvestment(ctx, ev, obj, userId, investmentId)
	}

	e.record(userId, models.TxTypePayment, models.TxStatusCompleted, amount, map[string]string{
		"paymentIntentId": intentId,
		"paymentMethod":   obj.Method(),
	})
	zap.L().Info("Payment recorded",
		zap.String("event_id", ev.Id),
		zap.String("user_id", userId),
		zap.String("amount", amount.String()),
		zap.Time("at", now))
	return OutcomeApplied, nil
}

func (e *Engine) settleDeposit(ctx context.Context, ev payments.Event, obj payments.PaymentObject, userId, intentId string) (string, error) {
	amount := payments.MinorToMajor(obj.Amount, obj.Currency)
	now := e.now()
	metadata := map[string]string{
		"paymentIntentId": intentId,
		"paymentMethod":   obj.Method(),
	}

	dep, err := e.repo.FindDepositByPaymentIntent(ctx, intentId)
	if err != nil {
		return "", err
	}
	if dep == nil {
		zap.L().Warn("No deposit found for payment intent",
			zap.String("event_id", ev.Id),
			zap.String("payment_intent_id", intentId))
		e.record(userId, models.TxTypeDeposit, models.TxStatusCompleted, amount, metadata)
		return OutcomeNoop, nil
	}

	if err := e.repo.CompleteDeposit(ctx, dep.Id, now); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			zap.L().Info("Deposit already completed",
				zap.String("event_id", ev.Id),
				zap.String("deposit_id", dep.Id))
			return OutcomeNoop, nil
		}
		return "", fmt.Errorf("failed to complete deposit %s: %w", dep.Id, err)
	}

	e.settle(ctx, models.Settlement{
		EventId:         ev.Id,
		EventType:       ev.Type,
		Kind:            models.SettlementDeposit,
		UserId:          userId,
		RecordId:        dep.Id,
		PaymentIntentId: intentId,
		Amount:          amount,
		Currency:        obj.Currency,
		OccurredAt:      now,
	}, repository.FieldLastDepositDate)

	metadata["depositId"] = dep.Id
	e.record(userId, models.TxTypeDeposit, models.TxStatusCompleted, amount, metadata)

	zap.L().Info("Deposit completed",
		zap.String("event_id", ev.Id),
		zap.String("deposit_id", dep.Id),
		zap.String("user_id", userId),
		zap.String("amount", amount.String()))
	return OutcomeApplied, nil
}

func (e *Engine) settleInvestment(ctx context.Context, ev payments.Event, obj payments.PaymentObject, userId, investmentId string) (string, error) {
	amount := payments.MinorToMajor(obj.Amount, obj.Currency)
	intentId := obj.IntentId()
	now := e.now()

	details := models.PaymentDetails{
		Amount:          amount,
		Currency:        obj.Currency,
		PaymentMethod:   obj.Method(),
		PaymentIntentId: intentId,
	}
	if err := e.repo.ActivateInvestment(ctx, investmentId, details, now); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			zap.L().Warn("Payment references unknown investment",
				zap.String("event_id", ev.Id),
				zap.String("investment_id", investmentId))
			return OutcomeNoop, nil
		case errors.Is(err, repository.ErrInvalidTransition):
			zap.L().Info("Investment not pending, skipping activation",
				zap.String("event_id", ev.Id),
				zap.String("investment_id", investmentId))
			return OutcomeNoop, nil
		default:
			return "", fmt.Errorf("failed to activate investment %s: %w", investmentId, err)
		}
	}

	e.settle(ctx, models.Settlement{
		EventId:         ev.Id,
		EventType:       ev.Type,
		Kind:            models.SettlementInvestment,
		UserId:          userId,
		RecordId:        investmentId,
		PaymentIntentId: intentId,
		Amount:          amount,
		Currency:        obj.Currency,
		OccurredAt:      now,
	}, repository.FieldLastInvestmentDate)

	e.record(userId, models.TxTypePayment, models.TxStatusCompleted, amount, map[string]string{
		"paymentIntentId": intentId,
		"investmentId":    investmentId,
		"paymentMethod":   obj.Method(),
	})

	zap.L().Info("Investment activated",
		zap.String("event_id", ev.Id),
		zap.String("investment_id", investmentId),
		zap.String("user_id", userId),
		zap.String("amount", amount.String()))
	return OutcomeApplied, nil
}

// handleFailed marks a linked investment failed. It never touches the summary.
func (e *Engine) handleFailed(ctx context.Context, ev payments.Event) (string, error) {
	obj, err := ev.PaymentObject()
	if err != nil {
		return "", err
	}

	userId := obj.Metadata["userId"]
	if userId == "" {
		zap.L().Warn("No userId in failed payment metadata", zap.String("event_id", ev.Id))
		return OutcomeNoop, nil
	}

	reason, code := "Unknown error", ""
	if obj.LastPaymentError != nil {
		if obj.LastPaymentError.Message != "" {
			reason = obj.LastPaymentError.Message
		}
		code = obj.LastPaymentError.Code
	}

	investmentId := obj.Metadata["investmentId"]
	if investmentId != "" {
		err := e.repo.FailInvestment(ctx, investmentId, reason, code, e.now())
		switch {
		case err == nil:
		case errors.Is(err, store.ErrNotFound), errors.Is(err, repository.ErrInvalidTransition):
			zap.L().Info("Failed payment left investment unchanged",
				zap.String("event_id", ev.Id),
				zap.String("investment_id", investmentId),
				zap.Error(err))
		default:
			return "", fmt.Errorf("failed to mark investment %s failed: %w", investmentId, err)
		}
	}

	e.record(userId, models.TxTypePayment, models.TxStatusFailed, payments.MinorToMajor(obj.Amount, obj.Currency), map[string]string{
		"paymentIntentId": obj.IntentId(),
		"investmentId":    investmentId,
		"failureReason":   reason,
		"failureCode":     code,
	})

	zap.L().Info("Payment failed",
		zap.String("event_id", ev.Id),
		zap.String("user_id", userId),
		zap.String("reason", reason))
	return OutcomeApplied, nil
}

// handleRefund reverses a refunded charge. Metadata lives on the payment
// intent, so the intent is fetched from the provider.
func (e *Engine) handleRefund(ctx context.Context, ev payments.Event) (string, error) {
	charge, err := ev.PaymentObject()
	if err != nil {
		return "", err
	}

	intentId := charge.IntentId()
	if intentId == "" {
		zap.L().Warn("No payment_intent in charge data", zap.String("event_id", ev.Id))
		return OutcomeNoop, nil
	}

	intent, err := e.provider.GetPaymentIntent(ctx, intentId)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve payment intent %s: %w", intentId, err)
	}

	userId := intent.Metadata["userId"]
	if userId == "" {
		zap.L().Warn("No userId in payment metadata",
			zap.String("event_id", ev.Id),
			zap.String("payment_intent_id", intentId))
		return OutcomeNoop, nil
	}

	amount := payments.MinorToMajor(charge.AmountRefunded, charge.Currency)
	now := e.now()

	investmentId := intent.Metadata["investmentId"]
	if investmentId != "" {
		credited, err := e.repo.RefundInvestment(ctx, investmentId, amount, now)
		switch {
		case err == nil:
			// A pending investment was never added to the summary.
			if credited {
				_, adjErr := e.repo.AdjustSummary(ctx, userId, map[string]decimal.Decimal{
					repository.FieldTotalInvested: amount.Neg(),
				}, true, nil)
				if adjErr != nil {
					zap.L().Warn("Failed to reduce invested total",
						zap.String("user_id", userId),
						zap.Error(adjErr))
				}
			}
			e.publish(ctx, models.Settlement{
				EventId:         ev.Id,
				EventType:       ev.Type,
				Kind:            models.SettlementRefund,
				UserId:          userId,
				RecordId:        investmentId,
				PaymentIntentId: intentId,
				Amount:          amount,
				Currency:        charge.Currency,
				OccurredAt:      now,
			})
		case errors.Is(err, store.ErrNotFound), errors.Is(err, repository.ErrInvalidTransition):
			zap.L().Info("Refund left investment unchanged",
				zap.String("event_id", ev.Id),
				zap.String("investment_id", investmentId),
				zap.Error(err))
		default:
			return "", fmt.Errorf("failed to refund investment %s: %w", investmentId, err)
		}
	}

	e.record(userId, models.TxTypeRefund, models.TxStatusCompleted, amount, map[string]string{
		"paymentIntentId": intentId,
		"chargeId":        charge.Id,
		"refundId":        charge.LatestRefundId(),
		"investmentId":    investmentId,
	})

	zap.L().Info("Refund processed",
		zap.String("event_id", ev.Id),
		zap.String("charge_id", charge.Id),
		zap.String("amount", amount.String()))
	return OutcomeApplied, nil
}

package api

import (
	"context"
	"fmt"

	"savium-invest-go/internal/models"

	"go.uber.org/zap"
)

const recurringInterval = 30 // days

// CreateInvestment records a pending investment awaiting payment.
func (s *Service) CreateInvestment(ctx context.Context, userId string, req models.CreateInvestmentRequest) (*models.CreateInvestmentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, validation("amount must be greater than zero")
	}

	now := s.now()
	inv := models.Investment{
		UserId:    userId,
		Amount:    req.Amount,
		Timestamp: now,
		Status:    models.InvestmentPending,
		Recurring: req.Recurring,
		Frequency: req.Frequency,
	}
	resp := &models.CreateInvestmentResponse{
		Status:          models.InvestmentPending,
		PaymentRequired: true,
	}
	if req.Recurring {
		next := now.AddDate(0, 0, recurringInterval)
		inv.NextPaymentDate = &next
		resp.NextRecurringDate = &next
	}

	inv, err := s.repo.CreateInvestment(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to create investment: %w", err)
	}
	resp.InvestmentId = inv.Id

	s.record(models.TransactionLogEntry{
		UserId: userId,
		Type:   models.TxTypeInvestment,
		Amount: req.Amount,
		Status: models.TxStatusPending,
		Metadata: map[string]string{
			"investmentId": inv.Id,
			"recurring":    fmt.Sprintf("%t", req.Recurring),
		},
	})

	zap.L().Info("Investment created",
		zap.String("user_id", userId),
		zap.String("investment_id", inv.Id),
		zap.String("amount", req.Amount.String()),
		zap.Bool("recurring", req.Recurring))
	return resp, nil
}

// ListInvestments returns the user's investments with accrued values.
func (s *Service) ListInvestments(ctx context.Context, userId string) ([]models.InvestmentView, error) {
	return s.portfolio.ListInvestments(ctx, userId)
}

package api

import (
	"context"
	"fmt"
	"strings"

	"savium-invest-go/internal/models"

	"go.uber.org/zap"
)

const estimatedProcessingTime = "3-5 business days"

// RequestWithdrawal records a pending withdrawal if the current portfolio
// value covers it.
func (s *Service) RequestWithdrawal(ctx context.Context, userId string, req models.WithdrawalRequest) (*models.WithdrawalResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, validation("amount must be greater than zero")
	}
	accountId := strings.TrimSpace(req.AccountId)
	if accountId == "" {
		return nil, validation("account_id is required")
	}

	p, err := s.portfolio.GetPortfolio(ctx, userId)
	if err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(p.CurrentValue) {
		zap.L().Info("Withdrawal exceeds portfolio value",
			zap.String("user_id", userId),
			zap.String("amount", req.Amount.String()),
			zap.String("current_value", p.CurrentValue.String()))
		return nil, fmt.Errorf("%w: available %s", ErrInsufficientFunds, p.CurrentValue.StringFixed(2))
	}

	w, err := s.repo.CreateWithdrawal(ctx, models.Withdrawal{
		UserId:      userId,
		Amount:      req.Amount,
		AccountId:   accountId,
		RequestedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record withdrawal: %w", err)
	}

	s.record(models.TransactionLogEntry{
		UserId:   userId,
		Type:     models.TxTypeWithdrawal,
		Amount:   req.Amount,
		Status:   models.TxStatusPending,
		Metadata: map[string]string{"withdrawalId": w.Id, "accountId": accountId},
	})

	zap.L().Info("Withdrawal requested",
		zap.String("user_id", userId),
		zap.String("withdrawal_id", w.Id),
		zap.String("amount", req.Amount.String()))
	return &models.WithdrawalResponse{
		Status:                  models.WithdrawalPending,
		WithdrawalId:            w.Id,
		EstimatedProcessingTime: estimatedProcessingTime,
	}, nil
}

// AdvanceWithdrawal moves a withdrawal along its lifecycle for operators.
func (s *Service) AdvanceWithdrawal(ctx context.Context, withdrawalId, to string) (*models.Withdrawal, error) {
	w, err := s.repo.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, notFound(err, "withdrawal "+withdrawalId)
	}
	if err := s.repo.TransitionWithdrawal(ctx, withdrawalId, to); err != nil {
		return nil, fmt.Errorf("failed to move withdrawal %s to %s: %w", withdrawalId, to, err)
	}

	status := models.TxStatusPending
	switch to {
	case models.WithdrawalCompleted:
		status = models.TxStatusCompleted
	case models.WithdrawalRejected:
		status = models.TxStatusFailed
	}
	s.record(models.TransactionLogEntry{
		UserId:   w.UserId,
		Type:     models.TxTypeWithdrawal,
		Amount:   w.Amount,
		Status:   status,
		Metadata: map[string]string{"withdrawalId": w.Id, "withdrawalStatus": to},
	})

	zap.L().Info("Withdrawal status changed",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("from", w.Status),
		zap.String("to", to))
	return s.repo.GetWithdrawal(ctx, withdrawalId)
}

package api

import (
	"context"
	"fmt"
	"strings"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"

	"go.uber.org/zap"
)

const (
	minDepositMinor = 10000
	minIntentMinor  = 100
)

// CreatePaymentIntent opens a provider payment, optionally linked to a
// pending investment of the same user.
func (s *Service) CreatePaymentIntent(ctx context.Context, userId, email string, req models.PaymentIntentRequest) (*models.PaymentIntentResponse, error) {
	if req.Amount < minIntentMinor {
		return nil, validation("amount must be at least %d", minIntentMinor)
	}

	metadata := map[string]string{"userId": userId}
	if email != "" {
		metadata["email"] = email
	}
	if req.InvestmentId != "" {
		inv, err := s.repo.GetInvestment(ctx, req.InvestmentId)
		if err != nil {
			return nil, notFound(err, "investment "+req.InvestmentId)
		}
		if inv.UserId != userId {
			return nil, fmt.Errorf("%w: investment %s", ErrNotFound, req.InvestmentId)
		}
		metadata["investmentId"] = inv.Id
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, payments.IntentParams{
		Amount:       req.Amount,
		Currency:     s.currencyOr(req.Currency),
		Description:  req.Description,
		ReceiptEmail: email,
		Metadata:     metadata,
	})
	if err != nil {
		zap.L().Error("Failed to create payment intent",
			zap.String("user_id", userId),
			zap.Int64("amount", req.Amount),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	zap.L().Info("Payment intent created",
		zap.String("user_id", userId),
		zap.String("payment_intent_id", intent.Id),
		zap.String("investment_id", req.InvestmentId))
	return &models.PaymentIntentResponse{ClientSecret: intent.ClientSecret, PaymentIntentId: intent.Id}, nil
}

// CreateDeposit opens a provider payment tagged as an account top-up and
// records the pending deposit it will settle.
func (s *Service) CreateDeposit(ctx context.Context, userId, email string, req models.DepositRequest) (*models.PaymentIntentResponse, error) {
	currency := s.currencyOr(req.Currency)
	if req.Amount < minDepositMinor {
		return nil, validation("minimum deposit is %s", payments.MinorToMajor(minDepositMinor, currency).StringFixed(int32(payments.CurrencyExponent(currency))))
	}
	description := req.Description
	if description == "" {
		description = "Account deposit"
	}

	intent, err := s.provider.CreatePaymentIntent(ctx, payments.IntentParams{
		Amount:       req.Amount,
		Currency:     currency,
		Description:  description,
		ReceiptEmail: email,
		Metadata: map[string]string{
			"userId":  userId,
			"purpose": models.PurposeAccountDeposit,
		},
	})
	if err != nil {
		zap.L().Error("Failed to create deposit payment intent",
			zap.String("user_id", userId),
			zap.Int64("amount", req.Amount),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	dep, err := s.repo.CreateDeposit(ctx, models.Deposit{
		UserId:          userId,
		Amount:          payments.MinorToMajor(req.Amount, currency),
		Currency:        currency,
		Status:          models.DepositPending,
		PaymentIntentId: intent.Id,
		Description:     description,
		CreatedAt:       s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	zap.L().Info("Deposit initiated",
		zap.String("user_id", userId),
		zap.String("deposit_id", dep.Id),
		zap.String("payment_intent_id", intent.Id),
		zap.String("amount", dep.Amount.String()))
	return &models.PaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentId: intent.Id,
		DepositId:       dep.Id,
	}, nil
}

func (s *Service) currencyOr(currency string) string {
	if c := strings.ToLower(strings.TrimSpace(currency)); c != "" {
		return c
	}
	return s.currency
}

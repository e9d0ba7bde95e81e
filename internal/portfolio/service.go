// Package portfolio values a user's investments with the accrual model and
// keeps the cached summary on the user profile in step.
package portfolio

import (
	"context"
	"fmt"
	"time"

	"savium-invest-go/internal/accrual"
	"savium-invest-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Clock returns the current time
type Clock func() time.Time

// InvestmentStore is the subset of the repository the service reads and writes
type InvestmentStore interface {
	ListInvestments(ctx context.Context, userId string) ([]models.Investment, error)
	WriteSummary(ctx context.Context, userId string, invested, returns, value decimal.Decimal) error
}

type Service struct {
	store InvestmentStore
	now   Clock
}

func NewService(store InvestmentStore, clock Clock) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: store, now: clock}
}

// totals holds unrounded sums
type totals struct {
	invested decimal.Decimal
	returns  decimal.Decimal
}

// accrualEnd is the instant an investment stops earning. Cancelled
// investments stop at their cancellation time.
func accrualEnd(inv models.Investment, now time.Time) time.Time {
	if inv.Status == models.InvestmentCancelled && inv.CancelledAt != nil && inv.CancelledAt.Before(now) {
		return *inv.CancelledAt
	}
	return now
}

func (s *Service) compute(ctx context.Context, userId string) (totals, error) {
	investments, err := s.store.ListInvestments(ctx, userId)
	if err != nil {
		return totals{}, fmt.Errorf("failed to list investments for %s: %w", userId, err)
	}

	now := s.now()
	t := totals{invested: decimal.Zero, returns: decimal.Zero}
	for _, inv := range investments {
		days := accrual.ElapsedDays(inv.Timestamp, accrualEnd(inv, now))
		t.invested = t.invested.Add(inv.Amount)
		t.returns = t.returns.Add(accrual.Accrue(inv.Amount, days, accrual.DailyRate))
	}
	return t, nil
}

// GetPortfolio values every investment the user holds. Figures are rounded
// to two decimals only here.
func (s *Service) GetPortfolio(ctx context.Context, userId string) (models.Portfolio, error) {
	t, err := s.compute(ctx, userId)
	if err != nil {
		return models.Portfolio{}, err
	}
	return present(t), nil
}

func present(t totals) models.Portfolio {
	pct := decimal.Zero
	if t.invested.IsPositive() {
		pct = t.returns.Div(t.invested).Mul(decimal.NewFromInt(100))
	}
	return models.Portfolio{
		TotalInvested:    accrual.RoundCurrency(t.invested),
		CurrentValue:     accrual.RoundCurrency(t.invested.Add(t.returns)),
		TotalReturns:     accrual.RoundCurrency(t.returns),
		ReturnPercentage: accrual.RoundCurrency(pct),
		AnnualRate:       accrual.RoundCurrency(accrual.AnnualRatePercent()),
	}
}

// RefreshSummary recomputes the portfolio and writes it back to the user's
// cached summary. The recomputed figures are authoritative.
func (s *Service) RefreshSummary(ctx context.Context, userId string) (models.Portfolio, error) {
	p, err := s.GetPortfolio(ctx, userId)
	if err != nil {
		return models.Portfolio{}, err
	}
	if err := s.store.WriteSummary(ctx, userId, p.TotalInvested, p.TotalReturns, p.CurrentValue); err != nil {
		return models.Portfolio{}, fmt.Errorf("failed to refresh summary for %s: %w", userId, err)
	}
	zap.L().Debug("Portfolio summary refreshed",
		zap.String("user_id", userId),
		zap.String("current_value", p.CurrentValue.String()))
	return p, nil
}

// ListInvestments returns each investment with its accrued value.
func (s *Service) ListInvestments(ctx context.Context, userId string) ([]models.InvestmentView, error) {
	investments, err := s.store.ListInvestments(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments for %s: %w", userId, err)
	}

	now := s.now()
	views := make([]models.InvestmentView, 0, len(investments))
	for _, inv := range investments {
		days := accrual.ElapsedDays(inv.Timestamp, accrualEnd(inv, now))
		returns := accrual.Accrue(inv.Amount, days, accrual.DailyRate)
		views = append(views, models.InvestmentView{
			Investment:   inv,
			CurrentValue: accrual.RoundCurrency(inv.Amount.Add(returns)),
			Returns:      accrual.RoundCurrency(returns),
			DaysInvested: days,
		})
	}
	return views, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/store"

	"github.com/shopspring/decimal"
)

// Summary field paths inside a user document
const (
	FieldTotalInvested      = "financialInfo.totalInvested"
	FieldTotalReturns       = "financialInfo.totalReturns"
	FieldPortfolioValue     = "financialInfo.portfolioValue"
	FieldAccountConnected   = "financialInfo.accountConnected"
	FieldLastDepositDate    = "financialInfo.lastDepositDate"
	FieldLastInvestmentDate = "financialInfo.lastInvestmentDate"
)

func (r *Repository) GetUser(ctx context.Context, userId string) (*models.User, error) {
	doc, err := r.store.Get(ctx, store.CollectionUsers, userId)
	if err != nil {
		return nil, err
	}
	u, err := decode[models.User](*doc)
	if err != nil {
		return nil, err
	}
	u.Id = doc.Id
	return &u, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]models.User, error) {
	docs, err := r.store.Query(ctx, store.CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("unable to list users: %w", err)
	}
	users, err := decodeAll[models.User](docs)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Id = docs[i].Id
	}
	return users, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	docs, err := r.store.Query(ctx, store.CollectionUsers, store.Where("email", email))
	if err != nil {
		return nil, fmt.Errorf("unable to find user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: user with email %s", store.ErrNotFound, email)
	}
	u, err := decode[models.User](docs[0])
	if err != nil {
		return nil, err
	}
	u.Id = docs[0].Id
	return &u, nil
}

// UpsertUser creates a profile with a zeroed summary, or records a login
// for an existing one. The returned bool reports whether it was created.
func (r *Repository) UpsertUser(ctx context.Context, userId, email, name string) (*models.User, bool, error) {
	now := r.timeNow()
	user := models.User{
		Id:            userId,
		Email:         email,
		Name:          name,
		AccountStatus: "active",
		CreatedAt:     now,
		LastLogin:     &now,
		FinancialInfo: models.FinancialSummary{
			TotalInvested:  decimal.Zero,
			TotalReturns:   decimal.Zero,
			PortfolioValue: decimal.Zero,
		},
	}
	err := r.store.Create(ctx, store.CollectionUsers, userId, user)
	if err == nil {
		return &user, true, nil
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		return nil, false, fmt.Errorf("unable to create user: %w", err)
	}

	if err := r.store.Update(ctx, store.CollectionUsers, userId, map[string]any{"lastLogin": now}); err != nil {
		return nil, false, fmt.Errorf("unable to record login: %w", err)
	}
	existing, err := r.GetUser(ctx, userId)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// AdjustSummary atomically applies deltas to the user's summary. Negative
// results are clamped at zero when floorAtZero is set.
func (r *Repository) AdjustSummary(ctx context.Context, userId string, deltas map[string]decimal.Decimal, floorAtZero bool, extra map[string]any) (map[string]decimal.Decimal, error) {
	values, err := r.store.Increment(ctx, store.CollectionUsers, userId, deltas, floorAtZero, extra)
	if err != nil {
		return nil, fmt.Errorf("unable to adjust summary for %s: %w", userId, err)
	}
	return values, nil
}

// RecordSettlement adds a settled amount to invested principal and portfolio value.
func (r *Repository) RecordSettlement(ctx context.Context, userId string, amount decimal.Decimal, dateField string, at time.Time) error {
	extra := map[string]any{dateField: at}
	if dateField == FieldLastDepositDate {
		extra[FieldAccountConnected] = true
	}
	_, err := r.AdjustSummary(ctx, userId, map[string]decimal.Decimal{
		FieldTotalInvested:  amount,
		FieldPortfolioValue: amount,
	}, false, extra)
	return err
}

// WriteSummary overwrites the cached valuation figures.
func (r *Repository) WriteSummary(ctx context.Context, userId string, invested, returns, value decimal.Decimal) error {
	return r.store.Update(ctx, store.CollectionUsers, userId, map[string]any{
		FieldTotalInvested:  invested,
		FieldTotalReturns:   returns,
		FieldPortfolioValue: value,
	})
}

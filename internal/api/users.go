package api

import (
	"context"
	"fmt"
	"strings"

	"savium-invest-go/internal/models"

	"go.uber.org/zap"
)

// CreateUser creates a profile for the authenticated user, or records a
// login when it already exists.
func (s *Service) CreateUser(ctx context.Context, userId, email, name string) (*models.User, error) {
	if userId == "" {
		return nil, validation("user id is required")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, validation("email is required")
	}

	user, created, err := s.repo.UpsertUser(ctx, userId, email, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if created {
		zap.L().Info("User created", zap.String("user_id", userId), zap.String("email", email))
	} else {
		zap.L().Debug("User login recorded", zap.String("user_id", userId))
	}
	return user, nil
}

// GetProfile returns the user document with a freshly computed portfolio.
// The cached summary is refreshed as a side effect.
func (s *Service) GetProfile(ctx context.Context, userId string) (*models.UserProfile, error) {
	if _, err := s.repo.GetUser(ctx, userId); err != nil {
		return nil, notFound(err, "user "+userId)
	}
	p, err := s.portfolio.RefreshSummary(ctx, userId)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, userId)
	if err != nil {
		return nil, notFound(err, "user "+userId)
	}
	return &models.UserProfile{User: *user, Portfolio: p}, nil
}

// GetPortfolio refreshes and returns the user's portfolio.
func (s *Service) GetPortfolio(ctx context.Context, userId string) (models.Portfolio, error) {
	if _, err := s.repo.GetUser(ctx, userId); err != nil {
		return models.Portfolio{}, notFound(err, "user "+userId)
	}
	return s.portfolio.RefreshSummary(ctx, userId)
}

// ListTransactions returns the user's transaction log, newest first.
func (s *Service) ListTransactions(ctx context.Context, userId string) ([]models.TransactionLogEntry, error) {
	entries, err := s.repo.ListTransactions(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if entries == nil {
		entries = []models.TransactionLogEntry{}
	}
	return entries, nil
}

/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"savium-invest-go/internal/models"
	"savium-invest-go/internal/payments"
	"savium-invest-go/internal/portfolio"
	"savium-invest-go/internal/repository"
	"savium-invest-go/internal/store"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

const defaultCurrency = "inr"

// AuditSubmitter accepts transaction log entries without blocking
type AuditSubmitter interface {
	Submit(entry models.TransactionLogEntry)
}

// Config contains the collaborators the application service needs
type Config struct {
	Repository      *repository.Repository
	Portfolio       *portfolio.Service
	Provider        payments.Provider
	Audit           AuditSubmitter
	DefaultCurrency string
	Clock           func() time.Time
}

// Service implements the user-facing operations behind the HTTP API
type Service struct {
	repo      *repository.Repository
	portfolio *portfolio.Service
	provider  payments.Provider
	audit     AuditSubmitter
	currency  string
	now       func() time.Time
}

func NewService(cfg Config) *Service {
	currency := cfg.DefaultCurrency
	if currency == "" {
		currency = defaultCurrency
	}
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		repo:      cfg.Repository,
		portfolio: cfg.Portfolio,
		provider:  cfg.Provider,
		audit:     cfg.Audit,
		currency:  currency,
		now:       now,
	}
}

func (s *Service) HealthCheck(ctx context.Context) error {
	if _, err := s.repo.ListUsers(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *Service) record(entry models.TransactionLogEntry) {
	if s.audit == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	s.audit.Submit(entry)
}

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound maps a store miss to ErrNotFound, passing other errors through.
func notFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

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

package main

import (
	"context"
	"flag"
	"fmt"

	"savium-invest-go/internal/common"
	"savium-invest-go/internal/config"
	"savium-invest-go/internal/formance"
	"savium-invest-go/internal/models"
	"savium-invest-go/internal/portfolio"
	"savium-invest-go/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type portfolioStats struct {
	totalUsers      int
	usersInvested   int
	totalInvested   decimal.Decimal
	totalValue      decimal.Decimal
	totalInvestment int
}

func formatId(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func printInvestment(view models.InvestmentView, currency string, isLast bool) {
	kind := "one-time"
	if view.Recurring {
		kind = "recurring"
	}
	fmt.Printf("%s %-11s %-10s %-9s principal: %18s  value: %18s  (%d days)\n",
		common.BoxPrefix(isLast),
		formatId(view.Id),
		view.Status,
		kind,
		common.FormatMoney(view.Amount, currency),
		common.FormatMoney(view.CurrentValue, currency),
		view.DaysInvested)
}

func printUserHeader(user common.UserInfo, p models.Portfolio, currency string) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s  Status: %s\n", user.Id, user.AccountStatus)
	fmt.Printf("│  Invested: %s  Value: %s  Returns: %s (%s)\n",
		common.FormatMoney(p.TotalInvested, currency),
		common.FormatMoney(p.CurrentValue, currency),
		common.FormatMoney(p.TotalReturns, currency),
		common.FormatPercent(p.ReturnPercentage))
	common.PrintBoxSeparator(78)
}

func printLedgerBalance(ctx context.Context, mirror *formance.Service, userId, currency string, logger *zap.Logger) {
	balance, err := mirror.InvestedBalance(ctx, userId, currency)
	if err != nil {
		logger.Warn("Failed to read ledger balance", zap.String("user_id", userId), zap.Error(err))
		return
	}
	fmt.Printf("│  Ledger invested balance: %s\n", common.FormatMoney(balance, currency))

	entries, err := mirror.ListSettlements(ctx, userId, 5)
	if err != nil {
		logger.Warn("Failed to list ledger settlements", zap.String("user_id", userId), zap.Error(err))
		return
	}
	for _, e := range entries {
		fmt.Printf("│    %s %-24s %s %s\n", e.Timestamp.Format("2006-01-02"), e.Kind, common.FormatMoney(e.Amount, currency), e.Reference)
	}
}

func processUser(ctx context.Context, user common.UserInfo, svc *portfolio.Service, repo *repository.Repository, mirror *formance.Service, refresh bool, currency string, logger *zap.Logger) (models.Portfolio, int, error) {
	if refresh {
		if _, err := svc.RefreshSummary(ctx, user.Id); err != nil {
			return models.Portfolio{}, 0, fmt.Errorf("failed to refresh summary: %w", err)
		}
	}

	p, err := svc.GetPortfolio(ctx, user.Id)
	if err != nil {
		return models.Portfolio{}, 0, fmt.Errorf("failed to compute portfolio: %w", err)
	}
	views, err := svc.ListInvestments(ctx, user.Id)
	if err != nil {
		return models.Portfolio{}, 0, fmt.Errorf("failed to list investments: %w", err)
	}
	if len(views) == 0 {
		return p, 0, nil
	}

	printUserHeader(user, p, currency)
	if mirror != nil {
		printLedgerBalance(ctx, mirror, user.Id, currency, logger)
	}
	for i, view := range views {
		printInvestment(view, currency, i == len(views)-1)
	}

	if withdrawals, err := repo.ListWithdrawals(ctx, user.Id); err == nil && len(withdrawals) > 0 {
		fmt.Printf("   Withdrawals: %d\n", len(withdrawals))
	}

	return p, len(views), nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	refresh := flag.Bool("refresh", false, "Write the recomputed summary back to each user document")
	ledgerFlag := flag.Bool("ledger", false, "Also show balances from the Formance settlement mirror")
	flag.Parse()

	logger.Info("Starting portfolio report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, repo, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var mirror *formance.Service
	if *ledgerFlag {
		mirror, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			logger.Fatal("Failed to connect to settlement mirror", zap.Error(err))
		}
		defer mirror.Close()
	}

	users, err := common.InitializeUsers(ctx, repo, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize users", zap.Error(err))
	}

	svc := portfolio.NewService(repo, nil)
	currency := cfg.Payments.DefaultCurrency

	common.PrintHeader("PORTFOLIO REPORT", common.WideWidth)

	stats := portfolioStats{}
	for _, user := range users {
		stats.totalUsers++
		p, count, err := processUser(ctx, user, svc, repo, mirror, *refresh, currency, logger)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}
		if count > 0 {
			stats.usersInvested++
			stats.totalInvestment += count
			stats.totalInvested = stats.totalInvested.Add(p.TotalInvested)
			stats.totalValue = stats.totalValue.Add(p.CurrentValue)
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d of %d users invested, %d investments, %s invested, %s current value",
		stats.usersInvested, stats.totalUsers, stats.totalInvestment,
		common.FormatMoney(stats.totalInvested, currency),
		common.FormatMoney(stats.totalValue, currency))
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Portfolio report completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_invested", stats.usersInvested),
		zap.Int("investments", stats.totalInvestment))
}

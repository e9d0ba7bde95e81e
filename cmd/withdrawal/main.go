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
	"errors"
	"flag"
	"fmt"
	"strings"

	"savium-invest-go/internal/common"
	"savium-invest-go/internal/config"
	"savium-invest-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalRequest struct {
	email     string
	amount    decimal.Decimal
	accountId string

	withdrawalId string
	status       string
}

var validStatuses = []string{models.WithdrawalProcessing, models.WithdrawalCompleted, models.WithdrawalRejected}

func parseAndValidateFlags() (*withdrawalRequest, error) {
	emailFlag := flag.String("email", "", "User email (request mode)")
	amountFlag := flag.String("amount", "", "Amount to withdraw (request mode)")
	accountFlag := flag.String("account", "", "Destination account id (request mode)")
	idFlag := flag.String("id", "", "Withdrawal id (advance mode)")
	statusFlag := flag.String("status", "", "New status: processing, completed, or rejected (advance mode)")
	flag.Parse()

	req := &withdrawalRequest{
		email:        strings.TrimSpace(*emailFlag),
		accountId:    strings.TrimSpace(*accountFlag),
		withdrawalId: strings.TrimSpace(*idFlag),
		status:       strings.ToLower(strings.TrimSpace(*statusFlag)),
	}

	if req.withdrawalId != "" {
		for _, s := range validStatuses {
			if req.status == s {
				return req, nil
			}
		}
		return nil, fmt.Errorf("--status must be one of %s", strings.Join(validStatuses, ", "))
	}

	if req.email == "" || *amountFlag == "" || req.accountId == "" {
		return nil, errors.New("either --id and --status, or --email, --amount and --account are required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", *amountFlag, err)
	}
	if !amount.IsPositive() {
		return nil, errors.New("amount must be greater than zero")
	}
	req.amount = amount
	return req, nil
}

func printWithdrawal(w *models.Withdrawal, currency string) {
	fmt.Printf("Withdrawal:  %s\n", w.Id)
	fmt.Printf("User:        %s\n", w.UserId)
	fmt.Printf("Amount:      %s\n", common.FormatMoney(w.Amount, currency))
	fmt.Printf("Account:     %s\n", w.AccountId)
	fmt.Printf("Status:      %s\n", w.Status)
	fmt.Printf("Requested:   %s\n", w.RequestedAt.Format("2006-01-02 15:04:05"))
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	currency := cfg.Payments.DefaultCurrency

	if req.withdrawalId != "" {
		w, err := services.API.AdvanceWithdrawal(ctx, req.withdrawalId, req.status)
		if err != nil {
			zap.L().Fatal("Failed to update withdrawal", zap.Error(err))
		}
		common.PrintHeader("WITHDRAWAL UPDATED", common.DefaultWidth)
		printWithdrawal(w, currency)
		common.PrintSeparator("=", common.DefaultWidth)
		return
	}

	user, err := services.Repository.GetUserByEmail(ctx, req.email)
	if err != nil {
		zap.L().Fatal("User not found", zap.String("email", req.email), zap.Error(err))
	}

	resp, err := services.API.RequestWithdrawal(ctx, user.Id, models.WithdrawalRequest{
		Amount:    req.amount,
		AccountId: req.accountId,
	})
	if err != nil {
		zap.L().Fatal("Withdrawal rejected", zap.Error(err))
	}

	w, err := services.Repository.GetWithdrawal(ctx, resp.WithdrawalId)
	if err != nil {
		zap.L().Fatal("Failed to read withdrawal", zap.Error(err))
	}
	common.PrintHeader("WITHDRAWAL REQUESTED", common.DefaultWidth)
	printWithdrawal(w, currency)
	fmt.Printf("Estimated:   %s\n", resp.EstimatedProcessingTime)
	common.PrintSeparator("=", common.DefaultWidth)
}

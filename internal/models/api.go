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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the computed valuation of a user's investments, rounded for display
type Portfolio struct {
	TotalInvested    decimal.Decimal `json:"total_invested"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	TotalReturns     decimal.Decimal `json:"total_returns"`
	ReturnPercentage decimal.Decimal `json:"return_percentage"`
	AnnualRate       decimal.Decimal `json:"annual_rate"`
}

// InvestmentView is an investment with its accrued value as of now
type InvestmentView struct {
	Investment
	CurrentValue decimal.Decimal `json:"currentValue"`
	Returns      decimal.Decimal `json:"returns"`
	DaysInvested int             `json:"daysInvested"`
}

// UserProfile is a user document with its refreshed portfolio
type UserProfile struct {
	User
	Portfolio Portfolio `json:"portfolio"`
}

// CreateUserRequest creates or touches a user profile
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CreateInvestmentRequest places a new investment
type CreateInvestmentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Recurring bool            `json:"recurring"`
	Frequency string          `json:"frequency"`
}

// CreateInvestmentResponse is returned after a pending investment is recorded
type CreateInvestmentResponse struct {
	InvestmentId      string     `json:"investmentId"`
	Status            string     `json:"status"`
	PaymentRequired   bool       `json:"paymentRequired"`
	NextRecurringDate *time.Time `json:"nextRecurringDate,omitempty"`
}

// WithdrawalRequest asks for funds to be moved out
type WithdrawalRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	AccountId string          `json:"account_id"`
}

// WithdrawalResponse is returned after a pending withdrawal is recorded
type WithdrawalResponse struct {
	Status                  string `json:"status"`
	WithdrawalId            string `json:"withdrawalId"`
	EstimatedProcessingTime string `json:"estimatedProcessingTime"`
}

// DepositRequest initiates an account top-up, amount in minor units
type DepositRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
}

// PaymentIntentRequest creates a payment intent, amount in minor units
type PaymentIntentRequest struct {
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Description  string `json:"description"`
	InvestmentId string `json:"investmentId,omitempty"`
}

// PaymentIntentResponse hands the client what it needs to confirm payment
type PaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentId string `json:"paymentIntentId"`
	DepositId       string `json:"depositId,omitempty"`
}

// WebhookResponse is the body returned to the payment provider
type WebhookResponse struct {
	Status    string `json:"status"`
	EventType string `json:"eventType,omitempty"`
	Message   string `json:"message,omitempty"`
}

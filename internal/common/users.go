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

package common

import (
	"context"
	"fmt"

	"savium-invest-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id            string
	Name          string
	Email         string
	AccountStatus string
	TotalInvested decimal.Decimal
}

func toUserInfo(u models.User) UserInfo {
	return UserInfo{
		Id:            u.Id,
		Name:          u.Name,
		Email:         u.Email,
		AccountStatus: u.AccountStatus,
		TotalInvested: u.FinancialInfo.TotalInvested,
	}
}

// UserDirectory looks up user profiles
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// InitializeUsers retrieves users based on an optional email filter.
// If emailFilter is provided, returns a single user with that email.
// If emailFilter is empty, returns all users.
func InitializeUsers(ctx context.Context, users UserDirectory, emailFilter string, logger *zap.Logger) ([]UserInfo, error) {
	var infos []UserInfo

	if emailFilter != "" {
		logger.Info("Looking up user by email", zap.String("email", emailFilter))
		user, err := users.GetUserByEmail(ctx, emailFilter)
		if err != nil {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		infos = append(infos, toUserInfo(*user))
	} else {
		allUsers, err := users.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get users: %w", err)
		}
		for _, u := range allUsers {
			infos = append(infos, toUserInfo(u))
		}
	}

	logger.Info("Retrieved users", zap.Int("count", len(infos)))
	return infos, nil
}

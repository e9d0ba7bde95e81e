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
	"savium-invest-go/internal/repository"

	"go.uber.org/zap"
)

func printUsers(ctx context.Context, repo *repository.Repository) {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		zap.L().Error("Failed to list users", zap.Error(err))
		return
	}
	for i, u := range users {
		fmt.Printf("%s %-38s %-30s %s\n", common.BoxPrefix(i == len(users)-1), u.Id, u.Email, u.Name)
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	initFlag := flag.Bool("init", false, "Initialize the database schema")
	usersFlag := flag.String("users", "", "YAML file of users to seed (default: SEED_USERS_FILE when -init is set)")
	flag.Parse()

	if !*initFlag && *usersFlag == "" {
		fmt.Println("Usage:")
		fmt.Println("  setup -init                 create the schema (and dummy users when CREATE_DUMMY_USERS=true)")
		fmt.Println("  setup -init -users seed.yaml create the schema and seed users")
		fmt.Println("  setup -users seed.yaml       seed users into an existing database")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Opening database", zap.String("path", cfg.Database.Path))
	dbService, repo, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	common.PrintHeader("DATABASE SETUP", common.DefaultWidth)
	fmt.Printf("Database: %s\n", cfg.Database.Path)

	seedFile := *usersFlag
	if seedFile == "" && *initFlag && cfg.Database.SeedUsersFile != "" {
		seedFile = cfg.Database.SeedUsersFile
	}

	if seedFile != "" {
		users, err := common.LoadSeedUsers(seedFile)
		if err != nil {
			if *usersFlag != "" {
				zap.L().Fatal("Failed to load seed users", zap.Error(err))
			}
			zap.L().Info("No seed users loaded", zap.String("file", seedFile), zap.Error(err))
		} else {
			created, err := common.SeedUsers(ctx, repo, users)
			if err != nil {
				zap.L().Fatal("Failed to seed users", zap.Error(err))
			}
			fmt.Printf("Seeded %d users (%d new) from %s\n", len(users), created, seedFile)
		}
	}

	common.PrintBoxSeparator(78)
	printUsers(ctx, repo)
	common.PrintFooter("Setup complete", common.DefaultWidth)
}

/**
 * Copyright 2024-present SudoPay
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

	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/common"
	"github.com/stanleyjzheng/sudopay/internal/config"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	telegramIDFlag := flag.Int64("telegram-id", 0, "User's telegram chat id (required)")
	passwordFlag := flag.String("password", "", "Optional password for withdrawal confirmation")
	flag.Parse()

	if *telegramIDFlag == 0 {
		zap.L().Fatal("Flag --telegram-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	wallet, err := common.GenerateWallet()
	if err != nil {
		zap.L().Fatal("Failed to generate wallet", zap.Error(err))
	}

	user, err := dbService.CreateUser(ctx, *telegramIDFlag, wallet.Mnemonic, wallet.Address)
	if err != nil {
		zap.L().Fatal("Failed to create user", zap.Error(err))
	}

	if *passwordFlag != "" {
		if err := dbService.SetUserPassword(ctx, user.TelegramID, *passwordFlag); err != nil {
			zap.L().Fatal("Failed to set password", zap.Error(err))
		}
	}

	if _, err := dbService.CreateBalance(ctx, user.SeedPhrasePublicKey); err != nil {
		zap.L().Fatal("Failed to create balance row", zap.Error(err))
	}

	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("Telegram ID: %d\n", user.TelegramID)
	fmt.Printf("Address:     %s\n", user.SeedPhrasePublicKey)
	fmt.Printf("Seed phrase: %s\n", user.SeedPhrase)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.Int64("telegram_id", user.TelegramID))
}

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

package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/models"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

// Compile-time check: *Service must satisfy store.Ledger.
var _ store.Ledger = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) InitSchema() error {
	schema := `
	-- Registered wallet users. telegram_id is the chat identity, the seed
	-- phrase public key is the internal account key.
	CREATE TABLE IF NOT EXISTS users (
		telegram_id INTEGER PRIMARY KEY,
		salted_password TEXT,
		seed_phrase TEXT NOT NULL,
		seed_phrase_public_key TEXT NOT NULL UNIQUE
	);

	CREATE INDEX IF NOT EXISTS idx_users_public_key ON users(seed_phrase_public_key);

	-- Every transfer ever observed landing on the custodial address.
	-- Append-only; matched is the single mutable column.
	CREATE TABLE IF NOT EXISTS deposits (
		transaction_id TEXT PRIMARY KEY,
		from_address TEXT NOT NULL,
		asset TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		matched BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_matched ON deposits(matched);
	CREATE INDEX IF NOT EXISTS idx_deposits_created_at ON deposits(created_at);

	-- User-declared deposit intents. Exactly one of unit_amount/from_address
	-- is populated; stale requests are never deleted, only aged out of the
	-- matching window.
	CREATE TABLE IF NOT EXISTS deposit_requests (
		id TEXT PRIMARY KEY,
		depositor_public_key TEXT NOT NULL,
		asset TEXT NOT NULL,
		unit_amount NUMERIC,
		from_address TEXT,
		matched_transaction_id TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposit_requests_from_address ON deposit_requests(from_address, asset, created_at);
	CREATE INDEX IF NOT EXISTS idx_deposit_requests_unit_amount ON deposit_requests(unit_amount, asset, created_at);

	-- One balance row per user. ETH and WETH settle into eth_balance.
	CREATE TABLE IF NOT EXISTS balances (
		seed_phrase_public_key TEXT PRIMARY KEY,
		usdb_balance NUMERIC NOT NULL DEFAULT 0,
		eth_balance NUMERIC NOT NULL DEFAULT 0,
		accrued_yield_balance NUMERIC NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

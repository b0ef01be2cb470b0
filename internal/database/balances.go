package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/models"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

// Yield accrues continuously against the eth bucket.
// TODO: source the rate from the yield contract instead of a constant.
var (
	dailyYield     = decimal.RequireFromString("0.000094")
	secondsPerDay  = decimal.NewFromInt(86400)
	yieldPerSecond = dailyYield.Div(secondsPerDay)
)

// CreateBalance creates the balance row for an account. Creation is
// idempotent: a conflict is a no-op and the existing row is returned.
func (s *Service) CreateBalance(ctx context.Context, accountKey string) (*models.Balance, error) {
	if accountKey == "" {
		return nil, fmt.Errorf("account key cannot be empty")
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, queryInsertBalance, accountKey, now, now); err != nil {
		return nil, fmt.Errorf("failed to create balance: %w", err)
	}
	return s.GetBalance(ctx, accountKey)
}

// GetBalance returns the balance row for an account.
func (s *Service) GetBalance(ctx context.Context, accountKey string) (*models.Balance, error) {
	balance, err := scanBalance(s.db.QueryRowContext(ctx, queryGetBalance, accountKey))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("balance for %s: %w", accountKey, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Credit adds amount (smallest on-chain unit) to the account's bucket for
// the asset.
func (s *Service) Credit(ctx context.Context, accountKey string, amount decimal.Decimal, asset assets.Asset) error {
	if !amount.IsPositive() {
		return fmt.Errorf("credit amount must be positive, got %s", amount.String())
	}
	return s.applyBalanceChange(ctx, accountKey, amount, asset)
}

// Debit subtracts amount from the account's bucket for the asset. The
// pre-check inside the transaction is advisory; the authoritative guard is
// the conditional update, which fails with zero rows affected if a
// concurrent mutation raced past the check.
func (s *Service) Debit(ctx context.Context, accountKey string, amount decimal.Decimal, asset assets.Asset) error {
	if !amount.IsPositive() {
		return fmt.Errorf("debit amount must be positive, got %s", amount.String())
	}
	return s.applyBalanceChange(ctx, accountKey, amount.Neg(), asset)
}

func (s *Service) applyBalanceChange(ctx context.Context, accountKey string, amount decimal.Decimal, asset assets.Asset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	balance, err := scanBalance(tx.QueryRowContext(ctx, queryGetBalance, accountKey))
	if err == sql.ErrNoRows {
		return fmt.Errorf("balance for %s: %w", accountKey, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	newUsdb := balance.UsdbBalance
	newEth := balance.EthBalance
	switch asset.Bucket() {
	case assets.BucketUsdb:
		newUsdb = newUsdb.Add(amount)
		if newUsdb.IsNegative() {
			return fmt.Errorf("usdb balance %s cannot cover %s: %w",
				balance.UsdbBalance.String(), amount.Abs().String(), store.ErrInsufficientBalance)
		}
	case assets.BucketEth:
		newEth = newEth.Add(amount)
		if newEth.IsNegative() {
			return fmt.Errorf("eth balance %s cannot cover %s: %w",
				balance.EthBalance.String(), amount.Abs().String(), store.ErrInsufficientBalance)
		}
	}

	// Yield accrues on the eth bucket as it stood before this mutation.
	now := time.Now().UTC()
	newAccrued := balance.AccruedYieldBalance.Add(accruedYieldDelta(balance.EthBalance, balance.UpdatedAt, now))

	result, err := tx.ExecContext(ctx, queryUpdateBalance,
		newUsdb.String(), newEth.String(), newAccrued.String(), now,
		accountKey, balance.UsdbBalance.String(), balance.EthBalance.String())
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance update for %s: %w", accountKey, store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit balance update: %w", err)
	}

	zap.L().Info("Balance updated",
		zap.String("account_key", accountKey),
		zap.String("asset", asset.String()),
		zap.String("amount", amount.String()),
		zap.String("usdb_balance", newUsdb.String()),
		zap.String("eth_balance", newEth.String()))

	return nil
}

// accruedYieldDelta computes eth_balance * daily_yield / 86400 * elapsed
// seconds. The accrued bucket only grows.
func accruedYieldDelta(ethBalance decimal.Decimal, lastUpdate, now time.Time) decimal.Decimal {
	elapsed := now.Sub(lastUpdate).Seconds()
	if elapsed <= 0 || !ethBalance.IsPositive() {
		return decimal.Zero
	}
	return ethBalance.Mul(yieldPerSecond).Mul(decimal.NewFromFloat(elapsed))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBalance(row rowScanner) (*models.Balance, error) {
	var (
		balance    models.Balance
		usdbStr    string
		ethStr     string
		accruedStr string
	)
	err := row.Scan(&balance.SeedPhrasePublicKey, &usdbStr, &ethStr, &accruedStr,
		&balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if balance.UsdbBalance, err = decimal.NewFromString(usdbStr); err != nil {
		return nil, fmt.Errorf("failed to parse usdb balance %q: %w", usdbStr, err)
	}
	if balance.EthBalance, err = decimal.NewFromString(ethStr); err != nil {
		return nil, fmt.Errorf("failed to parse eth balance %q: %w", ethStr, err)
	}
	if balance.AccruedYieldBalance, err = decimal.NewFromString(accruedStr); err != nil {
		return nil, fmt.Errorf("failed to parse accrued yield balance %q: %w", accruedStr, err)
	}
	balance.CreatedAt = balance.CreatedAt.UTC()
	balance.UpdatedAt = balance.UpdatedAt.UTC()

	return &balance, nil
}

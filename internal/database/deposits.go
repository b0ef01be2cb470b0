package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/models"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

// NormalizeTransactionID lowercases a transaction hash so that feed casing
// differences cannot defeat dedup.
func NormalizeTransactionID(transactionID string) string {
	return strings.ToLower(strings.TrimSpace(transactionID))
}

// InsertDepositIfAbsent records an observed transfer. A conflicting
// transaction id is a silent no-op; the stored row is returned either way.
func (s *Service) InsertDepositIfAbsent(ctx context.Context, params store.NewDepositParams) (*models.Deposit, error) {
	transactionID := NormalizeTransactionID(params.TransactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("transaction id cannot be empty")
	}

	_, err := s.db.ExecContext(ctx, queryInsertDeposit,
		transactionID,
		strings.ToLower(params.FromAddress),
		params.Asset.String(),
		params.Amount.String(),
		params.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to insert deposit: %w", err)
	}

	return s.getDeposit(ctx, transactionID)
}

func (s *Service) getDeposit(ctx context.Context, transactionID string) (*models.Deposit, error) {
	var (
		deposit   models.Deposit
		assetStr  string
		amountStr string
	)
	err := s.db.QueryRowContext(ctx, queryGetDeposit, transactionID).Scan(
		&deposit.TransactionID, &deposit.FromAddress, &assetStr, &amountStr,
		&deposit.Matched, &deposit.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("deposit %s: %w", transactionID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	deposit.Asset, err = assets.ParseAsset(assetStr)
	if err != nil {
		return nil, fmt.Errorf("deposit %s: %w", transactionID, err)
	}
	deposit.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amountStr, err)
	}
	deposit.CreatedAt = deposit.CreatedAt.UTC()

	return &deposit, nil
}

// AnyDepositsExist reports whether at least one of the transaction ids is
// already recorded.
func (s *Service) AnyDepositsExist(ctx context.Context, transactionIDs []string) (bool, error) {
	if len(transactionIDs) == 0 {
		return false, nil
	}

	query := fmt.Sprintf(
		"SELECT EXISTS (SELECT 1 FROM deposits WHERE transaction_id IN (%s))",
		placeholders(len(transactionIDs)))

	var exists bool
	err := s.db.QueryRowContext(ctx, query, normalizedArgs(transactionIDs)...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check deposit existence: %w", err)
	}
	return exists, nil
}

// AllDepositsExist reports whether every transaction id is already recorded.
// Used as the pagination stop condition: a fully-known page means the
// traversal has caught up with previously ingested history.
func (s *Service) AllDepositsExist(ctx context.Context, transactionIDs []string) (bool, error) {
	if len(transactionIDs) == 0 {
		return true, nil
	}

	unique := make(map[string]struct{}, len(transactionIDs))
	for _, id := range transactionIDs {
		unique[NormalizeTransactionID(id)] = struct{}{}
	}

	query := fmt.Sprintf(
		"SELECT COUNT(DISTINCT transaction_id) FROM deposits WHERE transaction_id IN (%s)",
		placeholders(len(transactionIDs)))

	var count int
	err := s.db.QueryRowContext(ctx, query, normalizedArgs(transactionIDs)...).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count known deposits: %w", err)
	}
	return count == len(unique), nil
}

// FilterUnknownTransactionIDs returns the subset of ids not yet recorded,
// preserving input order.
func (s *Service) FilterUnknownTransactionIDs(ctx context.Context, transactionIDs []string) ([]string, error) {
	if len(transactionIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		"SELECT transaction_id FROM deposits WHERE transaction_id IN (%s)",
		placeholders(len(transactionIDs)))

	rows, err := s.db.QueryContext(ctx, query, normalizedArgs(transactionIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query known deposits: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	known := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan transaction id: %w", err)
		}
		known[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating known deposits: %w", err)
	}

	var unknown []string
	seen := make(map[string]struct{}, len(transactionIDs))
	for _, id := range transactionIDs {
		normalized := NormalizeTransactionID(id)
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		if _, ok := known[normalized]; !ok {
			unknown = append(unknown, normalized)
		}
	}
	return unknown, nil
}

// MarkDepositMatched performs the one-way matched=false -> true transition.
// Calling it twice is safe; matching an unknown id is an error.
func (s *Service) MarkDepositMatched(ctx context.Context, transactionID string) error {
	transactionID = NormalizeTransactionID(transactionID)

	result, err := s.db.ExecContext(ctx, queryMarkDepositMatched, transactionID)
	if err != nil {
		return fmt.Errorf("failed to mark deposit matched: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish "already matched" (fine) from "no such deposit".
		if _, err := s.getDeposit(ctx, transactionID); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func normalizedArgs(transactionIDs []string) []interface{} {
	args := make([]interface{}, len(transactionIDs))
	for i, id := range transactionIDs {
		args[i] = NormalizeTransactionID(id)
	}
	return args
}

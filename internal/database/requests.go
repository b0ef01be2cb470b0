package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/models"
	"github.com/stanleyjzheng/sudopay/internal/store"
)

// Amount-match tolerance on the deposit amount. A request's unit_amount must
// lie in [amount * lower, amount * upper]. The bound constants come from the
// deposit dialogue's "deposit the exact amount specified" contract.
var (
	lowerBoundEpsilon = decimal.RequireFromString("0.999")
	upperBoundEpsilon = decimal.RequireFromString("1.001")
)

// CreateDepositRequest records a user's declared deposit intent. Exactly one
// of unit amount or from address must be populated.
func (s *Service) CreateDepositRequest(ctx context.Context, params store.NewDepositRequestParams) (*models.DepositRequest, error) {
	if params.DepositorPublicKey == "" {
		return nil, fmt.Errorf("depositor public key cannot be empty")
	}
	if params.UnitAmount.Valid == (params.FromAddress != "") {
		return nil, fmt.Errorf("exactly one of unit amount or from address must be set")
	}
	if params.UnitAmount.Valid && !params.UnitAmount.Decimal.IsPositive() {
		return nil, fmt.Errorf("unit amount must be positive, got %s", params.UnitAmount.Decimal.String())
	}

	request := &models.DepositRequest{
		ID:                 uuid.New().String(),
		DepositorPublicKey: params.DepositorPublicKey,
		Asset:              params.Asset,
		UnitAmount:         params.UnitAmount,
		FromAddress:        strings.ToLower(params.FromAddress),
		CreatedAt:          time.Now().UTC(),
	}
	request.UpdatedAt = request.CreatedAt

	var unitAmount interface{}
	if params.UnitAmount.Valid {
		unitAmount = params.UnitAmount.Decimal.String()
	}
	var fromAddress interface{}
	if request.FromAddress != "" {
		fromAddress = request.FromAddress
	}

	_, err := s.db.ExecContext(ctx, queryInsertDepositRequest,
		request.ID, request.DepositorPublicKey, request.Asset.String(),
		unitAmount, fromAddress, request.CreatedAt, request.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert deposit request: %w", err)
	}

	zap.L().Info("Deposit request created",
		zap.String("request_id", request.ID),
		zap.String("depositor", request.DepositorPublicKey),
		zap.String("asset", request.Asset.String()))

	return request, nil
}

// FindRequestsByAddress returns requests whose from_address equals the
// transfer sender and whose created_at falls inside the window.
func (s *Service) FindRequestsByAddress(ctx context.Context, fromAddress string, asset assets.Asset, window store.RequestWindow) ([]models.DepositRequest, error) {
	rows, err := s.db.QueryContext(ctx, queryFindRequestsByAddress,
		strings.ToLower(fromAddress), asset.String(),
		window.Start.UTC(), window.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query requests by address: %w", err)
	}
	return scanRequests(rows)
}

// FindRequestsByAmount returns requests whose unit_amount lies within the
// tolerance band around the deposit's unit amount and whose created_at falls
// inside the window.
func (s *Service) FindRequestsByAmount(ctx context.Context, unitAmount decimal.Decimal, asset assets.Asset, window store.RequestWindow) ([]models.DepositRequest, error) {
	lowerBound := unitAmount.Mul(lowerBoundEpsilon)
	upperBound := unitAmount.Mul(upperBoundEpsilon)

	rows, err := s.db.QueryContext(ctx, queryFindRequestsByAmount,
		lowerBound.String(), upperBound.String(), asset.String(),
		window.Start.UTC(), window.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query requests by amount: %w", err)
	}
	return scanRequests(rows)
}

// SetMatchedTransactionID pairs a request with a deposit. The column is set
// at most once; a second attempt fails with ErrRequestAlreadyMatched unless
// it repeats the same transaction id (idempotent re-entry after a crash).
func (s *Service) SetMatchedTransactionID(ctx context.Context, requestID, transactionID string) error {
	transactionID = NormalizeTransactionID(transactionID)

	result, err := s.db.ExecContext(ctx, querySetMatchedTransactionID,
		transactionID, time.Now().UTC(), requestID)
	if err != nil {
		return fmt.Errorf("failed to set matched transaction id: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var existing sql.NullString
		err := s.db.QueryRowContext(ctx,
			"SELECT matched_transaction_id FROM deposit_requests WHERE id = ?", requestID).
			Scan(&existing)
		if err == sql.ErrNoRows {
			return fmt.Errorf("deposit request %s: %w", requestID, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read deposit request: %w", err)
		}
		if existing.String == transactionID {
			return nil
		}
		return fmt.Errorf("deposit request %s already matched to %s: %w",
			requestID, existing.String, store.ErrRequestAlreadyMatched)
	}
	return nil
}

func scanRequests(rows *sql.Rows) ([]models.DepositRequest, error) {
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var requests []models.DepositRequest
	for rows.Next() {
		var (
			request    models.DepositRequest
			assetStr   string
			unitAmount sql.NullString
		)
		err := rows.Scan(&request.ID, &request.DepositorPublicKey, &assetStr,
			&unitAmount, &request.FromAddress, &request.MatchedTransactionID,
			&request.CreatedAt, &request.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit request: %w", err)
		}

		request.Asset, err = assets.ParseAsset(assetStr)
		if err != nil {
			zap.L().Error("Failed to parse asset from deposit request",
				zap.String("request_id", request.ID),
				zap.String("asset", assetStr))
			continue
		}
		if unitAmount.Valid {
			amount, err := decimal.NewFromString(unitAmount.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse unit amount %q: %w", unitAmount.String, err)
			}
			request.UnitAmount = decimal.NewNullDecimal(amount)
		}
		request.CreatedAt = request.CreatedAt.UTC()
		request.UpdatedAt = request.UpdatedAt.UTC()

		requests = append(requests, request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposit requests: %w", err)
	}
	return requests, nil
}

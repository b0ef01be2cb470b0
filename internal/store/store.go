package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanleyjzheng/sudopay/internal/assets"
	"github.com/stanleyjzheng/sudopay/internal/models"
)

// Sentinel errors shared across ledger implementations.
var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrRequestAlreadyMatched  = errors.New("deposit request already matched")
)

// NewDepositParams contains the fields for recording an observed transfer.
type NewDepositParams struct {
	TransactionID string
	FromAddress   string
	Asset         assets.Asset
	Amount        decimal.Decimal
	CreatedAt     time.Time
}

// NewDepositRequestParams contains the front-end contract for declaring a
// deposit intent. Exactly one of UnitAmount or FromAddress must be set.
type NewDepositRequestParams struct {
	DepositorPublicKey string
	Asset              assets.Asset
	UnitAmount         decimal.NullDecimal
	FromAddress        string
}

// RequestWindow bounds the created_at range a DepositRequest must fall in to
// be eligible for matching a given deposit.
type RequestWindow struct {
	Start time.Time
	End   time.Time
}

// DepositLedger owns Deposit and DepositRequest row state.
type DepositLedger interface {
	InsertDepositIfAbsent(ctx context.Context, params NewDepositParams) (*models.Deposit, error)
	AnyDepositsExist(ctx context.Context, transactionIDs []string) (bool, error)
	AllDepositsExist(ctx context.Context, transactionIDs []string) (bool, error)
	FilterUnknownTransactionIDs(ctx context.Context, transactionIDs []string) ([]string, error)
	MarkDepositMatched(ctx context.Context, transactionID string) error

	CreateDepositRequest(ctx context.Context, params NewDepositRequestParams) (*models.DepositRequest, error)
	FindRequestsByAddress(ctx context.Context, fromAddress string, asset assets.Asset, window RequestWindow) ([]models.DepositRequest, error)
	FindRequestsByAmount(ctx context.Context, unitAmount decimal.Decimal, asset assets.Asset, window RequestWindow) ([]models.DepositRequest, error)
	SetMatchedTransactionID(ctx context.Context, requestID, transactionID string) error
}

// BalanceLedger owns Balance row state; the reconciliation engine's only
// mutation target.
type BalanceLedger interface {
	CreateBalance(ctx context.Context, accountKey string) (*models.Balance, error)
	GetBalance(ctx context.Context, accountKey string) (*models.Balance, error)
	Credit(ctx context.Context, accountKey string, amount decimal.Decimal, asset assets.Asset) error
	Debit(ctx context.Context, accountKey string, amount decimal.Decimal, asset assets.Asset) error
}

// UserStore resolves account keys to users for notification delivery.
type UserStore interface {
	GetUserByPublicKey(ctx context.Context, seedPhrasePublicKey string) (*models.User, error)
}

// Ledger is the full contract the reconciliation engine consumes.
type Ledger interface {
	DepositLedger
	BalanceLedger
	UserStore
}

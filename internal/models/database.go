package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanleyjzheng/sudopay/internal/assets"
)

// User represents a registered wallet user. The seed phrase public key is the
// ledger's account key; the telegram id is the notification channel.
type User struct {
	TelegramID          int64  `db:"telegram_id"`
	SaltedPassword      string `db:"salted_password"`
	SeedPhrase          string `db:"seed_phrase"`
	SeedPhrasePublicKey string `db:"seed_phrase_public_key"`
}

// Deposit is an immutable record of one observed transfer into the custodial
// address. Amounts are in the smallest on-chain unit.
type Deposit struct {
	TransactionID string          `db:"transaction_id"`
	FromAddress   string          `db:"from_address"`
	Asset         assets.Asset    `db:"asset"`
	Amount        decimal.Decimal `db:"amount"`
	Matched       bool            `db:"matched"`
	CreatedAt     time.Time       `db:"created_at"`
}

// DepositRequest is a user's declared intent to deposit. Exactly one of
// UnitAmount or FromAddress is set; the populated field selects the matching
// strategy.
type DepositRequest struct {
	ID                   string              `db:"id"`
	DepositorPublicKey   string              `db:"depositor_public_key"`
	Asset                assets.Asset        `db:"asset"`
	UnitAmount           decimal.NullDecimal `db:"unit_amount"`
	FromAddress          string              `db:"from_address"`
	MatchedTransactionID string              `db:"matched_transaction_id"`
	CreatedAt            time.Time           `db:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at"`
}

// Balance is one row per user account. ETH and WETH share the eth bucket;
// all amounts are in the smallest on-chain unit.
type Balance struct {
	SeedPhrasePublicKey string          `db:"seed_phrase_public_key"`
	UsdbBalance         decimal.Decimal `db:"usdb_balance"`
	EthBalance          decimal.Decimal `db:"eth_balance"`
	AccruedYieldBalance decimal.Decimal `db:"accrued_yield_balance"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

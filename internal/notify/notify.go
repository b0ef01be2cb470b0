// Package notify delivers deposit notifications to users over telegram.
package notify

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stanleyjzheng/sudopay/internal/assets"
)

// Notifier tells a user about a credited deposit. Delivery is best effort;
// implementations must not block reconciliation on a slow or failed send.
type Notifier interface {
	NotifyDeposit(ctx context.Context, telegramID int64, unitAmount decimal.Decimal, asset assets.Asset) error
}

// Noop discards all notifications. Used by the setup and request commands,
// which have no bot token, and by tests.
type Noop struct{}

func (Noop) NotifyDeposit(context.Context, int64, decimal.Decimal, assets.Asset) error {
	return nil
}

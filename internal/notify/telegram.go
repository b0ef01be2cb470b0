package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stanleyjzheng/sudopay/internal/assets"
)

// TelegramNotifier sends deposit confirmations through the bot API.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

var _ Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(token string) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	zap.L().Info("Telegram bot initialized", zap.String("username", bot.Self.UserName))
	return &TelegramNotifier{bot: bot}, nil
}

// NotifyDeposit messages the user that their deposit was credited. The amount
// is in display units, already converted from the on-chain representation.
func (n *TelegramNotifier) NotifyDeposit(ctx context.Context, telegramID int64, unitAmount decimal.Decimal, asset assets.Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("You have received a deposit of %s %s", unitAmount.String(), asset.String())
	message := tgbotapi.NewMessage(telegramID, text)

	if _, err := n.bot.Send(message); err != nil {
		return fmt.Errorf("failed to send telegram message to %d: %w", telegramID, err)
	}
	return nil
}

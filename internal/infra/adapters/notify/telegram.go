package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier posts payment lifecycle events to an ops chat. Send
// failures are logged and swallowed; settlement never depends on them.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	nLog := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: chatID, log: &nLog}, nil
}

func (n *TelegramNotifier) PaymentCompleted(_ context.Context, p *model.Payment) {
	n.send(fmt.Sprintf("✅ Payment completed\norder: %s\nprovider: %s\nproduct: %s\namount: %d.%02d %s",
		p.OrderID, p.Provider, p.ProductType, p.Amount/100, p.Amount%100, p.Currency))
}

func (n *TelegramNotifier) PaymentFailed(_ context.Context, p *model.Payment, reason string) {
	n.send(fmt.Sprintf("❌ Payment failed\norder: %s\nprovider: %s\nreason: %s",
		p.OrderID, p.Provider, reason))
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Msg("telegram notification failed")
	}
}

package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/guest-sentry/internal/models"
	"go.uber.org/zap"
)

// TelegramSender delivers chat-ops notifications to staff channels.
// Recipients are telegram chat ids.
type TelegramSender struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewTelegramSender(token string, logger *zap.Logger) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram sender: %w", err)
	}
	return &TelegramSender{api: api, logger: logger}, nil
}

func (s *TelegramSender) Send(ctx context.Context, channel models.Channel, recipients []string, subject, body string) (Delivery, error) {
	start := time.Now()

	delivered := 0
	for _, recipient := range recipients {
		chatID, err := strconv.ParseInt(recipient, 10, 64)
		if err != nil {
			s.logger.Error("Invalid telegram chat id",
				zap.String("recipient", recipient),
				zap.String("channel", string(channel)))
			continue
		}

		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s\n\n%s", subject, body))
		if _, err := s.api.Send(msg); err != nil {
			s.logger.Error("Failed to send telegram notification",
				zap.Error(err),
				zap.Int64("chat_id", chatID),
				zap.String("channel", string(channel)))
			continue
		}
		delivered++
	}

	delivery := Delivery{
		Status:         "delivered",
		DeliveryTimeMs: time.Since(start).Milliseconds(),
	}
	if delivered == 0 {
		delivery.Status = "failed"
		return delivery, fmt.Errorf("no telegram recipients reached on %s", channel)
	}
	return delivery, nil
}

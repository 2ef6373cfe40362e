package notify

import (
	"context"
	"time"

	"github.com/xaenox/guest-sentry/internal/models"
	"go.uber.org/zap"
)

// Delivery reports the outcome of one send.
type Delivery struct {
	Status         string
	DeliveryTimeMs int64
}

// Sender delivers a notification on one channel. Implementations are
// external transports; the core only routes.
type Sender interface {
	Send(ctx context.Context, channel models.Channel, recipients []string, subject, body string) (Delivery, error)
}

// LogSender records deliveries in the log instead of sending them. It stands
// in for transports that are not configured (email, SMS, webhook, dashboard
// are delivered by external collaborators in production).
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, channel models.Channel, recipients []string, subject, body string) (Delivery, error) {
	s.logger.Info("Notification dispatched",
		zap.String("channel", string(channel)),
		zap.Strings("recipients", recipients),
		zap.String("subject", subject))
	return Delivery{Status: "logged"}, nil
}

// MuxSender routes each channel to its own transport, with a default for
// channels that have none.
type MuxSender struct {
	senders  map[models.Channel]Sender
	fallback Sender
}

func NewMuxSender(fallback Sender) *MuxSender {
	return &MuxSender{
		senders:  make(map[models.Channel]Sender),
		fallback: fallback,
	}
}

func (s *MuxSender) Register(channel models.Channel, sender Sender) {
	s.senders[channel] = sender
}

func (s *MuxSender) Send(ctx context.Context, channel models.Channel, recipients []string, subject, body string) (Delivery, error) {
	start := time.Now()
	sender, exists := s.senders[channel]
	if !exists {
		sender = s.fallback
	}
	delivery, err := sender.Send(ctx, channel, recipients, subject, body)
	if delivery.DeliveryTimeMs == 0 {
		delivery.DeliveryTimeMs = time.Since(start).Milliseconds()
	}
	return delivery, err
}

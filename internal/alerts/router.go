package alerts

import (
	"context"
	"fmt"

	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/notify"
	"go.uber.org/zap"
)

// ChannelsFor maps an urgency level to its ordered channel set. Higher
// urgency widens the set; urgency 5 adds a secondary chat-ops channel.
func ChannelsFor(urgency int) []models.Channel {
	switch {
	case urgency >= 5:
		return []models.Channel{
			models.ChannelEmail, models.ChannelSMS, models.ChannelWebhook,
			models.ChannelChatOps, models.ChannelChatOps2,
		}
	case urgency == 4:
		return []models.Channel{
			models.ChannelEmail, models.ChannelSMS, models.ChannelWebhook,
			models.ChannelChatOps,
		}
	case urgency == 3:
		return []models.Channel{
			models.ChannelEmail, models.ChannelWebhook, models.ChannelDashboard,
		}
	case urgency == 2:
		return []models.Channel{models.ChannelEmail, models.ChannelDashboard}
	default:
		return []models.Channel{models.ChannelDashboard}
	}
}

// Recipients resolves who receives notifications per channel.
type Recipients map[models.Channel][]string

// Router fans an alert out to the channel set for its urgency. A failed
// channel is logged and skipped; dispatch fails only when every channel
// failed. Partial delivery is acceptable, total silence is not.
type Router struct {
	sender     notify.Sender
	recipients Recipients
	logger     *zap.Logger
}

func NewRouter(sender notify.Sender, recipients Recipients, logger *zap.Logger) *Router {
	return &Router{
		sender:     sender,
		recipients: recipients,
		logger:     logger,
	}
}

func (r *Router) Dispatch(ctx context.Context, alert *models.StaffAlert) error {
	channels := ChannelsFor(alert.UrgencyLevel)
	subject := fmt.Sprintf("[%s] Guest alert for hotel %s", alert.Priority, alert.HotelID)
	body := fmt.Sprintf(
		"Alert %s\nGuest: %s\nSentiment score: %.2f\nUrgency: %d\nRespond by: %s",
		alert.ID, alert.GuestID, alert.SentimentScore,
		alert.UrgencyLevel, alert.ResponseRequiredBy.Format("15:04:05 MST"))

	delivered := 0
	for _, channel := range channels {
		delivery, err := r.sender.Send(ctx, channel, r.recipients[channel], subject, body)
		if err != nil {
			r.logger.Error("Channel dispatch failed, continuing",
				zap.Error(err),
				zap.String("channel", string(channel)),
				zap.String("alert_id", alert.ID),
				zap.String("correlation_id", alert.CorrelationID))
			continue
		}
		delivered++
		r.logger.Info("Alert notification sent",
			zap.String("channel", string(channel)),
			zap.String("alert_id", alert.ID),
			zap.String("status", delivery.Status),
			zap.Int64("delivery_time_ms", delivery.DeliveryTimeMs),
			zap.String("correlation_id", alert.CorrelationID))
	}

	if delivered == 0 {
		return fmt.Errorf("all %d channels failed for alert %s", len(channels), alert.ID)
	}
	return nil
}

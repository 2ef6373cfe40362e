package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/guest-sentry/internal/alerts"
	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/notify"
	"github.com/xaenox/guest-sentry/internal/rules"
	"github.com/xaenox/guest-sentry/internal/storage"
	"go.uber.org/zap"
)

func TestRunnerSweepsOverdueAlertsWithoutQueue(t *testing.T) {
	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	manager := rules.NewManager(store, models.DefaultThresholds(), logger)
	router := alerts.NewRouter(notify.NewLogSender(logger), alerts.Recipients{}, logger)
	lifecycle := alerts.NewLifecycle(store, manager, router, logger)

	overdue := &models.StaffAlert{
		ID:                 "a1",
		HotelID:            "h1",
		GuestID:            "g1",
		MessageID:          "m1",
		AlertType:          "negative_sentiment",
		Priority:           models.EscalationStaff,
		Status:             models.AlertPending,
		SentimentScore:     -0.5,
		UrgencyLevel:       3,
		ResponseRequiredBy: time.Now().Add(-time.Minute),
		CreatedAt:          time.Now().Add(-31 * time.Minute),
	}
	require.NoError(t, store.SaveAlert(context.Background(), overdue))

	// No redis client: the runner only owns the overdue sweep.
	runner := NewRunner(nil, nil, lifecycle, "unused", 2, 10*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	runner.Run(ctx)

	stored, err := store.GetAlert(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AlertEscalated, stored.Status)
	assert.NotEmpty(t, stored.EscalationHistory)
}

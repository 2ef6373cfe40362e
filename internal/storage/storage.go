package storage

import (
	"context"
	"time"

	"github.com/xaenox/guest-sentry/internal/models"
)

// Storage persists alerts, per-hotel threshold configuration and
// classification history.
type Storage interface {
	AlertStore
	ThresholdStore
	HistoryStore
	Close() error
}

type AlertStore interface {
	SaveAlert(ctx context.Context, alert *models.StaffAlert) error
	GetAlert(ctx context.Context, id string) (*models.StaffAlert, error)
	UpdateAlert(ctx context.Context, alert *models.StaffAlert) error

	// ListOverdue returns non-terminal alerts whose response deadline has
	// passed, including already-escalated alerts that may need a further
	// escalation.
	ListOverdue(ctx context.Context, now time.Time) ([]*models.StaffAlert, error)
}

type ThresholdStore interface {
	// GetHotelThresholds returns the hotel's stored overrides, or nil when
	// the hotel has none.
	GetHotelThresholds(ctx context.Context, hotelID string) (*models.ThresholdPatch, error)
	SaveHotelThresholds(ctx context.Context, hotelID string, patch *models.ThresholdPatch) error
}

type HistoryStore interface {
	SaveClassification(ctx context.Context, msg models.GuestMessage, result models.ClassificationResult) error

	// CountRecentNegative counts a guest's negative classifications within
	// the trailing window.
	CountRecentNegative(ctx context.Context, guestID, hotelID string, windowHours int) (int, error)

	// HistoricalScores returns a hotel's sentiment scores over the trailing
	// period, oldest first.
	HistoricalScores(ctx context.Context, hotelID string, periodDays int) ([]float64, error)
}

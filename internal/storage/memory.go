package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/guest-sentry/internal/models"
)

type classificationRow struct {
	hotelID   string
	guestID   string
	label     models.SentimentLabel
	score     float64
	createdAt time.Time
}

// MemoryStorage is the in-process Storage used by tests and local runs.
type MemoryStorage struct {
	mu              sync.RWMutex
	alerts          map[string]*models.StaffAlert
	thresholds      map[string]*models.ThresholdPatch
	classifications []classificationRow

	now func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		alerts:     make(map[string]*models.StaffAlert),
		thresholds: make(map[string]*models.ThresholdPatch),
		now:        time.Now,
	}
}

func (s *MemoryStorage) SaveAlert(ctx context.Context, alert *models.StaffAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.ID]; exists {
		return fmt.Errorf("alert %s already exists", alert.ID)
	}
	copied := *alert
	s.alerts[alert.ID] = &copied
	return nil
}

func (s *MemoryStorage) GetAlert(ctx context.Context, id string) (*models.StaffAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, exists := s.alerts[id]
	if !exists {
		return nil, fmt.Errorf("alert %s not found", id)
	}
	copied := *alert
	return &copied, nil
}

func (s *MemoryStorage) UpdateAlert(ctx context.Context, alert *models.StaffAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.ID]; !exists {
		return fmt.Errorf("alert %s not found", alert.ID)
	}
	copied := *alert
	s.alerts[alert.ID] = &copied
	return nil
}

func (s *MemoryStorage) ListOverdue(ctx context.Context, now time.Time) ([]*models.StaffAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var overdue []*models.StaffAlert
	for _, alert := range s.alerts {
		if alert.Status != models.AlertPending && alert.Status != models.AlertEscalated {
			continue
		}
		if now.After(alert.ResponseRequiredBy) {
			copied := *alert
			overdue = append(overdue, &copied)
		}
	}
	return overdue, nil
}

func (s *MemoryStorage) GetHotelThresholds(ctx context.Context, hotelID string) (*models.ThresholdPatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.thresholds[hotelID], nil
}

func (s *MemoryStorage) SaveHotelThresholds(ctx context.Context, hotelID string, patch *models.ThresholdPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.thresholds[hotelID] = patch
	return nil
}

func (s *MemoryStorage) SaveClassification(ctx context.Context, msg models.GuestMessage, result models.ClassificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.classifications = append(s.classifications, classificationRow{
		hotelID:   msg.HotelID,
		guestID:   msg.GuestID,
		label:     result.Label,
		score:     result.Score,
		createdAt: s.now(),
	})
	return nil
}

func (s *MemoryStorage) CountRecentNegative(ctx context.Context, guestID, hotelID string, windowHours int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-time.Duration(windowHours) * time.Hour)
	count := 0
	for _, row := range s.classifications {
		if row.guestID != guestID || row.hotelID != hotelID {
			continue
		}
		if row.createdAt.Before(cutoff) {
			continue
		}
		if row.label == models.SentimentNegative || row.label == models.SentimentRequiresAttention {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) HistoricalScores(ctx context.Context, hotelID string, periodDays int) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-time.Duration(periodDays) * 24 * time.Hour)
	var scores []float64
	for _, row := range s.classifications {
		if row.hotelID != hotelID || row.createdAt.Before(cutoff) {
			continue
		}
		scores = append(scores, row.score)
	}
	return scores, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

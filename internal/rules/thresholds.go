package rules

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/storage"
	"go.uber.org/zap"
)

// Floors for recommended thresholds. A historically calm hotel must not end
// up with thresholds so strict that ordinary complaints never alert, and a
// turbulent one must not mask real emergencies.
const (
	negativeFloor = -0.5
	criticalFloor = -0.8
)

const minScoresForRecommendation = 10
const confidentScoreCount = 30

// Store is the slice of storage the threshold manager needs: per-hotel
// overrides plus the score history that feeds recommendations.
type Store interface {
	storage.ThresholdStore
	HistoricalScores(ctx context.Context, hotelID string, periodDays int) ([]float64, error)
}

// Manager resolves a hotel's ThresholdSet by merging its stored overrides
// over the global defaults, field by field.
type Manager struct {
	store    Store
	defaults models.ThresholdSet
	logger   *zap.Logger
}

func NewManager(store Store, defaults models.ThresholdSet, logger *zap.Logger) *Manager {
	if defaults.ResponseTimeMinutes == nil {
		defaults = models.DefaultThresholds()
	}
	return &Manager{
		store:    store,
		defaults: defaults,
		logger:   logger,
	}
}

// Thresholds returns the hotel's effective configuration. Lookup failures
// fall back to the defaults; a partially configured hotel inherits every
// missing field.
func (m *Manager) Thresholds(ctx context.Context, hotelID string) models.ThresholdSet {
	base := m.defaults
	base.ResponseTimeMinutes = copyResponseTimes(m.defaults.ResponseTimeMinutes)

	patch, err := m.store.GetHotelThresholds(ctx, hotelID)
	if err != nil {
		m.logger.Warn("Failed to load hotel thresholds, using defaults",
			zap.Error(err),
			zap.String("hotel_id", hotelID))
		return base
	}
	return patch.Apply(base)
}

// Update validates and persists a hotel's threshold overrides. On a
// validation error the stored configuration stays unchanged.
func (m *Manager) Update(ctx context.Context, hotelID string, patch *models.ThresholdPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return m.store.SaveHotelThresholds(ctx, hotelID, patch)
}

// Recommend derives thresholds from a hotel's historical scores. With fewer
// than 10 scores it returns the defaults flagged low-confidence; full
// confidence needs at least 30.
func (m *Manager) Recommend(hotelID string, historicalScores []float64) models.ThresholdSet {
	recommended := m.defaults
	recommended.ResponseTimeMinutes = copyResponseTimes(m.defaults.ResponseTimeMinutes)

	if len(historicalScores) < minScoresForRecommendation {
		recommended.LowConfidence = true
		return recommended
	}

	recommended.NegativeSentimentThreshold = math.Max(negativeFloor, Percentile(historicalScores, 25))
	recommended.CriticalSentimentThreshold = math.Max(criticalFloor, Percentile(historicalScores, 10))
	recommended.LowConfidence = len(historicalScores) < confidentScoreCount

	m.logger.Info("Recommended thresholds from history",
		zap.String("hotel_id", hotelID),
		zap.Int("samples", len(historicalScores)),
		zap.Float64("negative", recommended.NegativeSentimentThreshold),
		zap.Float64("critical", recommended.CriticalSentimentThreshold),
		zap.Bool("low_confidence", recommended.LowConfidence))
	return recommended
}

// RecommendFromHistory loads the hotel's stored scores over the trailing
// period and derives recommended thresholds from them.
func (m *Manager) RecommendFromHistory(ctx context.Context, hotelID string, periodDays int) (models.ThresholdSet, error) {
	scores, err := m.store.HistoricalScores(ctx, hotelID, periodDays)
	if err != nil {
		return models.ThresholdSet{}, fmt.Errorf("error loading historical scores: %v", err)
	}
	return m.Recommend(hotelID, scores), nil
}

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func copyResponseTimes(src map[int]int) map[int]int {
	dst := make(map[int]int, len(src))
	for urgency, minutes := range src {
		dst[urgency] = minutes
	}
	return dst
}

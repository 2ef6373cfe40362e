package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/storage"
	"go.uber.org/zap"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func newTestManager(t *testing.T) (*Manager, *storage.MemoryStorage) {
	store := storage.NewMemoryStorage()
	return NewManager(store, models.DefaultThresholds(), zap.NewNop()), store
}

func TestThresholdsDefaultWhenUnconfigured(t *testing.T) {
	manager, _ := newTestManager(t)

	ts := manager.Thresholds(context.Background(), "unknown-hotel")
	assert.Equal(t, -0.3, ts.NegativeSentimentThreshold)
	assert.Equal(t, -0.8, ts.CriticalSentimentThreshold)
	assert.Equal(t, 5, ts.ResponseTimeMinutes[5])
	assert.Equal(t, 120, ts.ResponseTimeMinutes[1])
}

func TestThresholdsPartialOverrideInheritsDefaults(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	patch := &models.ThresholdPatch{
		NegativeSentimentThreshold: floatPtr(-0.4),
		ResponseTimeMinutes:        map[int]int{5: 3},
	}
	require.NoError(t, store.SaveHotelThresholds(ctx, "h1", patch))

	ts := manager.Thresholds(ctx, "h1")
	assert.Equal(t, -0.4, ts.NegativeSentimentThreshold, "overridden field applies")
	assert.Equal(t, -0.8, ts.CriticalSentimentThreshold, "missing fields inherit defaults")
	assert.Equal(t, 3, ts.ResponseTimeMinutes[5])
	assert.Equal(t, 15, ts.ResponseTimeMinutes[4])
}

func TestThresholdsOverrideDoesNotLeakAcrossHotels(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHotelThresholds(ctx, "h1", &models.ThresholdPatch{
		ResponseTimeMinutes: map[int]int{5: 2},
	}))

	manager.Thresholds(ctx, "h1")
	ts := manager.Thresholds(ctx, "h2")
	assert.Equal(t, 5, ts.ResponseTimeMinutes[5], "another hotel's override must not leak into the defaults")
}

func TestUpdateRejectsInvalidConfiguration(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.Update(ctx, "h1", &models.ThresholdPatch{
		NegativeSentimentThreshold: floatPtr(-0.4),
	}))

	err := manager.Update(ctx, "h1", &models.ThresholdPatch{
		NegativeSentimentThreshold: floatPtr(0.5),
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	err = manager.Update(ctx, "h1", &models.ThresholdPatch{
		NegativeSentimentThreshold: floatPtr(-0.9),
		CriticalSentimentThreshold: floatPtr(-0.2),
	})
	assert.ErrorIs(t, err, models.ErrValidation, "critical must not sit above negative")

	err = manager.Update(ctx, "h1", &models.ThresholdPatch{
		ConsecutiveNegativeThreshold: intPtr(0),
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	// The earlier valid configuration stays active.
	patch, getErr := store.GetHotelThresholds(ctx, "h1")
	require.NoError(t, getErr)
	require.NotNil(t, patch)
	assert.Equal(t, -0.4, *patch.NegativeSentimentThreshold)
}

func TestRecommendWithTooFewScores(t *testing.T) {
	manager, _ := newTestManager(t)

	recommended := manager.Recommend("h1", []float64{-0.2, 0.1, -0.5})
	assert.True(t, recommended.LowConfidence)
	assert.Equal(t, -0.3, recommended.NegativeSentimentThreshold, "defaults stand in below 10 samples")
}

func TestRecommendAppliesPercentileFloors(t *testing.T) {
	manager, _ := newTestManager(t)

	// A turbulent hotel: most scores deeply negative. Without the floors the
	// thresholds would drift so permissive that real emergencies pass.
	scores := make([]float64, 40)
	for i := range scores {
		scores[i] = -0.95
	}
	recommended := manager.Recommend("h1", scores)
	assert.Equal(t, -0.5, recommended.NegativeSentimentThreshold)
	assert.Equal(t, -0.8, recommended.CriticalSentimentThreshold)
	assert.False(t, recommended.LowConfidence)
}

func TestRecommendUsesPercentilesAboveFloors(t *testing.T) {
	manager, _ := newTestManager(t)

	// A calm hotel: scores centered near zero, so the percentiles sit above
	// the floors and win.
	scores := make([]float64, 40)
	for i := range scores {
		scores[i] = -0.1
	}
	recommended := manager.Recommend("h1", scores)
	assert.InDelta(t, -0.1, recommended.NegativeSentimentThreshold, 1e-9)
	assert.InDelta(t, -0.1, recommended.CriticalSentimentThreshold, 1e-9)
}

func TestRecommendMidSampleCountIsLowConfidence(t *testing.T) {
	manager, _ := newTestManager(t)

	scores := make([]float64, 15)
	for i := range scores {
		scores[i] = -0.2
	}
	recommended := manager.Recommend("h1", scores)
	assert.True(t, recommended.LowConfidence, "10-29 samples compute thresholds but flag low confidence")
}

func TestRecommendFromHistoryUsesStoredScores(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	msg := models.GuestMessage{ID: "m1", HotelID: "h1", GuestID: "g1"}
	for i := 0; i < 40; i++ {
		result := models.NewClassificationResult(models.SentimentNegative, -0.1, 0.9, false, "", nil)
		require.NoError(t, store.SaveClassification(ctx, msg, result))
	}

	recommended, err := manager.RecommendFromHistory(ctx, "h1", 30)
	require.NoError(t, err)
	assert.InDelta(t, -0.1, recommended.NegativeSentimentThreshold, 1e-9)
	assert.False(t, recommended.LowConfidence)

	// A hotel with no history gets the defaults, flagged low-confidence.
	sparse, err := manager.RecommendFromHistory(ctx, "h2", 30)
	require.NoError(t, err)
	assert.True(t, sparse.LowConfidence)
	assert.Equal(t, -0.3, sparse.NegativeSentimentThreshold)
}

func TestPercentile(t *testing.T) {
	values := []float64{-1.0, -0.8, -0.6, -0.4, -0.2, 0, 0.2, 0.4, 0.6, 0.8, 1.0}
	assert.InDelta(t, -1.0, Percentile(values, 0), 1e-9)
	assert.InDelta(t, 0.0, Percentile(values, 50), 1e-9)
	assert.InDelta(t, 1.0, Percentile(values, 100), 1e-9)
	assert.InDelta(t, -0.5, Percentile(values, 25), 1e-9)
}

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

type fixedHistory struct{ count int }

func (h fixedHistory) CountRecentNegative(ctx context.Context, guestID, hotelID string, windowHours int) (int, error) {
	return h.count, nil
}

func newTestEngine(t *testing.T, recentNegative int) *Engine {
	manager := NewManager(storage.NewMemoryStorage(), models.DefaultThresholds(), zap.NewNop())
	return NewEngine(manager, fixedHistory{count: recentNegative}, zap.NewNop())
}

func result(label models.SentimentLabel, score, confidence float64, attention bool) models.ClassificationResult {
	return models.NewClassificationResult(label, score, confidence, attention, "", nil)
}

func TestEvaluateNegativeScoreAlerts(t *testing.T) {
	engine := newTestEngine(t, 0)

	evaluation, err := engine.Evaluate(context.Background(),
		result(models.SentimentNegative, -0.5, 0.9, false), "h1", "g1", "bad stay")
	require.NoError(t, err)

	assert.True(t, evaluation.ShouldAlert)
	assert.Contains(t, evaluation.MatchedActions, "negative_sentiment")
	assert.Equal(t, models.EscalationStaff, evaluation.EscalationLevel)
	assert.Equal(t, 3, evaluation.UrgencyLevel)
}

func TestEvaluateNeutralDoesNotAlert(t *testing.T) {
	engine := newTestEngine(t, 0)

	evaluation, err := engine.Evaluate(context.Background(),
		result(models.SentimentNeutral, 0.0, 0.3, false), "h1", "g1", "The room is fine")
	require.NoError(t, err)

	assert.False(t, evaluation.ShouldAlert)
	assert.Equal(t, models.EscalationNone, evaluation.EscalationLevel)
}

func TestEvaluateRequiresAttentionAlerts(t *testing.T) {
	engine := newTestEngine(t, 0)

	evaluation, err := engine.Evaluate(context.Background(),
		result(models.SentimentRequiresAttention, -0.2, 0.9, true), "h1", "g1", "need a doctor")
	require.NoError(t, err)

	assert.True(t, evaluation.ShouldAlert)
	assert.Contains(t, evaluation.MatchedActions, "requires_attention")
	assert.Equal(t, models.EscalationSupervisor, evaluation.EscalationLevel)
}

func TestEvaluateLowConfidencePositiveAlerts(t *testing.T) {
	engine := newTestEngine(t, 0)

	// A "positive" at confidence 0.2 is a likely-sarcastic false positive.
	evaluation, err := engine.Evaluate(context.Background(),
		result(models.SentimentPositive, 0.6, 0.2, false), "h1", "g1", "oh great, another cold shower")
	require.NoError(t, err)

	assert.True(t, evaluation.ShouldAlert)
	assert.Contains(t, evaluation.MatchedActions, "low_confidence_positive")
}

func TestEvaluateConsecutiveNegativeAlerts(t *testing.T) {
	engine := newTestEngine(t, 3)

	evaluation, err := engine.Evaluate(context.Background(),
		result(models.SentimentNeutral, -0.1, 0.8, false), "h1", "g1", "still waiting")
	require.NoError(t, err)

	assert.True(t, evaluation.ShouldAlert)
	assert.Contains(t, evaluation.MatchedActions, "consecutive_negative")
	assert.Equal(t, 3, evaluation.RecentNegativeCount)
}

func TestEscalationLadderPriorityOrder(t *testing.T) {
	ts := models.DefaultThresholds()

	cases := []struct {
		name           string
		result         models.ClassificationResult
		recentNegative int
		want           models.EscalationLevel
	}{
		{"critical score wins", result(models.SentimentNegative, -0.85, 0.9, false), 0, models.EscalationManager},
		{"very negative", result(models.SentimentNegative, -0.65, 0.9, false), 0, models.EscalationSupervisor},
		{"attention flag", result(models.SentimentRequiresAttention, -0.2, 0.9, true), 0, models.EscalationSupervisor},
		{"repeat offender", result(models.SentimentNegative, -0.1, 0.9, false), 5, models.EscalationSupervisor},
		{"plain negative", result(models.SentimentNegative, -0.4, 0.9, false), 0, models.EscalationStaff},
		{"calm", result(models.SentimentPositive, 0.7, 0.9, false), 0, models.EscalationNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, escalationFor(tc.result, ts, tc.recentNegative))
		})
	}
}

func TestEscalationThresholdBoundary(t *testing.T) {
	// score=-0.85 with critical=-0.8 reaches manager; loosening critical to
	// -0.9 drops the same score to the next rung.
	ts := models.DefaultThresholds()
	res := result(models.SentimentNegative, -0.85, 0.9, false)

	assert.Equal(t, models.EscalationManager, escalationFor(res, ts, 0))

	ts.CriticalSentimentThreshold = -0.9
	assert.Equal(t, models.EscalationSupervisor, escalationFor(res, ts, 0))
}

func TestEvaluateIsDeterministic(t *testing.T) {
	engine := newTestEngine(t, 2)
	res := result(models.SentimentNegative, -0.45, 0.7, false)

	first, err := engine.Evaluate(context.Background(), res, "h1", "g1", "bad")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Evaluate(context.Background(), res, "h1", "g1", "bad")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEvaluateCustomKeywordRule(t *testing.T) {
	engine := newTestEngine(t, 0)
	engine.AddRule(Rule{
		Name:       "safety_keywords",
		Conditions: []Condition{KeywordMatch{Keywords: []string{"fire", "smoke"}}},
	})

	evaluation, err := engine.Evaluate(context.Background(),
		result(models.SentimentNeutral, 0.0, 0.9, false), "h1", "g1", "I smell smoke in the hallway")
	require.NoError(t, err)

	assert.True(t, evaluation.ShouldAlert)
	assert.Contains(t, evaluation.MatchedActions, "safety_keywords")
}

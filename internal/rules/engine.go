package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/guest-sentry/internal/models"
	"go.uber.org/zap"
)

// recentNegativeWindowHours is the trailing window for consecutive-negative
// counting.
const recentNegativeWindowHours = 24

// EvalContext carries everything a condition may inspect besides the
// classification result itself.
type EvalContext struct {
	Thresholds          models.ThresholdSet
	RecentNegativeCount int
	Text                string
}

// Condition is one typed check inside a rule. The closed set of variants
// makes malformed rule shapes unrepresentable.
type Condition interface {
	Met(result models.ClassificationResult, ectx EvalContext) bool
	Describe() string
}

type ScoreBelow struct{ Threshold float64 }

func (c ScoreBelow) Met(result models.ClassificationResult, _ EvalContext) bool {
	return result.Score < c.Threshold
}
func (c ScoreBelow) Describe() string { return fmt.Sprintf("score_below(%.2f)", c.Threshold) }

type ConfidenceBelow struct{ Threshold float64 }

func (c ConfidenceBelow) Met(result models.ClassificationResult, _ EvalContext) bool {
	return result.Confidence < c.Threshold
}
func (c ConfidenceBelow) Describe() string { return fmt.Sprintf("confidence_below(%.2f)", c.Threshold) }

type RequiresAttention struct{}

func (RequiresAttention) Met(result models.ClassificationResult, _ EvalContext) bool {
	return result.RequiresAttention
}
func (RequiresAttention) Describe() string { return "requires_attention" }

type ConsecutiveNegative struct{ Count int }

func (c ConsecutiveNegative) Met(_ models.ClassificationResult, ectx EvalContext) bool {
	return ectx.RecentNegativeCount >= c.Count
}
func (c ConsecutiveNegative) Describe() string { return fmt.Sprintf("consecutive_negative(%d)", c.Count) }

type KeywordMatch struct{ Keywords []string }

func (c KeywordMatch) Met(_ models.ClassificationResult, ectx EvalContext) bool {
	text := strings.ToLower(ectx.Text)
	for _, keyword := range c.Keywords {
		if strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
func (c KeywordMatch) Describe() string {
	return fmt.Sprintf("keyword_match(%s)", strings.Join(c.Keywords, ","))
}

// Rule fires when all of its conditions hold.
type Rule struct {
	Name       string
	Conditions []Condition
}

func (r Rule) fires(result models.ClassificationResult, ectx EvalContext) bool {
	for _, condition := range r.Conditions {
		if !condition.Met(result, ectx) {
			return false
		}
	}
	return len(r.Conditions) > 0
}

// Evaluation is the engine's verdict for one classification.
type Evaluation struct {
	ShouldAlert         bool
	EscalationLevel     models.EscalationLevel
	UrgencyLevel        int
	MatchedActions      []string
	RecentNegativeCount int
}

// HistoryProvider supplies the trailing-window negative count. The engine
// treats it as an injected input so rule evaluation stays pure.
type HistoryProvider interface {
	CountRecentNegative(ctx context.Context, guestID, hotelID string, windowHours int) (int, error)
}

// Engine evaluates a hotel's rules against a classification result and
// decides whether and how urgently staff must be alerted.
type Engine struct {
	thresholds *Manager
	history    HistoryProvider
	extraRules []Rule
	logger     *zap.Logger
}

func NewEngine(thresholds *Manager, history HistoryProvider, logger *zap.Logger) *Engine {
	return &Engine{
		thresholds: thresholds,
		history:    history,
		logger:     logger,
	}
}

// AddRule appends a hotel-defined rule evaluated after the built-in set.
func (e *Engine) AddRule(rule Rule) {
	e.extraRules = append(e.extraRules, rule)
}

// Evaluate applies the built-in alert conditions and the escalation ladder.
// Identical inputs always produce the identical verdict.
func (e *Engine) Evaluate(ctx context.Context, result models.ClassificationResult, hotelID, guestID, text string) (Evaluation, error) {
	thresholds := e.thresholds.Thresholds(ctx, hotelID)

	recentNegative, err := e.history.CountRecentNegative(ctx, guestID, hotelID, recentNegativeWindowHours)
	if err != nil {
		// History is advisory: evaluate without it rather than dropping the
		// message on the floor.
		e.logger.Warn("Failed to count recent negative messages",
			zap.Error(err),
			zap.String("guest_id", guestID),
			zap.String("hotel_id", hotelID))
		recentNegative = 0
	}

	ectx := EvalContext{
		Thresholds:          thresholds,
		RecentNegativeCount: recentNegative,
		Text:                text,
	}

	evaluation := Evaluation{
		RecentNegativeCount: recentNegative,
		EscalationLevel:     models.EscalationNone,
	}

	for _, rule := range e.builtinRules(thresholds) {
		if rule.fires(result, ectx) {
			evaluation.ShouldAlert = true
			evaluation.MatchedActions = append(evaluation.MatchedActions, rule.Name)
		}
	}
	for _, rule := range e.extraRules {
		if rule.fires(result, ectx) {
			evaluation.ShouldAlert = true
			evaluation.MatchedActions = append(evaluation.MatchedActions, rule.Name)
		}
	}

	evaluation.EscalationLevel = escalationFor(result, thresholds, recentNegative)
	evaluation.UrgencyLevel = models.UrgencyFor(evaluation.EscalationLevel)

	e.logger.Debug("Rules evaluated",
		zap.String("hotel_id", hotelID),
		zap.String("guest_id", guestID),
		zap.Bool("should_alert", evaluation.ShouldAlert),
		zap.String("escalation_level", string(evaluation.EscalationLevel)),
		zap.Strings("matched", evaluation.MatchedActions))
	return evaluation, nil
}

// builtinRules expresses the alert disjunction as one rule per branch, so
// MatchedActions names every reason that fired.
func (e *Engine) builtinRules(ts models.ThresholdSet) []Rule {
	return []Rule{
		{
			Name:       "requires_attention",
			Conditions: []Condition{RequiresAttention{}},
		},
		{
			Name:       "negative_sentiment",
			Conditions: []Condition{ScoreBelow{Threshold: ts.NegativeSentimentThreshold}},
		},
		{
			// A positive label at low confidence is a likely-sarcastic
			// false positive.
			Name: "low_confidence_positive",
			Conditions: []Condition{
				labelIs{models.SentimentPositive},
				ConfidenceBelow{Threshold: ts.LowConfidenceThreshold},
			},
		},
		{
			Name:       "consecutive_negative",
			Conditions: []Condition{ConsecutiveNegative{Count: ts.ConsecutiveNegativeThreshold}},
		},
	}
}

// labelIs is internal to the built-in rule set.
type labelIs struct{ label models.SentimentLabel }

func (c labelIs) Met(result models.ClassificationResult, _ EvalContext) bool {
	return result.Label == c.label
}
func (c labelIs) Describe() string { return fmt.Sprintf("label_is(%s)", c.label) }

// escalationFor walks the ladder in fixed priority order; the highest match
// wins.
func escalationFor(result models.ClassificationResult, ts models.ThresholdSet, recentNegative int) models.EscalationLevel {
	switch {
	case result.Score < ts.CriticalSentimentThreshold:
		return models.EscalationManager
	case result.Score < ts.VeryNegativeThreshold:
		return models.EscalationSupervisor
	case result.RequiresAttention:
		return models.EscalationSupervisor
	case recentNegative >= ts.EscalationNegativeCount:
		return models.EscalationSupervisor
	case result.Score < ts.NegativeSentimentThreshold:
		return models.EscalationStaff
	default:
		return models.EscalationNone
	}
}

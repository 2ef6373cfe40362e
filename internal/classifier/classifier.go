package classifier

import (
	"context"
	"strings"

	"github.com/xaenox/guest-sentry/internal/models"
)

// Classifier analyzes guest message sentiment. Implementations never fail:
// they always return a best-effort result.
type Classifier interface {
	Classify(ctx context.Context, req models.ClassificationRequest) models.ClassificationResult
}

// fallbackConfidence marks keyword-derived results as degraded quality.
const fallbackConfidence = 0.3

// KeywordClassifier is the deterministic fallback used when the AI path is
// unavailable: it counts positive and negative keyword matches and lets the
// majority decide.
type KeywordClassifier struct {
	positive []string
	negative []string
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		positive: []string{
			"great", "good", "excellent", "wonderful", "amazing",
			"perfect", "fantastic", "love", "thank", "comfortable",
			"clean", "friendly", "helpful",
		},
		negative: []string{
			"terrible", "awful", "horrible", "dirty", "broken",
			"rude", "disgusting", "worst", "bad", "noisy",
			"unacceptable", "refund", "complaint", "disappointed",
		},
	}
}

func (c *KeywordClassifier) Classify(ctx context.Context, req models.ClassificationRequest) models.ClassificationResult {
	text := strings.ToLower(req.Text)

	var matched []string
	positives, negatives := 0, 0
	for _, word := range c.positive {
		if strings.Contains(text, word) {
			positives++
			matched = append(matched, word)
		}
	}
	for _, word := range c.negative {
		if strings.Contains(text, word) {
			negatives++
			matched = append(matched, word)
		}
	}

	label := models.SentimentNeutral
	score := 0.0
	switch {
	case negatives > positives:
		label = models.SentimentNegative
		score = -0.5
	case positives > negatives:
		label = models.SentimentPositive
		score = 0.5
	}

	result := models.NewClassificationResult(label, score, fallbackConfidence, false,
		"keyword fallback classification", matched)
	result.Fallback = true
	return result
}

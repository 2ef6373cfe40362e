package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xaenox/guest-sentry/internal/cache"
	"github.com/xaenox/guest-sentry/internal/gateway"
	"github.com/xaenox/guest-sentry/internal/models"
	"go.uber.org/zap"
)

const sentimentOp = "sentiment_analysis"

// parseFallbackConfidence is assigned when the AI answered but its payload
// could not be parsed into the expected structure.
const parseFallbackConfidence = 0.5

// aiPayload is the structured response the prompt demands from the model.
type aiPayload struct {
	Sentiment         string   `json:"sentiment"`
	Score             float64  `json:"score"`
	Confidence        float64  `json:"confidence"`
	RequiresAttention bool     `json:"requires_attention"`
	Reason            string   `json:"reason"`
	Keywords          []string `json:"keywords"`
}

// Completer is the slice of the AI gateway the classifier needs.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (gateway.CompletionResult, error)
}

// SentimentClassifier classifies guest messages through the AI gateway with
// caching and a deterministic keyword fallback. Gateway failures of any kind
// degrade to the fallback; they never propagate.
type SentimentClassifier struct {
	gateway            Completer
	cache              cache.Cache
	fallback           *KeywordClassifier
	logger             *zap.Logger
	model              string
	maxTokens          int
	attentionThreshold float64
}

func NewSentimentClassifier(completer Completer, responseCache cache.Cache, model string, maxTokens int, attentionThreshold float64, logger *zap.Logger) *SentimentClassifier {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &SentimentClassifier{
		gateway:            completer,
		cache:              responseCache,
		fallback:           NewKeywordClassifier(),
		logger:             logger,
		model:              model,
		maxTokens:          maxTokens,
		attentionThreshold: attentionThreshold,
	}
}

func (c *SentimentClassifier) Classify(ctx context.Context, req models.ClassificationRequest) models.ClassificationResult {
	params := map[string]string{
		"language": req.Language,
		"hotel_id": req.HotelID,
	}

	if payload, ok := c.cache.Get(ctx, sentimentOp, c.model, req.Text, params); ok {
		var cached models.ClassificationResult
		if err := json.Unmarshal([]byte(payload), &cached); err == nil {
			c.logger.Debug("Classification served from cache",
				zap.String("hotel_id", req.HotelID))
			return cached
		}
	}

	prompt := c.buildPrompt(req)

	completion, err := c.gateway.Complete(ctx, prompt, c.maxTokens)
	if err != nil {
		c.logger.Warn("AI path unavailable, using keyword fallback",
			zap.Error(err),
			zap.String("hotel_id", req.HotelID),
			zap.String("guest_id", req.GuestID))
		// Fallback results are low quality and intentionally not cached so
		// the next attempt retries the AI path.
		return c.fallback.Classify(ctx, req)
	}

	result := c.parse(completion.Content)
	result = c.normalize(result)

	if payload, marshalErr := json.Marshal(result); marshalErr == nil {
		c.cache.Set(ctx, sentimentOp, c.model, req.Text, params, string(payload))
	}
	return result
}

func (c *SentimentClassifier) buildPrompt(req models.ClassificationRequest) string {
	language := req.Language
	if language == "" {
		language = "en"
	}
	return fmt.Sprintf(`You are a hotel guest-experience analyst. Analyze the sentiment of the guest message below (language: %s).

Rules:
- sentiment must be one of: positive, negative, neutral, requires_attention
- score is a number in [-1, 1], confidence a number in [0, 1]
- requires_attention is reserved for score below %.1f or safety-critical language (threats, medical emergencies, security issues)

Return ONLY a JSON object with this structure, no other text:
{
    "sentiment": "negative",
    "score": -0.6,
    "confidence": 0.9,
    "requires_attention": false,
    "reason": "brief_explanation",
    "keywords": ["keyword1", "keyword2"]
}

Guest message: %s`, language, c.attentionThreshold, req.Text)
}

// parse decodes the AI payload, rescuing an embedded JSON fragment if the
// model wrapped it in prose; a neutral low-confidence result stands in when
// nothing parseable remains.
func (c *SentimentClassifier) parse(content string) models.ClassificationResult {
	content = strings.TrimSpace(content)

	var payload aiPayload
	if err := json.Unmarshal([]byte(content), &payload); err == nil {
		return c.fromPayload(payload)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err == nil {
			return c.fromPayload(payload)
		}
	}

	c.logger.Error("Failed to parse AI response, returning neutral result",
		zap.String("response", content))
	return models.NewClassificationResult(models.SentimentNeutral, 0, parseFallbackConfidence, false,
		"unparseable analysis response", nil)
}

func (c *SentimentClassifier) fromPayload(payload aiPayload) models.ClassificationResult {
	label := models.SentimentLabel(payload.Sentiment)
	switch label {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral, models.SentimentRequiresAttention:
	default:
		label = models.SentimentNeutral
	}
	return models.NewClassificationResult(label, payload.Score, payload.Confidence,
		payload.RequiresAttention, payload.Reason, payload.Keywords)
}

// normalize forces the attention label whenever the score crosses the
// attention threshold or the model set the flag itself, regardless of the
// sentiment it claimed. The model may flag a politely worded message for
// safety-critical language, so the flag, not the label, is authoritative.
func (c *SentimentClassifier) normalize(result models.ClassificationResult) models.ClassificationResult {
	if result.Score <= c.attentionThreshold {
		result.RequiresAttention = true
	}
	if result.RequiresAttention {
		result.Label = models.SentimentRequiresAttention
		if result.Score > 0 {
			result.Score = -result.Score
		}
	}
	return result
}

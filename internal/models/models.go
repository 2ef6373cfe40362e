package models

import "time"

// SentimentLabel is the classifier's verdict for a guest message.
type SentimentLabel string

const (
	SentimentPositive          SentimentLabel = "positive"
	SentimentNegative          SentimentLabel = "negative"
	SentimentNeutral           SentimentLabel = "neutral"
	SentimentRequiresAttention SentimentLabel = "requires_attention"
)

// GuestMessage is an inbound message handed to the core by the job runner.
type GuestMessage struct {
	ID        string    `json:"id"`
	HotelID   string    `json:"hotel_id"`
	GuestID   string    `json:"guest_id"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// ClassificationRequest is built once per analysis call and never mutated.
type ClassificationRequest struct {
	Text        string `json:"text"`
	Language    string `json:"language"`
	HotelID     string `json:"hotel_id"`
	GuestID     string `json:"guest_id"`
	ContextHash string `json:"context_hash,omitempty"`
}

// ClassificationResult is the normalized outcome of sentiment analysis.
// Score is in [-1,1], Confidence in [0,1]; the label and the score sign
// always agree.
type ClassificationResult struct {
	Label             SentimentLabel `json:"sentiment_label"`
	Score             float64        `json:"score"`
	Confidence        float64        `json:"confidence"`
	RequiresAttention bool           `json:"requires_attention"`
	Reason            string         `json:"reason,omitempty"`
	Keywords          []string       `json:"keywords,omitempty"`
	Fallback          bool           `json:"fallback,omitempty"`
}

// NewClassificationResult clamps score and confidence to their ranges and
// reconciles the score sign with the label.
func NewClassificationResult(label SentimentLabel, score, confidence float64, requiresAttention bool, reason string, keywords []string) ClassificationResult {
	score = Clamp(score, -1, 1)
	confidence = Clamp(confidence, 0, 1)

	switch label {
	case SentimentPositive:
		if score < 0 {
			score = -score
		}
	case SentimentNegative, SentimentRequiresAttention:
		if score > 0 {
			score = -score
		}
	}

	return ClassificationResult{
		Label:             label,
		Score:             score,
		Confidence:        confidence,
		RequiresAttention: requiresAttention,
		Reason:            reason,
		Keywords:          keywords,
	}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

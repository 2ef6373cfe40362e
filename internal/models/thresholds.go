package models

import "fmt"

// ThresholdSet holds a hotel's alerting knobs. All sentiment thresholds are
// in [-1, 0]; response times are minutes keyed by urgency level.
type ThresholdSet struct {
	NegativeSentimentThreshold   float64     `json:"negative_sentiment_threshold"`
	VeryNegativeThreshold        float64     `json:"very_negative_threshold"`
	CriticalSentimentThreshold   float64     `json:"critical_sentiment_threshold"`
	AttentionThreshold           float64     `json:"attention_threshold"`
	LowConfidenceThreshold       float64     `json:"low_confidence_threshold"`
	ConsecutiveNegativeThreshold int         `json:"consecutive_negative_threshold"`
	EscalationNegativeCount      int         `json:"escalation_negative_count"`
	ResponseTimeMinutes          map[int]int `json:"response_time_minutes"`

	// LowConfidence marks a recommended set derived from too little history.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// DefaultThresholds are the global defaults every hotel inherits.
func DefaultThresholds() ThresholdSet {
	return ThresholdSet{
		NegativeSentimentThreshold:   -0.3,
		VeryNegativeThreshold:        -0.6,
		CriticalSentimentThreshold:   -0.8,
		AttentionThreshold:           -0.7,
		LowConfidenceThreshold:       0.4,
		ConsecutiveNegativeThreshold: 3,
		EscalationNegativeCount:      5,
		ResponseTimeMinutes: map[int]int{
			5: 5,
			4: 15,
			3: 30,
			2: 60,
			1: 120,
		},
	}
}

// ThresholdPatch is a partially specified ThresholdSet as stored per hotel.
// Nil fields inherit the defaults; unknown JSON fields are ignored so the
// stored shape stays forward-compatible.
type ThresholdPatch struct {
	NegativeSentimentThreshold   *float64    `json:"negative_sentiment_threshold,omitempty"`
	VeryNegativeThreshold        *float64    `json:"very_negative_threshold,omitempty"`
	CriticalSentimentThreshold   *float64    `json:"critical_sentiment_threshold,omitempty"`
	AttentionThreshold           *float64    `json:"attention_threshold,omitempty"`
	LowConfidenceThreshold       *float64    `json:"low_confidence_threshold,omitempty"`
	ConsecutiveNegativeThreshold *int        `json:"consecutive_negative_threshold,omitempty"`
	EscalationNegativeCount      *int        `json:"escalation_negative_count,omitempty"`
	ResponseTimeMinutes          map[int]int `json:"response_time_minutes,omitempty"`
}

// Apply merges the patch over base field by field.
func (p *ThresholdPatch) Apply(base ThresholdSet) ThresholdSet {
	if p == nil {
		return base
	}
	if p.NegativeSentimentThreshold != nil {
		base.NegativeSentimentThreshold = *p.NegativeSentimentThreshold
	}
	if p.VeryNegativeThreshold != nil {
		base.VeryNegativeThreshold = *p.VeryNegativeThreshold
	}
	if p.CriticalSentimentThreshold != nil {
		base.CriticalSentimentThreshold = *p.CriticalSentimentThreshold
	}
	if p.AttentionThreshold != nil {
		base.AttentionThreshold = *p.AttentionThreshold
	}
	if p.LowConfidenceThreshold != nil {
		base.LowConfidenceThreshold = *p.LowConfidenceThreshold
	}
	if p.ConsecutiveNegativeThreshold != nil {
		base.ConsecutiveNegativeThreshold = *p.ConsecutiveNegativeThreshold
	}
	if p.EscalationNegativeCount != nil {
		base.EscalationNegativeCount = *p.EscalationNegativeCount
	}
	for urgency, minutes := range p.ResponseTimeMinutes {
		if base.ResponseTimeMinutes == nil {
			base.ResponseTimeMinutes = map[int]int{}
		}
		base.ResponseTimeMinutes[urgency] = minutes
	}
	return base
}

// Validate rejects patches that would produce a nonsensical configuration.
// A rejected patch leaves the stored configuration untouched.
func (p *ThresholdPatch) Validate() error {
	check := func(name string, v *float64) error {
		if v != nil && (*v < -1 || *v > 0) {
			return fmt.Errorf("%w: %s %.2f outside [-1, 0]", ErrValidation, name, *v)
		}
		return nil
	}
	if err := check("negative_sentiment_threshold", p.NegativeSentimentThreshold); err != nil {
		return err
	}
	if err := check("very_negative_threshold", p.VeryNegativeThreshold); err != nil {
		return err
	}
	if err := check("critical_sentiment_threshold", p.CriticalSentimentThreshold); err != nil {
		return err
	}
	if err := check("attention_threshold", p.AttentionThreshold); err != nil {
		return err
	}
	if p.LowConfidenceThreshold != nil && (*p.LowConfidenceThreshold < 0 || *p.LowConfidenceThreshold > 1) {
		return fmt.Errorf("%w: low_confidence_threshold %.2f outside [0, 1]", ErrValidation, *p.LowConfidenceThreshold)
	}
	if p.CriticalSentimentThreshold != nil && p.NegativeSentimentThreshold != nil &&
		*p.CriticalSentimentThreshold > *p.NegativeSentimentThreshold {
		return fmt.Errorf("%w: critical threshold %.2f above negative threshold %.2f",
			ErrValidation, *p.CriticalSentimentThreshold, *p.NegativeSentimentThreshold)
	}
	if p.ConsecutiveNegativeThreshold != nil && *p.ConsecutiveNegativeThreshold < 1 {
		return fmt.Errorf("%w: consecutive_negative_threshold must be positive", ErrValidation)
	}
	if p.EscalationNegativeCount != nil && *p.EscalationNegativeCount < 1 {
		return fmt.Errorf("%w: escalation_negative_count must be positive", ErrValidation)
	}
	for urgency, minutes := range p.ResponseTimeMinutes {
		if urgency < 1 || urgency > 5 {
			return fmt.Errorf("%w: urgency level %d outside [1, 5]", ErrValidation, urgency)
		}
		if minutes < 1 {
			return fmt.Errorf("%w: response time for urgency %d must be positive", ErrValidation, urgency)
		}
	}
	return nil
}

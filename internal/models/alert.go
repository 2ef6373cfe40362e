package models

import "time"

// AlertStatus is the lifecycle state of a staff alert.
type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertEscalated    AlertStatus = "escalated"
	AlertCancelled    AlertStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s AlertStatus) Terminal() bool {
	return s == AlertResolved || s == AlertCancelled
}

// EscalationLevel is the ordered target of alert ownership.
type EscalationLevel string

const (
	EscalationNone       EscalationLevel = "none"
	EscalationStaff      EscalationLevel = "staff"
	EscalationSupervisor EscalationLevel = "supervisor"
	EscalationManager    EscalationLevel = "manager"
)

// rank orders escalation levels so "highest match wins" is comparable.
func (l EscalationLevel) rank() int {
	switch l {
	case EscalationStaff:
		return 1
	case EscalationSupervisor:
		return 2
	case EscalationManager:
		return 3
	default:
		return 0
	}
}

// Above reports whether l outranks other.
func (l EscalationLevel) Above(other EscalationLevel) bool {
	return l.rank() > other.rank()
}

// UrgencyFor maps an escalation level to the 1-5 urgency scale that drives
// response deadlines and channel breadth.
func UrgencyFor(level EscalationLevel) int {
	switch level {
	case EscalationManager:
		return 5
	case EscalationSupervisor:
		return 4
	case EscalationStaff:
		return 3
	default:
		return 1
	}
}

// Channel is an outbound notification transport.
type Channel string

const (
	ChannelDashboard Channel = "dashboard"
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelWebhook   Channel = "webhook"
	ChannelChatOps   Channel = "chatops"
	ChannelChatOps2  Channel = "chatops_secondary"
)

// EscalationRecord is an append-only entry in an alert's escalation history.
type EscalationRecord struct {
	Level       int       `json:"level"`
	EscalatedTo string    `json:"escalated_to"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// StaffAlert is a request for human attention on a guest conversation. It is
// never deleted; it only reaches a terminal status.
type StaffAlert struct {
	ID                 string             `json:"id"`
	HotelID            string             `json:"hotel_id"`
	GuestID            string             `json:"guest_id"`
	MessageID          string             `json:"message_id"`
	AlertType          string             `json:"alert_type"`
	Priority           EscalationLevel    `json:"priority"`
	Status             AlertStatus        `json:"status"`
	SentimentScore     float64            `json:"sentiment_score"`
	UrgencyLevel       int                `json:"urgency_level"`
	ResponseRequiredBy time.Time          `json:"response_required_by"`
	CreatedAt          time.Time          `json:"created_at"`
	AcknowledgedAt     *time.Time         `json:"acknowledged_at,omitempty"`
	AcknowledgedBy     string             `json:"acknowledged_by,omitempty"`
	ResolvedAt         *time.Time         `json:"resolved_at,omitempty"`
	ResolvedBy         string             `json:"resolved_by,omitempty"`
	EscalationHistory  []EscalationRecord `json:"escalation_history,omitempty"`
	CorrelationID      string             `json:"correlation_id,omitempty"`
}

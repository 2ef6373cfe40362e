package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/rules"
	"github.com/xaenox/guest-sentry/internal/storage"
	"go.uber.org/zap"
)

// Lifecycle owns the staff-alert state machine. Mutations to a single alert
// are serialized per alert id, since acknowledgment and overdue escalation
// can race.
type Lifecycle struct {
	store      storage.AlertStore
	thresholds *rules.Manager
	router     *Router
	logger     *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func NewLifecycle(store storage.AlertStore, thresholds *rules.Manager, router *Router, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:      store,
		thresholds: thresholds,
		router:     router,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
		now:        time.Now,
	}
}

// Create opens a pending alert for a guest message. The response deadline
// comes from the hotel's per-urgency response times.
func (l *Lifecycle) Create(ctx context.Context, msg models.GuestMessage, result models.ClassificationResult, evaluation rules.Evaluation, correlationID string) (*models.StaffAlert, error) {
	thresholds := l.thresholds.Thresholds(ctx, msg.HotelID)
	minutes, ok := thresholds.ResponseTimeMinutes[evaluation.UrgencyLevel]
	if !ok {
		minutes = thresholds.ResponseTimeMinutes[1]
	}

	now := l.now()
	alert := &models.StaffAlert{
		ID:                 uuid.New().String(),
		HotelID:            msg.HotelID,
		GuestID:            msg.GuestID,
		MessageID:          msg.ID,
		AlertType:          "negative_sentiment",
		Priority:           evaluation.EscalationLevel,
		Status:             models.AlertPending,
		SentimentScore:     result.Score,
		UrgencyLevel:       evaluation.UrgencyLevel,
		ResponseRequiredBy: now.Add(time.Duration(minutes) * time.Minute),
		CreatedAt:          now,
		CorrelationID:      correlationID,
	}

	if err := l.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("error creating alert: %v", err)
	}

	l.logger.Info("Staff alert created",
		zap.String("alert_id", alert.ID),
		zap.String("hotel_id", alert.HotelID),
		zap.String("guest_id", alert.GuestID),
		zap.Int("urgency", alert.UrgencyLevel),
		zap.Time("response_required_by", alert.ResponseRequiredBy),
		zap.String("correlation_id", correlationID))
	return alert, nil
}

// Acknowledge marks a pending or escalated alert as being handled. Accepting
// escalated here is what stops the overdue sweep from re-escalating forever.
func (l *Lifecycle) Acknowledge(ctx context.Context, alertID, by string) error {
	return l.transition(ctx, alertID, func(alert *models.StaffAlert) error {
		if alert.Status != models.AlertPending && alert.Status != models.AlertEscalated {
			return fmt.Errorf("%w: cannot acknowledge alert in status %s", models.ErrInvalidTransition, alert.Status)
		}
		now := l.now()
		alert.Status = models.AlertAcknowledged
		alert.AcknowledgedAt = &now
		alert.AcknowledgedBy = by
		return nil
	})
}

// Resolve closes an alert from any non-terminal state.
func (l *Lifecycle) Resolve(ctx context.Context, alertID, by string) error {
	return l.transition(ctx, alertID, func(alert *models.StaffAlert) error {
		if alert.Status.Terminal() {
			return fmt.Errorf("%w: cannot resolve alert in status %s", models.ErrInvalidTransition, alert.Status)
		}
		now := l.now()
		alert.Status = models.AlertResolved
		alert.ResolvedAt = &now
		alert.ResolvedBy = by
		return nil
	})
}

// Cancel is the manual override, valid from any non-terminal state.
func (l *Lifecycle) Cancel(ctx context.Context, alertID, by string) error {
	return l.transition(ctx, alertID, func(alert *models.StaffAlert) error {
		if alert.Status.Terminal() {
			return fmt.Errorf("%w: cannot cancel alert in status %s", models.ErrInvalidTransition, alert.Status)
		}
		alert.Status = models.AlertCancelled
		alert.ResolvedBy = by
		return nil
	})
}

// CheckOverdue escalates every alert whose response deadline has passed and
// re-notifies at the widened channel set. Escalation is idempotent per
// overdue period: the history, not just the status, is consulted, and each
// escalation pushes the deadline forward so further overdue time can raise
// the alert again to a higher level. Returns the number escalated.
func (l *Lifecycle) CheckOverdue(ctx context.Context) (int, error) {
	overdue, err := l.store.ListOverdue(ctx, l.now())
	if err != nil {
		return 0, fmt.Errorf("error listing overdue alerts: %v", err)
	}

	escalated := 0
	for _, candidate := range overdue {
		if l.escalate(ctx, candidate.ID) {
			escalated++
		}
	}
	return escalated, nil
}

func (l *Lifecycle) escalate(ctx context.Context, alertID string) bool {
	unlock := l.lock(alertID)
	defer unlock()

	// Re-fetch under the lock: an acknowledge may have won the race.
	alert, err := l.store.GetAlert(ctx, alertID)
	if err != nil {
		l.logger.Error("Failed to load overdue alert", zap.Error(err), zap.String("alert_id", alertID))
		return false
	}

	now := l.now()
	if alert.Status != models.AlertPending && alert.Status != models.AlertEscalated {
		return false
	}
	if !now.After(alert.ResponseRequiredBy) {
		return false
	}
	if n := len(alert.EscalationHistory); n > 0 {
		last := alert.EscalationHistory[n-1]
		if !last.Timestamp.Before(alert.ResponseRequiredBy) {
			// Already escalated for this deadline.
			return false
		}
	}

	owner := nextOwner(alert.Priority)
	urgency := alert.UrgencyLevel + 1
	if urgency > 5 {
		urgency = 5
	}

	record := models.EscalationRecord{
		Level:       len(alert.EscalationHistory) + 1,
		EscalatedTo: string(owner),
		Reason:      fmt.Sprintf("no response by %s", alert.ResponseRequiredBy.Format(time.RFC3339)),
		Timestamp:   now,
	}
	alert.EscalationHistory = append(alert.EscalationHistory, record)
	alert.Status = models.AlertEscalated
	alert.Priority = owner
	alert.UrgencyLevel = urgency

	thresholds := l.thresholds.Thresholds(ctx, alert.HotelID)
	minutes, ok := thresholds.ResponseTimeMinutes[urgency]
	if !ok {
		minutes = 5
	}
	alert.ResponseRequiredBy = now.Add(time.Duration(minutes) * time.Minute)

	if err := l.store.UpdateAlert(ctx, alert); err != nil {
		l.logger.Error("Failed to persist escalation", zap.Error(err), zap.String("alert_id", alertID))
		return false
	}

	l.logger.Warn("Alert escalated",
		zap.String("alert_id", alert.ID),
		zap.String("escalated_to", string(owner)),
		zap.Int("escalation_level", record.Level),
		zap.Int("urgency", urgency),
		zap.String("correlation_id", alert.CorrelationID))

	if err := l.router.Dispatch(ctx, alert); err != nil {
		l.logger.Error("Escalation dispatch failed",
			zap.Error(err),
			zap.String("alert_id", alert.ID),
			zap.String("correlation_id", alert.CorrelationID))
	}
	return true
}

// transition runs a mutation under the alert's lock and persists it.
func (l *Lifecycle) transition(ctx context.Context, alertID string, mutate func(*models.StaffAlert) error) error {
	unlock := l.lock(alertID)
	defer unlock()

	alert, err := l.store.GetAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if err := mutate(alert); err != nil {
		return err
	}
	if err := l.store.UpdateAlert(ctx, alert); err != nil {
		return fmt.Errorf("error updating alert: %v", err)
	}

	l.logger.Info("Alert transition",
		zap.String("alert_id", alert.ID),
		zap.String("status", string(alert.Status)),
		zap.String("correlation_id", alert.CorrelationID))
	return nil
}

// lock returns the unlock function for the alert's keyed mutex.
func (l *Lifecycle) lock(alertID string) func() {
	l.locksMu.Lock()
	mu, exists := l.locks[alertID]
	if !exists {
		mu = &sync.Mutex{}
		l.locks[alertID] = mu
	}
	l.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func nextOwner(current models.EscalationLevel) models.EscalationLevel {
	switch current {
	case models.EscalationNone:
		return models.EscalationStaff
	case models.EscalationStaff:
		return models.EscalationSupervisor
	default:
		return models.EscalationManager
	}
}

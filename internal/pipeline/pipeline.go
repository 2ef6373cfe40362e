package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/xaenox/guest-sentry/internal/alerts"
	"github.com/xaenox/guest-sentry/internal/classifier"
	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/rules"
	"github.com/xaenox/guest-sentry/internal/storage"
	"go.uber.org/zap"
)

// Outcome is what one message produced: always a classification, and an
// alert when the rules demanded one.
type Outcome struct {
	CorrelationID  string
	Classification models.ClassificationResult
	Evaluation     rules.Evaluation
	Alert          *models.StaffAlert
}

// Pipeline runs classify → evaluate → alert → notify for one guest message.
// The job runner invokes Handle concurrently across conversations; every
// stage is safe under that concurrency. If the conversation was closed
// mid-analysis the caller simply discards the Outcome.
type Pipeline struct {
	classifier classifier.Classifier
	engine     *rules.Engine
	lifecycle  *alerts.Lifecycle
	router     *alerts.Router
	history    storage.HistoryStore
	logger     *zap.Logger
}

func New(clf classifier.Classifier, engine *rules.Engine, lifecycle *alerts.Lifecycle, router *alerts.Router, history storage.HistoryStore, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		classifier: clf,
		engine:     engine,
		lifecycle:  lifecycle,
		router:     router,
		history:    history,
		logger:     logger,
	}
}

// Handle processes one inbound guest message. Classification never fails;
// alert creation and persistence errors are returned since they are real
// precondition violations.
func (p *Pipeline) Handle(ctx context.Context, msg models.GuestMessage) (Outcome, error) {
	correlationID := uuid.New().String()

	result := p.classifier.Classify(ctx, models.ClassificationRequest{
		Text:     msg.Text,
		Language: msg.Language,
		HotelID:  msg.HotelID,
		GuestID:  msg.GuestID,
	})

	p.logger.Info("Message classified",
		zap.String("correlation_id", correlationID),
		zap.String("message_id", msg.ID),
		zap.String("label", string(result.Label)),
		zap.Float64("score", result.Score),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("fallback", result.Fallback))

	if err := p.history.SaveClassification(ctx, msg, result); err != nil {
		// History feeds consecutive-negative counting; losing one row
		// degrades that signal but must not block alerting.
		p.logger.Error("Failed to persist classification",
			zap.Error(err),
			zap.String("correlation_id", correlationID))
	}

	evaluation, err := p.engine.Evaluate(ctx, result, msg.HotelID, msg.GuestID, msg.Text)
	if err != nil {
		return Outcome{CorrelationID: correlationID, Classification: result}, err
	}

	outcome := Outcome{
		CorrelationID:  correlationID,
		Classification: result,
		Evaluation:     evaluation,
	}
	if !evaluation.ShouldAlert {
		return outcome, nil
	}

	alert, err := p.lifecycle.Create(ctx, msg, result, evaluation, correlationID)
	if err != nil {
		return outcome, err
	}
	outcome.Alert = alert

	if err := p.router.Dispatch(ctx, alert); err != nil {
		p.logger.Error("Alert dispatch failed on all channels",
			zap.Error(err),
			zap.String("alert_id", alert.ID),
			zap.String("correlation_id", correlationID))
	}
	return outcome, nil
}

package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/guest-sentry/internal/alerts"
	"github.com/xaenox/guest-sentry/internal/cache"
	"github.com/xaenox/guest-sentry/internal/classifier"
	"github.com/xaenox/guest-sentry/internal/gateway"
	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/notify"
	"github.com/xaenox/guest-sentry/internal/rules"
	"github.com/xaenox/guest-sentry/internal/storage"
	"go.uber.org/zap"
)

type scriptedCompleter struct {
	content string
	err     error
}

func (c *scriptedCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (gateway.CompletionResult, error) {
	if c.err != nil {
		return gateway.CompletionResult{}, c.err
	}
	return gateway.CompletionResult{Content: c.content}, nil
}

type channelRecorder struct {
	mu       sync.Mutex
	channels []models.Channel
}

func (s *channelRecorder) Send(ctx context.Context, channel models.Channel, recipients []string, subject, body string) (notify.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channel)
	return notify.Delivery{Status: "delivered"}, nil
}

func newTestPipeline(t *testing.T, completer classifier.Completer) (*Pipeline, *storage.MemoryStorage, *channelRecorder) {
	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	sender := &channelRecorder{}

	clf := classifier.NewSentimentClassifier(completer, cache.NewMemoryCache(time.Hour),
		"test-model", 300, -0.7, logger)
	thresholds := rules.NewManager(store, models.DefaultThresholds(), logger)
	engine := rules.NewEngine(thresholds, store, logger)
	router := alerts.NewRouter(sender, alerts.Recipients{}, logger)
	lifecycle := alerts.NewLifecycle(store, thresholds, router, logger)

	return New(clf, engine, lifecycle, router, store, logger), store, sender
}

func guestMessage(text string) models.GuestMessage {
	return models.GuestMessage{
		ID:        "m1",
		HotelID:   "h1",
		GuestID:   "g1",
		Text:      text,
		Language:  "en",
		CreatedAt: time.Now(),
	}
}

func TestHandleTerribleStayWithAIDownAlertsStaff(t *testing.T) {
	// The AI path is down: the keyword fallback still produces a negative
	// classification that crosses the default negative threshold.
	p, _, sender := newTestPipeline(t, &scriptedCompleter{err: models.ErrCircuitOpen})

	outcome, err := p.Handle(context.Background(),
		guestMessage("This is terrible, the room is dirty and staff was awful"))
	require.NoError(t, err)

	assert.Equal(t, models.SentimentNegative, outcome.Classification.Label)
	assert.Equal(t, -0.5, outcome.Classification.Score)
	assert.Equal(t, 0.3, outcome.Classification.Confidence)
	assert.True(t, outcome.Classification.Fallback)

	assert.True(t, outcome.Evaluation.ShouldAlert)
	assert.Equal(t, models.EscalationStaff, outcome.Evaluation.EscalationLevel)

	require.NotNil(t, outcome.Alert)
	assert.Equal(t, models.AlertPending, outcome.Alert.Status)
	assert.Equal(t, 3, outcome.Alert.UrgencyLevel)
	assert.NotEmpty(t, outcome.CorrelationID)
	assert.Equal(t, outcome.CorrelationID, outcome.Alert.CorrelationID)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Contains(t, sender.channels, models.ChannelEmail)
	assert.Contains(t, sender.channels, models.ChannelWebhook)
}

func TestHandleCriticalSentimentEscalatesToManager(t *testing.T) {
	p, _, sender := newTestPipeline(t, &scriptedCompleter{
		content: `{"sentiment":"negative","score":-0.85,"confidence":0.95,"requires_attention":true,"reason":"guest furious","keywords":["terrible","dirty"]}`,
	})

	outcome, err := p.Handle(context.Background(),
		guestMessage("This is terrible, the room is dirty and staff was awful"))
	require.NoError(t, err)

	// -0.85 sits below the attention threshold, so the label is forced.
	assert.Equal(t, models.SentimentRequiresAttention, outcome.Classification.Label)
	assert.Equal(t, models.EscalationManager, outcome.Evaluation.EscalationLevel)

	require.NotNil(t, outcome.Alert)
	assert.Equal(t, 5, outcome.Alert.UrgencyLevel)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), outcome.Alert.ResponseRequiredBy, 5*time.Second,
		"urgency 5 demands a response within 5 minutes")

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.ElementsMatch(t, []models.Channel{
		models.ChannelEmail, models.ChannelSMS, models.ChannelWebhook,
		models.ChannelChatOps, models.ChannelChatOps2,
	}, sender.channels)
}

func TestHandleNeutralMessageDoesNotAlert(t *testing.T) {
	p, _, sender := newTestPipeline(t, &scriptedCompleter{err: models.ErrTimeout})

	outcome, err := p.Handle(context.Background(), guestMessage("The room is fine"))
	require.NoError(t, err)

	assert.Equal(t, models.SentimentNeutral, outcome.Classification.Label)
	assert.Equal(t, 0.0, outcome.Classification.Score)
	assert.False(t, outcome.Evaluation.ShouldAlert)
	assert.Nil(t, outcome.Alert)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Empty(t, sender.channels, "no alert means no notifications")
}

func TestHandlePersistsClassificationHistory(t *testing.T) {
	p, store, _ := newTestPipeline(t, &scriptedCompleter{
		content: `{"sentiment":"negative","score":-0.4,"confidence":0.8}`,
	})
	ctx := context.Background()

	_, err := p.Handle(ctx, guestMessage("bad pillow"))
	require.NoError(t, err)

	count, err := store.CountRecentNegative(ctx, "g1", "h1", 24)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandleConcurrentMessages(t *testing.T) {
	p, _, _ := newTestPipeline(t, &scriptedCompleter{
		content: `{"sentiment":"negative","score":-0.5,"confidence":0.9}`,
	})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Handle(context.Background(),
				guestMessage("the heating is broken"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

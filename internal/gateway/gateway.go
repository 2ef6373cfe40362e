package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/guest-sentry/internal/cache"
	"github.com/xaenox/guest-sentry/internal/models"
	"go.uber.org/zap"
)

const completionOp = "chat_completion"

// CompletionResult is the parsed outcome of one upstream AI call.
type CompletionResult struct {
	Content          string `json:"content"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Cached           bool   `json:"cached,omitempty"`
}

// Upstream is the raw AI completion call, separated so tests can substitute
// the vendor client.
type Upstream interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (CompletionResult, error)
}

// OpenAIUpstream calls the vendor chat completion endpoint.
type OpenAIUpstream struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAIUpstream(apiKey, model string, temperature float64) *OpenAIUpstream {
	return &OpenAIUpstream{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: float32(temperature),
	}
}

func (u *OpenAIUpstream) Complete(ctx context.Context, prompt string, maxTokens int) (CompletionResult, error) {
	resp, err := u.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: u.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: u.temperature,
	})
	if err != nil {
		return CompletionResult{}, err
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("empty choices in completion response")
	}
	return CompletionResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Stats is a snapshot of gateway counters for observability.
type Stats struct {
	Requests     int64
	CacheHits    int64
	RateLimited  int64
	CircuitOpen  int64
	Timeouts     int64
	Upstream     int64
	TokensUsed   int64
	TotalLatency time.Duration
}

// Gateway composes the rate limiter, circuit breaker and response cache
// around the upstream AI call. It is the only component that talks to the
// external AI endpoint.
type Gateway struct {
	upstream Upstream
	limiter  *RateLimiter
	breaker  *CircuitBreaker
	cache    cache.Cache
	logger   *zap.Logger

	model           string
	upstreamTimeout time.Duration
	maxAcquireTries int

	statsMu sync.Mutex
	stats   Stats

	sleep func(time.Duration)
	now   func() time.Time
}

type Options struct {
	Model           string
	UpstreamTimeout time.Duration
	MaxAcquireTries int
}

func New(upstream Upstream, limiter *RateLimiter, breaker *CircuitBreaker, responseCache cache.Cache, opts Options, logger *zap.Logger) *Gateway {
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = 30 * time.Second
	}
	if opts.MaxAcquireTries <= 0 {
		opts.MaxAcquireTries = 5
	}
	return &Gateway{
		upstream:        upstream,
		limiter:         limiter,
		breaker:         breaker,
		cache:           responseCache,
		logger:          logger,
		model:           opts.Model,
		upstreamTimeout: opts.UpstreamTimeout,
		maxAcquireTries: opts.MaxAcquireTries,
		sleep:           time.Sleep,
		now:             time.Now,
	}
}

// EstimateTokens approximates prompt token cost as length/4 plus a 10%
// safety margin.
func EstimateTokens(prompt string) int {
	return int(float64(len(prompt)/4) * 1.10)
}

// Complete runs one AI completion through the cache, rate limiter and
// circuit breaker. Failures are one of ErrRateLimited, ErrCircuitOpen,
// ErrTimeout, ErrUpstream.
func (g *Gateway) Complete(ctx context.Context, prompt string, maxTokens int) (CompletionResult, error) {
	correlationID := uuid.New().String()
	params := map[string]string{"max_tokens": fmt.Sprintf("%d", maxTokens)}

	if payload, ok := g.cache.Get(ctx, completionOp, g.model, prompt, params); ok {
		var cached CompletionResult
		if err := json.Unmarshal([]byte(payload), &cached); err == nil {
			cached.Cached = true
			g.record(func(s *Stats) { s.CacheHits++ })
			g.logger.Debug("Completion served from cache",
				zap.String("correlation_id", correlationID))
			return cached, nil
		}
		// Unreadable payload: fall through to the live path.
	}

	estimated := EstimateTokens(prompt) + maxTokens

	acquired := false
	for attempt := 0; attempt < g.maxAcquireTries; attempt++ {
		if g.limiter.Acquire(estimated) {
			acquired = true
			break
		}
		if attempt+1 == g.maxAcquireTries {
			// No attempt left to back off for: fail fast.
			break
		}
		wait := g.limiter.WaitTime() + time.Second
		g.logger.Info("Rate limit window full, backing off",
			zap.String("correlation_id", correlationID),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait))
		g.sleep(wait)
	}
	if !acquired {
		g.record(func(s *Stats) { s.RateLimited++ })
		g.audit(correlationID, "rate_limited", 0, 0, models.ErrRateLimited)
		return CompletionResult{}, fmt.Errorf("%w: %d acquire attempts exhausted", models.ErrRateLimited, g.maxAcquireTries)
	}

	var result CompletionResult
	start := g.now()
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.upstreamTimeout)
		defer cancel()

		var callErr error
		result, callErr = g.upstream.Complete(callCtx, prompt, maxTokens)
		if callErr != nil && errors.Is(callErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: after %s", models.ErrTimeout, g.upstreamTimeout)
		}
		if callErr != nil {
			return fmt.Errorf("%w: %v", models.ErrUpstream, callErr)
		}
		return nil
	})
	latency := g.now().Sub(start)

	if err != nil {
		switch {
		case errors.Is(err, models.ErrCircuitOpen):
			g.record(func(s *Stats) { s.CircuitOpen++ })
		case errors.Is(err, models.ErrTimeout):
			g.record(func(s *Stats) { s.Timeouts++ })
		default:
			g.record(func(s *Stats) { s.Upstream++ })
		}
		g.audit(correlationID, "failure", latency, 0, err)
		return CompletionResult{}, err
	}

	tokens := result.PromptTokens + result.CompletionTokens
	g.record(func(s *Stats) {
		s.Requests++
		s.TokensUsed += int64(tokens)
		s.TotalLatency += latency
	})
	g.audit(correlationID, "success", latency, tokens, nil)

	if payload, marshalErr := json.Marshal(result); marshalErr == nil {
		g.cache.Set(ctx, completionOp, g.model, prompt, params, string(payload))
	}
	return result, nil
}

// Stats returns a snapshot of the gateway counters.
func (g *Gateway) Stats() Stats {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	return g.stats
}

func (g *Gateway) record(update func(*Stats)) {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	update(&g.stats)
}

// audit emits one structured entry per attempt, success or failure.
func (g *Gateway) audit(correlationID, outcome string, latency time.Duration, tokens int, err error) {
	fields := []zap.Field{
		zap.String("correlation_id", correlationID),
		zap.String("operation", completionOp),
		zap.String("model", g.model),
		zap.String("outcome", outcome),
		zap.Duration("latency", latency),
		zap.Int("tokens", tokens),
	}
	if err != nil {
		g.logger.Warn("AI completion attempt failed", append(fields, zap.Error(err))...)
		return
	}
	g.logger.Info("AI completion attempt", fields...)
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xaenox/guest-sentry/internal/alerts"
	"github.com/xaenox/guest-sentry/internal/models"
	"github.com/xaenox/guest-sentry/internal/pipeline"
	"go.uber.org/zap"
)

const popTimeout = 5 * time.Second

// Runner consumes guest messages from a redis list and feeds them to the
// pipeline with bounded concurrency, and owns the periodic overdue sweep.
// Delivery is at-least-once: a message that fails mid-pipeline is pushed
// back for retry.
type Runner struct {
	client      *redis.Client
	pipeline    *pipeline.Pipeline
	lifecycle   *alerts.Lifecycle
	queue       string
	concurrency int
	interval    time.Duration
	logger      *zap.Logger
}

func NewRunner(client *redis.Client, p *pipeline.Pipeline, lifecycle *alerts.Lifecycle, queue string, concurrency int, overdueInterval time.Duration, logger *zap.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	if overdueInterval <= 0 {
		overdueInterval = time.Minute
	}
	return &Runner{
		client:      client,
		pipeline:    p,
		lifecycle:   lifecycle,
		queue:       queue,
		concurrency: concurrency,
		interval:    overdueInterval,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled. With no redis client configured only
// the overdue sweep runs; message intake then belongs entirely to an
// external job runner.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.sweepOverdue(ctx)
	}()

	if r.client != nil {
		for i := 0; i < r.concurrency; i++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				r.consume(ctx, worker)
			}(i)
		}
	}

	wg.Wait()
}

func (r *Runner) consume(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}

		values, err := r.client.BLPop(ctx, popTimeout, r.queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.logger.Error("Queue pop failed", zap.Error(err), zap.Int("worker", worker))
			time.Sleep(time.Second)
			continue
		}
		if len(values) < 2 {
			continue
		}

		var msg models.GuestMessage
		if err := json.Unmarshal([]byte(values[1]), &msg); err != nil {
			r.logger.Error("Dropping unparseable guest message",
				zap.Error(err),
				zap.Int("worker", worker))
			continue
		}

		if _, err := r.pipeline.Handle(ctx, msg); err != nil {
			r.logger.Error("Pipeline failed, requeueing message",
				zap.Error(err),
				zap.String("message_id", msg.ID),
				zap.Int("worker", worker))
			if pushErr := r.client.RPush(ctx, r.queue, values[1]).Err(); pushErr != nil {
				r.logger.Error("Requeue failed, message lost",
					zap.Error(pushErr),
					zap.String("message_id", msg.ID))
			}
		}
	}
}

func (r *Runner) sweepOverdue(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			escalated, err := r.lifecycle.CheckOverdue(ctx)
			if err != nil {
				r.logger.Error("Overdue check failed", zap.Error(err))
				continue
			}
			if escalated > 0 {
				r.logger.Info("Overdue alerts escalated", zap.Int("count", escalated))
			}
		}
	}
}

package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/guest-sentry/internal/models"
	"go.uber.org/zap"
)

// BreakerState is the circuit breaker's gate position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a failing dependency after maxFailures
// consecutive failures and probes for recovery after resetTimeout. Exactly
// one caller is admitted as the half-open probe; concurrent callers during
// the probe fail fast as if the breaker were open.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time

	now func() time.Time
}

func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger,
		state:        BreakerClosed,
		now:          time.Now,
	}
}

// Call executes op according to the breaker state. In open it fails fast
// with ErrCircuitOpen without running op; in half-open only the admitted
// probe runs and its outcome decides the next state.
func (b *CircuitBreaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	opErr := op(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		if opErr != nil {
			b.state = BreakerOpen
			b.openedAt = b.now()
			b.logger.Warn("Circuit breaker probe failed, reopening",
				zap.String("breaker", b.name),
				zap.Error(opErr))
			return opErr
		}
		b.state = BreakerClosed
		b.failures = 0
		b.logger.Info("Circuit breaker closed after successful probe",
			zap.String("breaker", b.name))
		return nil
	}

	if opErr != nil {
		b.failures++
		if b.state == BreakerClosed && b.failures >= b.maxFailures {
			b.state = BreakerOpen
			b.openedAt = b.now()
			b.logger.Error("Circuit breaker opened",
				zap.String("breaker", b.name),
				zap.Int("failures", b.failures))
		}
		return opErr
	}

	b.failures = 0
	return nil
}

// admit decides whether the caller may proceed, and whether it is the
// half-open probe.
func (b *CircuitBreaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return false, nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false, fmt.Errorf("%w: %s open for %s", models.ErrCircuitOpen, b.name, b.now().Sub(b.openedAt))
		}
		// Cool-down elapsed: this caller becomes the single probe.
		b.state = BreakerHalfOpen
		b.logger.Info("Circuit breaker half-open, probing",
			zap.String("breaker", b.name))
		return true, nil
	case BreakerHalfOpen:
		// A probe is already in flight.
		return false, fmt.Errorf("%w: %s probe in flight", models.ErrCircuitOpen, b.name)
	default:
		return false, fmt.Errorf("%w: %s in unknown state", models.ErrCircuitOpen, b.name)
	}
}

// State reports the current gate position.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

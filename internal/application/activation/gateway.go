package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultAttemptTimeout bounds a single activation attempt
const DefaultAttemptTimeout = 15 * time.Second

// Strategy is one way of starting an application
type Strategy = ports.Activator

// ErrStrategyNotApplicable is returned by a strategy that cannot handle an identifier
var ErrStrategyNotApplicable = domain.ErrStrategyNotApplicable

// ErrAttemptTimeout is returned when an attempt exceeds its timeout
var ErrAttemptTimeout = errors.New("activation attempt timed out")

// Attempt describes one strategy invocation
type Attempt struct {
	Strategy string        `json:"strategy"`
	PID      uint32        `json:"pid,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the attempt issued the start request
func (a Attempt) Succeeded() bool {
	return !a.Skipped && a.Err == nil
}

// Outcome is the result of a successful activation
type Outcome struct {
	Strategy string
	PID      uint32
	Attempts []Attempt
}

// Observer is called after every attempt
type Observer func(Attempt)

// Gateway activates applications through an ordered list of strategies
type Gateway struct {
	strategies     []Strategy
	attemptTimeout time.Duration
	clock          clockwork.Clock
	metrics        ports.MetricsCollector
	logger         *zap.Logger
}

// NewGateway creates a new activation gateway
func NewGateway(
	strategies []Strategy,
	attemptTimeout time.Duration,
	clock clockwork.Clock,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Gateway {
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &Gateway{
		strategies:     strategies,
		attemptTimeout: attemptTimeout,
		clock:          clock,
		metrics:        metrics,
		logger:         logger,
	}
}

// Strategies returns the strategy names in order
func (g *Gateway) Strategies() []string {
	names := make([]string, len(g.strategies))
	for i, s := range g.strategies {
		names[i] = s.Name()
	}
	return names
}

// Activate requests the OS to start the application. At most one strategy
// succeeds per call; caller cancellation stops the walk without trying the
// remaining strategies.
func (g *Gateway) Activate(ctx context.Context, identifier, arguments string, observe Observer) (*Outcome, error) {
	if observe == nil {
		observe = func(Attempt) {}
	}

	outcome := &Outcome{}
	var errs []error

	for _, strategy := range g.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt := g.attempt(ctx, strategy, identifier, arguments)

		// The caller gave up while the attempt was in flight
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		outcome.Attempts = append(outcome.Attempts, attempt)
		observe(attempt)

		if attempt.Skipped {
			continue
		}

		g.metrics.RecordActivationAttempt(attempt.Strategy, attempt.Err == nil)

		if attempt.Err != nil {
			g.logger.Warn("activation attempt failed",
				zap.String("strategy", attempt.Strategy),
				zap.String("identifier", identifier),
				zap.Duration("duration", attempt.Duration),
				zap.Error(attempt.Err))
			errs = append(errs, fmt.Errorf("%s: %w", attempt.Strategy, attempt.Err))
			continue
		}

		g.logger.Info("application activated",
			zap.String("strategy", attempt.Strategy),
			zap.String("identifier", identifier),
			zap.Uint32("pid", attempt.PID))

		outcome.Strategy = attempt.Strategy
		outcome.PID = attempt.PID
		return outcome, nil
	}

	if len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no strategy can activate %q", identifier))
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrActivationFailed, errors.Join(errs...))
}

// attempt runs one strategy under the attempt timeout. A strategy that
// ignores its context is abandoned when the timeout fires.
func (g *Gateway) attempt(ctx context.Context, strategy Strategy, identifier, arguments string) Attempt {
	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	type result struct {
		pid uint32
		err error
	}

	started := g.clock.Now()
	resultCh := make(chan result, 1)
	go func() {
		pid, err := strategy.Activate(attemptCtx, identifier, arguments)
		resultCh <- result{pid: pid, err: err}
	}()

	attempt := Attempt{Strategy: strategy.Name()}

	select {
	case r := <-resultCh:
		attempt.PID = r.pid
		attempt.Err = r.err
	case <-attemptCtx.Done():
		attempt.Err = ErrAttemptTimeout
		if ctx.Err() != nil {
			attempt.Err = ctx.Err()
		}
	}

	// A strategy that reports its own context deadline timed out
	if errors.Is(attempt.Err, context.DeadlineExceeded) && ctx.Err() == nil {
		attempt.Err = ErrAttemptTimeout
	}
	if errors.Is(attempt.Err, ErrStrategyNotApplicable) {
		attempt.Skipped = true
		attempt.Err = nil
	}
	attempt.Duration = g.clock.Since(started)

	return attempt
}

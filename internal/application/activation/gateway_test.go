package activation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStrategy struct {
	name  string
	pid   uint32
	err   error
	block bool
	calls atomic.Int32
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Activate(ctx context.Context, identifier, arguments string) (uint32, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return s.pid, s.err
}

type nopMetrics struct {
	attempts map[string]int
}

func (m *nopMetrics) RecordRunStarted() {}
func (m *nopMetrics) RecordRunFinished(string, time.Duration) {}
func (m *nopMetrics) RecordLaunchRejected(string) {}
func (m *nopMetrics) ObserveStageDuration(string, time.Duration) {}
func (m *nopMetrics) RecordValidation(string) {}
func (m *nopMetrics) RecordEnforcementFailure(string) {}
func (m *nopMetrics) SetActiveRuns(int) {}
func (m *nopMetrics) RecordWorkerPoolStatus(idle, busy, stopped int) {}
func (m *nopMetrics) RecordActivationAttempt(strategy string, ok bool) {
	if m.attempts == nil {
		m.attempts = map[string]int{}
	}
	m.attempts[strategy]++
}

func newGateway(t *testing.T, timeout time.Duration, strategies ...Strategy) (*Gateway, *nopMetrics) {
	metrics := &nopMetrics{}
	return NewGateway(strategies, timeout, clockwork.NewRealClock(), metrics, zaptest.NewLogger(t)), metrics
}

func TestActivatePrimarySucceeds(t *testing.T) {
	primary := &fakeStrategy{name: "app-activation", pid: 4242}
	secondary := &fakeStrategy{name: "shell-execute"}
	g, metrics := newGateway(t, time.Second, primary, secondary)

	outcome, err := g.Activate(context.Background(), "Publisher.Game_abc!App", "", nil)

	require.NoError(t, err)
	assert.Equal(t, "app-activation", outcome.Strategy)
	assert.Equal(t, uint32(4242), outcome.PID)
	assert.Len(t, outcome.Attempts, 1)
	assert.Equal(t, int32(0), secondary.calls.Load())
	assert.Equal(t, 1, metrics.attempts["app-activation"])
}

func TestActivateFallsThroughOnFailure(t *testing.T) {
	primary := &fakeStrategy{name: "app-activation", err: errors.New("access denied")}
	secondary := &fakeStrategy{name: "shell-execute"}
	g, _ := newGateway(t, time.Second, primary, secondary)

	var observed []Attempt
	outcome, err := g.Activate(context.Background(), "Publisher.Game_abc!App", "", func(a Attempt) {
		observed = append(observed, a)
	})

	require.NoError(t, err)
	assert.Equal(t, "shell-execute", outcome.Strategy)
	assert.Zero(t, outcome.PID)
	require.Len(t, observed, 2)
	assert.False(t, observed[0].Succeeded())
	assert.True(t, observed[1].Succeeded())
}

func TestActivateSkipsNotApplicable(t *testing.T) {
	primary := &fakeStrategy{name: "app-activation", err: ErrStrategyNotApplicable}
	secondary := &fakeStrategy{name: "shell-execute"}
	g, metrics := newGateway(t, time.Second, primary, secondary)

	outcome, err := g.Activate(context.Background(), "steam://rungameid/1245620", "", nil)

	require.NoError(t, err)
	assert.Equal(t, "shell-execute", outcome.Strategy)
	assert.True(t, outcome.Attempts[0].Skipped)
	assert.Zero(t, metrics.attempts["app-activation"])
}

func TestActivateTimeoutFallsThrough(t *testing.T) {
	primary := &fakeStrategy{name: "app-activation", block: true}
	secondary := &fakeStrategy{name: "shell-execute"}
	g, _ := newGateway(t, 20*time.Millisecond, primary, secondary)

	outcome, err := g.Activate(context.Background(), "Publisher.Game_abc!App", "", nil)

	require.NoError(t, err)
	assert.Equal(t, "shell-execute", outcome.Strategy)
	assert.ErrorIs(t, outcome.Attempts[0].Err, ErrAttemptTimeout)
}

func TestActivateExhausted(t *testing.T) {
	primary := &fakeStrategy{name: "app-activation", err: errors.New("package not registered")}
	secondary := &fakeStrategy{name: "shell-execute", err: errors.New("file not found")}
	g, _ := newGateway(t, time.Second, primary, secondary)

	_, err := g.Activate(context.Background(), "Missing.App!App", "", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrActivationFailed)
	assert.Equal(t, domain.KindActivationFailed, domain.KindOf(err))
	assert.Contains(t, err.Error(), "package not registered")
	assert.Contains(t, err.Error(), "file not found")
}

func TestActivateCancellationSkipsFallback(t *testing.T) {
	primary := &fakeStrategy{name: "app-activation", block: true}
	secondary := &fakeStrategy{name: "shell-execute"}
	g, _ := newGateway(t, 5*time.Second, primary, secondary)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := g.Activate(ctx, "Publisher.Game_abc!App", "", nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), secondary.calls.Load())
}

func TestStrategies(t *testing.T) {
	g, _ := newGateway(t, 0, &fakeStrategy{name: "a"}, &fakeStrategy{name: "b"})
	assert.Equal(t, []string{"a", "b"}, g.Strategies())
	assert.Equal(t, DefaultAttemptTimeout, g.attemptTimeout)
}

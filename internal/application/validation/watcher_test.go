package validation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	uris []string
	err  error
}

func (d *recordingDispatcher) OpenURI(ctx context.Context, uri string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uris = append(d.uris, uri)
	return d.err
}

// scriptedTitles returns titles as a function of time elapsed since it was created
type scriptedTitles struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	start  time.Time
	script func(elapsed time.Duration) []string
	calls  int
}

func newScriptedTitles(clock clockwork.Clock, script func(time.Duration) []string) *scriptedTitles {
	return &scriptedTitles{clock: clock, start: clock.Now(), script: script}
}

func (s *scriptedTitles) Titles(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := s.script(s.clock.Since(s.start))
	s.calls++
	return titles, nil
}

func (s *scriptedTitles) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type watchResult struct {
	session *domain.ValidationSession
	err     error
}

type stateLog struct {
	mu     sync.Mutex
	states []domain.WatchState
}

func (l *stateLog) observe(s *domain.ValidationSession) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s.State)
}

func (l *stateLog) all() []domain.WatchState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.WatchState(nil), l.states...)
}

// runTicks starts Watch and advances the fake clock one poll at a time for
// the given number of ticks, waiting for each sample before the next tick.
func runTicks(t *testing.T, w *Watcher, clock *clockwork.FakeClock, src *scriptedTitles, ticks int, log *stateLog) watchResult {
	t.Helper()

	done := make(chan watchResult, 1)
	go func() {
		s, err := w.Watch(context.Background(), "1245620", log.observe)
		done <- watchResult{session: s, err: err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	for i := 1; i <= ticks; i++ {
		clock.Advance(w.Config().PollInterval)
		want := i
		require.Eventually(t, func() bool { return src.Calls() >= want }, 2*time.Second, time.Millisecond,
			"sample %d never taken", want)
	}

	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not finish")
		return watchResult{}
	}
}

func TestWatchFinishesAfterQuietPeriod(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	dispatcher := &recordingDispatcher{}
	src := newScriptedTitles(clock, func(elapsed time.Duration) []string {
		if elapsed < 3*time.Second {
			return []string{"Steam", "Validating Skate. - 42%"}
		}
		return []string{"Steam"}
	})
	w := NewWatcher(dispatcher, src, clock, DefaultConfig(), zaptest.NewLogger(t))
	log := &stateLog{}

	// Last sighting on the 2.5s sample, DONE five seconds later
	r := runTicks(t, w, clock, src, 15, log)

	require.NoError(t, r.err)
	assert.Equal(t, domain.WatchDone, r.session.State)
	assert.False(t, r.session.Fallback)
	assert.Equal(t, 7500*time.Millisecond, r.session.DoneAt.Sub(start))
	assert.Equal(t, []domain.WatchState{
		domain.WatchInit, domain.WatchWatching, domain.WatchQuiet, domain.WatchDone,
	}, log.all())
	assert.Equal(t, []string{"steam://validate/1245620"}, dispatcher.uris)
}

func TestWatchReturnsToWatchingWhenKeywordReappears(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	src := newScriptedTitles(clock, func(elapsed time.Duration) []string {
		if elapsed < 2*time.Second || (elapsed >= 4*time.Second && elapsed < 5*time.Second) {
			return []string{"Verifying installation"}
		}
		return []string{"Steam"}
	})
	cfg := Config{PollInterval: time.Second, QuietPeriod: 3 * time.Second, FallbackCeiling: time.Minute}
	w := NewWatcher(&recordingDispatcher{}, src, clock, cfg, zaptest.NewLogger(t))
	log := &stateLog{}

	r := runTicks(t, w, clock, src, 7, log)

	require.NoError(t, r.err)
	assert.False(t, r.session.Fallback)
	assert.Equal(t, 7*time.Second, r.session.DoneAt.Sub(start))
	assert.Equal(t, []domain.WatchState{
		domain.WatchInit, domain.WatchWatching, domain.WatchQuiet,
		domain.WatchWatching, domain.WatchQuiet, domain.WatchDone,
	}, log.all())
}

func TestWatchFallsBackWithoutSignal(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	src := newScriptedTitles(clock, func(time.Duration) []string { return []string{"Steam"} })
	cfg := Config{PollInterval: time.Second, QuietPeriod: 5 * time.Second, FallbackCeiling: 10 * time.Second}
	w := NewWatcher(&recordingDispatcher{}, src, clock, cfg, zaptest.NewLogger(t))

	r := runTicks(t, w, clock, src, 10, &stateLog{})

	require.NoError(t, r.err)
	assert.True(t, r.session.Fallback)
	assert.Equal(t, domain.FallbackNoSignal, r.session.Reason)
	assert.Equal(t, 10*time.Second, r.session.DoneAt.Sub(start))
}

func TestWatchCeilingAppliesWhileWatching(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := newScriptedTitles(clock, func(time.Duration) []string { return []string{"Updating Skate."} })
	cfg := Config{PollInterval: time.Second, QuietPeriod: 5 * time.Second, FallbackCeiling: 4 * time.Second}
	w := NewWatcher(&recordingDispatcher{}, src, clock, cfg, zaptest.NewLogger(t))

	r := runTicks(t, w, clock, src, 4, &stateLog{})

	require.NoError(t, r.err)
	assert.True(t, r.session.Fallback)
	assert.Equal(t, domain.FallbackCeiling, r.session.Reason)
	assert.True(t, r.session.SeenAny)
}

func TestWatchTriggerFailureFallsBackImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := newScriptedTitles(clock, func(time.Duration) []string { return nil })
	dispatcher := &recordingDispatcher{err: errors.New("no handler for steam://")}
	w := NewWatcher(dispatcher, src, clock, DefaultConfig(), zaptest.NewLogger(t))
	log := &stateLog{}

	session, err := w.Watch(context.Background(), "1245620", log.observe)

	require.NoError(t, err)
	assert.Equal(t, domain.WatchDone, session.State)
	assert.True(t, session.Fallback)
	assert.Equal(t, domain.FallbackTriggerFailed, session.Reason)
	assert.Equal(t, 0, src.Calls())
	assert.Equal(t, []domain.WatchState{domain.WatchInit, domain.WatchDone}, log.all())
}

func TestWatchCancellation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := newScriptedTitles(clock, func(time.Duration) []string { return nil })
	w := NewWatcher(&recordingDispatcher{}, src, clock, DefaultConfig(), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan watchResult, 1)
	go func() {
		s, err := w.Watch(ctx, "1245620", nil)
		done <- watchResult{session: s, err: err}
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	select {
	case r := <-done:
		assert.ErrorIs(t, r.err, context.Canceled)
		assert.NotEqual(t, domain.WatchDone, r.session.State)
	case <-time.After(2 * time.Second):
		t.Fatal("watch ignored cancellation")
	}
}

func TestWatchRealClockBound(t *testing.T) {
	src := newScriptedTitles(clockwork.NewRealClock(), func(time.Duration) []string { return nil })
	cfg := Config{PollInterval: 10 * time.Millisecond, QuietPeriod: 50 * time.Millisecond, FallbackCeiling: 100 * time.Millisecond}
	w := NewWatcher(&recordingDispatcher{}, src, clockwork.NewRealClock(), cfg, zaptest.NewLogger(t))

	started := time.Now()
	session, err := w.Watch(context.Background(), "7", nil)

	require.NoError(t, err)
	assert.True(t, session.Fallback)
	assert.Less(t, time.Since(started), time.Second)
}

func TestTriggerURIEscapesIdentifier(t *testing.T) {
	w := NewWatcher(&recordingDispatcher{}, nil, clockwork.NewFakeClock(), Config{Scheme: "steam"}, zaptest.NewLogger(t))
	assert.Equal(t, "steam://validate/12%2034", w.TriggerURI("12 34"))
}

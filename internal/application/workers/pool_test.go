package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type poolMetrics struct {
	mu                  sync.Mutex
	idle, busy, stopped int
	samples             int
}

func (m *poolMetrics) RecordRunStarted() {}
func (m *poolMetrics) RecordRunFinished(string, time.Duration) {}
func (m *poolMetrics) RecordLaunchRejected(string) {}
func (m *poolMetrics) ObserveStageDuration(string, time.Duration) {}
func (m *poolMetrics) RecordValidation(string) {}
func (m *poolMetrics) RecordActivationAttempt(string, bool) {}
func (m *poolMetrics) RecordEnforcementFailure(string) {}
func (m *poolMetrics) SetActiveRuns(int) {}
func (m *poolMetrics) RecordWorkerPoolStatus(idle, busy, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle, m.busy, m.stopped = idle, busy, stopped
	m.samples++
}

func (m *poolMetrics) Samples() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

func newTestPool(t *testing.T, size, queue int) (*Pool, *poolMetrics) {
	metrics := &poolMetrics{}
	p := NewPool(size, queue, metrics, zaptest.NewLogger(t), 10*time.Millisecond)
	require.NoError(t, p.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p, metrics
}

func TestPoolRunsJobs(t *testing.T) {
	p, _ := newTestPool(t, 2, 8)

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}

	wg.Wait()
	assert.Equal(t, int32(5), ran.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p, _ := newTestPool(t, 2, 8)

	var running, peak atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(context.Background(), func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		}))
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, p.QueueDepth())
	assert.Equal(t, 2, p.Health().GetStatus().BusyWorkers)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(2), peak.Load())
}

func TestPoolSurvivesPanics(t *testing.T) {
	p, _ := newTestPool(t, 1, 1)

	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive panic")
	}
	assert.True(t, p.Health().IsHealthy())
}

func TestPoolSubmitHonoursContext(t *testing.T) {
	p, _ := newTestPool(t, 1, 0)

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, p.Submit(context.Background(), func() { <-block }))

	// The only worker is busy and there is no queue
	require.Eventually(t, func() bool { return p.Health().GetStatus().BusyWorkers == 1 }, time.Second, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolTrySubmitRejectsWhenQueueFull(t *testing.T) {
	p, _ := newTestPool(t, 1, 1)

	block := make(chan struct{})
	require.NoError(t, p.TrySubmit(func() { <-block }))
	require.Eventually(t, func() bool { return p.Health().GetStatus().BusyWorkers == 1 }, time.Second, time.Millisecond)

	ran := make(chan struct{})
	require.NoError(t, p.TrySubmit(func() { close(ran) }))
	assert.Equal(t, 1, p.QueueDepth())

	start := time.Now()
	assert.ErrorIs(t, p.TrySubmit(func() {}), ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(block)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued job never ran")
	}
	require.Eventually(t, func() bool { return p.TrySubmit(func() {}) == nil }, time.Second, time.Millisecond)
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	p := NewPool(1, 1, &poolMetrics{}, zaptest.NewLogger(t), time.Second)
	require.NoError(t, p.Start())
	require.NoError(t, p.Shutdown(context.Background()))

	assert.ErrorIs(t, p.Submit(context.Background(), func() {}), ErrPoolClosed)
	assert.ErrorIs(t, p.TrySubmit(func() {}), ErrPoolClosed)
	assert.ErrorIs(t, p.Start(), ErrPoolClosed)
	for _, status := range p.GetStatus() {
		assert.Equal(t, WorkerStatusStopped, status)
	}
}

func TestHealthMonitorRecordsMetrics(t *testing.T) {
	_, metrics := newTestPool(t, 3, 1)

	require.Eventually(t, func() bool { return metrics.Samples() >= 2 }, time.Second, 5*time.Millisecond)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 3, metrics.idle+metrics.busy)
	assert.Zero(t, metrics.stopped)
}

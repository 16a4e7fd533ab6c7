package enforcer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSetter struct {
	priorities  map[uint32]uint32
	masks       map[uint32]uint64
	priorityErr error
	affinityErr error
	calls       int
}

func newFakeSetter() *fakeSetter {
	return &fakeSetter{priorities: map[uint32]uint32{}, masks: map[uint32]uint64{}}
}

func (f *fakeSetter) SetPriorityClass(pid uint32, class uint32) error {
	f.calls++
	if f.priorityErr != nil {
		return f.priorityErr
	}
	f.priorities[pid] = class
	return nil
}

func (f *fakeSetter) SetAffinityMask(pid uint32, mask uint64) error {
	f.calls++
	if f.affinityErr != nil {
		return f.affinityErr
	}
	f.masks[pid] = mask
	return nil
}

type cpus int

func (c cpus) LogicalProcessors() int { return int(c) }

type failureMetrics struct {
	failures []string
}

func (m *failureMetrics) RecordRunStarted() {}
func (m *failureMetrics) RecordRunFinished(string, time.Duration) {}
func (m *failureMetrics) RecordLaunchRejected(string) {}
func (m *failureMetrics) ObserveStageDuration(string, time.Duration) {}
func (m *failureMetrics) RecordValidation(string) {}
func (m *failureMetrics) RecordActivationAttempt(string, bool) {}
func (m *failureMetrics) SetActiveRuns(int) {}
func (m *failureMetrics) RecordWorkerPoolStatus(idle, busy, stopped int) {}
func (m *failureMetrics) RecordEnforcementFailure(attribute string) {
	m.failures = append(m.failures, attribute)
}

func newHandle(pid uint32) *domain.ProcessHandle {
	return domain.NewProcessHandle(domain.ProcessInfo{PID: pid, ImageName: "Skate.exe"})
}

func TestEnforceAutoAffinityOnEightCPUs(t *testing.T) {
	setter := newFakeSetter()
	e := NewEnforcer(setter, cpus(8), clockwork.NewFakeClock(), &failureMetrics{}, zaptest.NewLogger(t))
	handle := newHandle(4242)

	report, err := e.Enforce(context.Background(), handle, domain.PriorityHigh, domain.AutoAffinity())

	require.NoError(t, err)
	assert.Equal(t, domain.HighPriorityClass, setter.priorities[4242])
	assert.Equal(t, uint64(0xFE), setter.masks[4242])
	assert.True(t, report.PriorityApplied)
	assert.True(t, report.AffinityApplied)
	assert.Equal(t, uint64(0xFE), report.AffinityMask)
	assert.True(t, handle.Enforced())
	assert.Equal(t, uint64(0xFE), handle.Applied().AffinityMask)
}

func TestEnforceAffinityModes(t *testing.T) {
	tests := []struct {
		name     string
		cpus     int
		affinity domain.AffinitySpec
		wantMask uint64
		applied  bool
	}{
		{"single cpu auto", 1, domain.AutoAffinity(), 0x1, true},
		{"explicit mask", 8, domain.MaskAffinity(0x0C), 0x0C, true},
		{"none leaves affinity", 8, domain.NoAffinity(), 0, false},
		{"sixty four cpus", 64, domain.AutoAffinity(), ^uint64(0) &^ 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setter := newFakeSetter()
			e := NewEnforcer(setter, cpus(tt.cpus), clockwork.NewFakeClock(), &failureMetrics{}, zaptest.NewLogger(t))

			report, err := e.Enforce(context.Background(), newHandle(1), domain.PriorityNormal, tt.affinity)

			require.NoError(t, err)
			assert.Equal(t, tt.applied, report.AffinityApplied)
			mask, touched := setter.masks[1]
			assert.Equal(t, tt.applied, touched)
			assert.Equal(t, tt.wantMask, mask)
			assert.Equal(t, domain.NormalPriorityClass, setter.priorities[1])
		})
	}
}

func TestEnforceAttemptsBothAttributes(t *testing.T) {
	setter := newFakeSetter()
	setter.priorityErr = errors.New("access is denied")
	metrics := &failureMetrics{}
	e := NewEnforcer(setter, cpus(8), clockwork.NewFakeClock(), metrics, zaptest.NewLogger(t))

	report, err := e.Enforce(context.Background(), newHandle(9), domain.PriorityRealtime, domain.AutoAffinity())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEnforcementFailed)
	assert.Equal(t, domain.KindEnforcementFailed, domain.KindOf(err))
	assert.False(t, report.PriorityApplied)
	assert.True(t, report.AffinityApplied)
	assert.Equal(t, []string{AttributePriority}, metrics.failures)
}

func TestEnforceAtMostOnce(t *testing.T) {
	setter := newFakeSetter()
	e := NewEnforcer(setter, cpus(4), clockwork.NewFakeClock(), &failureMetrics{}, zaptest.NewLogger(t))
	handle := newHandle(77)

	first, err := e.Enforce(context.Background(), handle, domain.PriorityAboveNormal, domain.AutoAffinity())
	require.NoError(t, err)
	require.Equal(t, 2, setter.calls)

	second, err := e.Enforce(context.Background(), handle, domain.PriorityRealtime, domain.MaskAffinity(0x1))
	require.NoError(t, err)

	assert.Equal(t, 2, setter.calls)
	assert.True(t, second.Repeated)
	assert.Equal(t, first.AffinityMask, second.AffinityMask)
	assert.Equal(t, first.PriorityClass, second.PriorityClass)
}

func TestEnforceCancelledDoesNothing(t *testing.T) {
	setter := newFakeSetter()
	e := NewEnforcer(setter, cpus(4), clockwork.NewFakeClock(), &failureMetrics{}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Enforce(ctx, newHandle(5), domain.PriorityHigh, domain.AutoAffinity())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, setter.calls)
}

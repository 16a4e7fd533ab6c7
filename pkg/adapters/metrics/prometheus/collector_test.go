package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRunStarted()
	c.RecordRunStarted()
	c.RecordRunFinished("success", 3*time.Second)
	c.RecordLaunchRejected("already_running")
	c.RecordValidation("fallback")
	c.RecordActivationAttempt("app-activation", false)
	c.RecordActivationAttempt("shell-execute", true)
	c.RecordEnforcementFailure("affinity")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsFinished.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.launchRejected.WithLabelValues("already_running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.validations.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activationAttempts.WithLabelValues("app-activation", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activationAttempts.WithLabelValues("shell-execute", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.enforcementFailed.WithLabelValues("affinity")))
}

func TestCollectorGauges(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.SetActiveRuns(3)
	c.RecordWorkerPoolStatus(1, 2, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerPoolIdle))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.workerPoolBusy))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.workerPoolStopped))
}

func TestCollectorRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveStageDuration("RESOLVING", 250*time.Millisecond)
	c.RecordRunFinished("failed", time.Second)

	count, err := testutil.GatherAndCount(reg, "launchorch_stage_duration_seconds", "launchorch_run_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A second collector on a fresh registry does not collide
	assert.NotPanics(t, func() { NewCollector(prometheus.NewRegistry()) })
}

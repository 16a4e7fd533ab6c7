package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	runsStarted        prometheus.Counter
	runsFinished       *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	stageDuration      *prometheus.HistogramVec
	launchRejected     *prometheus.CounterVec
	validations        *prometheus.CounterVec
	activationAttempts *prometheus.CounterVec
	enforcementFailed  *prometheus.CounterVec
	activeRuns         prometheus.Gauge

	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered on reg.
// Pass prometheus.DefaultRegisterer to expose the metrics on the default /metrics handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "launchorch_runs_started_total",
				Help: "Total number of launch runs accepted",
			},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchorch_runs_finished_total",
				Help: "Total number of launch runs finished",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launchorch_run_duration_seconds",
				Help:    "Launch run duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
			},
			[]string{"outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "launchorch_stage_duration_seconds",
				Help:    "Time spent in each launch stage in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		launchRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchorch_launch_rejected_total",
				Help: "Total number of launch requests rejected before starting",
			},
			[]string{"reason"},
		),
		validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchorch_validation_total",
				Help: "Total number of validation sessions by result",
			},
			[]string{"result"},
		),
		activationAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchorch_activation_attempts_total",
				Help: "Total number of activation attempts by strategy",
			},
			[]string{"strategy", "result"},
		),
		enforcementFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "launchorch_enforcement_failures_total",
				Help: "Total number of attribute enforcement failures",
			},
			[]string{"attribute"},
		),
		activeRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launchorch_active_runs",
				Help: "Number of launch runs in flight",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launchorch_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launchorch_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "launchorch_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordRunStarted records an accepted launch
func (c *Collector) RecordRunStarted() {
	c.runsStarted.Inc()
}

// RecordRunFinished records a terminal run
func (c *Collector) RecordRunFinished(outcome string, duration time.Duration) {
	c.runsFinished.WithLabelValues(outcome).Inc()
	c.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordLaunchRejected records a launch refused before any transition
func (c *Collector) RecordLaunchRejected(reason string) {
	c.launchRejected.WithLabelValues(reason).Inc()
}

// ObserveStageDuration records time spent in a stage
func (c *Collector) ObserveStageDuration(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordValidation records the result of a validation session
func (c *Collector) RecordValidation(result string) {
	c.validations.WithLabelValues(result).Inc()
}

// RecordActivationAttempt records one activation strategy attempt
func (c *Collector) RecordActivationAttempt(strategy string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.activationAttempts.WithLabelValues(strategy, result).Inc()
}

// RecordEnforcementFailure records a failed attribute
func (c *Collector) RecordEnforcementFailure(attribute string) {
	c.enforcementFailed.WithLabelValues(attribute).Inc()
}

// SetActiveRuns sets the number of runs in flight
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

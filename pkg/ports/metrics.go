package ports

import "time"

// MetricsCollector records engine metrics
type MetricsCollector interface {
	RecordRunStarted()
	RecordRunFinished(outcome string, duration time.Duration)
	RecordLaunchRejected(reason string)
	ObserveStageDuration(stage string, duration time.Duration)
	RecordValidation(result string)
	RecordActivationAttempt(strategy string, success bool)
	RecordEnforcementFailure(attribute string)
	SetActiveRuns(count int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}

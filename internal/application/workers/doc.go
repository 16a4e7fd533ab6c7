// Package workers implements the execution lane that runs launch sequences.
//
// The worker pool manages a fixed number of goroutines that:
//   - Take queued jobs in submission order
//   - Run each job to completion, recovering panics so a worker survives
//   - Report idle, busy and stopped workers to the health monitor
//
// The health monitor samples worker status and records it as metrics.
package workers

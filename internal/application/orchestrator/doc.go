// Package orchestrator implements the launch state machine.
//
// The orchestrator manager coordinates a launch by:
//   - Validating the launch entry against the host
//   - Rejecting a second launch of an entry that still has a run in flight
//   - Driving VALIDATING, ACTIVATING, RESOLVING and ENFORCING on the execution lane
//   - Publishing every transition to the status event stream
//   - Recording the terminal result as the entry's last run
//
// The validator checks entries before any state transition happens.
package orchestrator

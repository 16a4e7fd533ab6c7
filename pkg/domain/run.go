package domain

import "time"

// RunState is a state of the orchestration state machine
type RunState string

const (
	RunStateIdle       RunState = "IDLE"
	RunStateValidating RunState = "VALIDATING"
	RunStateActivating RunState = "ACTIVATING"
	RunStateResolving  RunState = "RESOLVING"
	RunStateEnforcing  RunState = "ENFORCING"
	RunStateComplete   RunState = "COMPLETE"
	RunStateFailed     RunState = "FAILED"
	RunStateCancelled  RunState = "CANCELLED"
)

// IsTerminal reports whether no further transitions can happen from the state
func (s RunState) IsTerminal() bool {
	return s == RunStateComplete || s == RunStateFailed || s == RunStateCancelled
}

// Outcome is the terminal outcome of a run
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// OutcomeFor maps a terminal state to its outcome
func OutcomeFor(state RunState) Outcome {
	switch state {
	case RunStateComplete:
		return OutcomeSuccess
	case RunStateCancelled:
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

// LaunchResult is produced exactly once per run
type LaunchResult struct {
	RunID      string                 `json:"run_id"`
	EntryName  string                 `json:"entry"`
	Outcome    Outcome                `json:"outcome"`
	FinalState RunState               `json:"final_state"`
	StageTimes map[RunState]time.Time `json:"stage_times"`
	Error      *ErrorDetail           `json:"error,omitempty"`
	Process    *ProcessInfo           `json:"process,omitempty"`
	Validation *ValidationSummary     `json:"validation,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Duration returns the wall time of the run
func (r *LaunchResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Record returns the last-run record written back to the entry store
func (r *LaunchResult) Record() *RunRecord {
	rec := &RunRecord{
		RunID:      r.RunID,
		Outcome:    r.Outcome,
		FinalState: r.FinalState,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if r.Error != nil {
		rec.ErrorKind = r.Error.Kind
		rec.Message = r.Error.Message
	}
	if r.Process != nil {
		rec.PID = r.Process.PID
	}
	return rec
}

// RunRecord is the last-run status persisted per entry
type RunRecord struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Outcome    Outcome   `json:"outcome" yaml:"outcome"`
	FinalState RunState  `json:"final_state" yaml:"final_state"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Message    string    `json:"message,omitempty" yaml:"message,omitempty"`
	PID        uint32    `json:"pid,omitempty" yaml:"pid,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

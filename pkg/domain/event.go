package domain

import "time"

// EventType distinguishes state transitions from informational events
type EventType string

const (
	EventStateChanged       EventType = "state_changed"
	EventValidationProgress EventType = "validation_progress"
	EventValidationFallback EventType = "validation_fallback"
	EventActivationAttempt  EventType = "activation_attempt"
	EventEnforcementFailed  EventType = "enforcement_failed"
	EventAttributesApplied  EventType = "attributes_applied"
)

// StatusEvent is one element of the ordered status event stream of a run
type StatusEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	EntryName string    `json:"entry"`
	Type      EventType `json:"type"`
	State     RunState  `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
	Kind      ErrorKind `json:"kind,omitempty"`
}

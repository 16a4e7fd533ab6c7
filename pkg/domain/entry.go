package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultWaitBudgetSeconds is used when an entry does not set a wait budget
const DefaultWaitBudgetSeconds = 45

// LaunchEntry is a persisted launch configuration. The engine never mutates it.
type LaunchEntry struct {
	// Name is the display name and the key of the entry
	Name string `json:"name" yaml:"name"`

	// Identifier is the opaque activation token (an AUMID or a protocol URI)
	Identifier string `json:"identifier" yaml:"identifier"`

	Arguments        string `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	TargetExecutable string `json:"target_executable,omitempty" yaml:"target_executable,omitempty"`

	WaitBudgetSeconds int          `json:"wait_budget_s" yaml:"wait_budget_s"`
	Priority          Priority     `json:"priority" yaml:"priority"`
	Affinity          AffinitySpec `json:"affinity" yaml:"affinity"`

	// ValidationID enables the external validation step when set
	ValidationID string `json:"validation_id,omitempty" yaml:"validation_id,omitempty"`
}

// WithDefaults returns a copy of the entry with unset optional fields filled in
func (e LaunchEntry) WithDefaults() LaunchEntry {
	e.Name = strings.TrimSpace(e.Name)
	e.Identifier = strings.TrimSpace(e.Identifier)
	e.Arguments = strings.TrimSpace(e.Arguments)
	e.TargetExecutable = strings.TrimSpace(e.TargetExecutable)
	e.ValidationID = strings.TrimSpace(e.ValidationID)

	if e.Priority == "" {
		e.Priority = PriorityHigh
	}
	if e.Affinity.Mode == "" {
		e.Affinity = AutoAffinity()
	}
	return e
}

// Validate checks the entry invariants against the host's logical processor count
func (e LaunchEntry) Validate(logicalProcessors int) error {
	if e.Name == "" {
		return fmt.Errorf("entry name is required")
	}
	if e.Identifier == "" {
		return fmt.Errorf("entry %s: identifier is required", e.Name)
	}
	if e.WaitBudgetSeconds <= 0 {
		return fmt.Errorf("entry %s: wait budget must be positive, got %d", e.Name, e.WaitBudgetSeconds)
	}
	if e.TargetExecutable == "" && NormalizeImageToken(e.Name) == "" {
		return fmt.Errorf("entry %s: target executable is required when the name has no letters or digits", e.Name)
	}
	if _, err := ParsePriority(string(e.Priority)); err != nil {
		return fmt.Errorf("entry %s: %w", e.Name, err)
	}
	if err := e.Affinity.Validate(logicalProcessors); err != nil {
		return fmt.Errorf("entry %s: %w", e.Name, err)
	}
	if e.ValidationID != "" && strings.ContainsAny(e.ValidationID, "/\\ \t\r\n") {
		return fmt.Errorf("entry %s: validation id %q must not contain slashes or whitespace", e.Name, e.ValidationID)
	}
	return nil
}

// WaitBudget returns the wait budget as a duration
func (e LaunchEntry) WaitBudget() time.Duration {
	return time.Duration(e.WaitBudgetSeconds) * time.Second
}

// RequiresValidation reports whether runs of this entry start with VALIDATING
func (e LaunchEntry) RequiresValidation() bool {
	return e.ValidationID != ""
}

// IsProtocolIdentifier reports whether the identifier is a URI rather than an AUMID
func (e LaunchEntry) IsProtocolIdentifier() bool {
	return IsProtocolIdentifier(e.Identifier)
}

// IsProtocolIdentifier reports whether an activation identifier is a URI
func IsProtocolIdentifier(identifier string) bool {
	return strings.Contains(identifier, "://")
}

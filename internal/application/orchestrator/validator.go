package orchestrator

import (
	"fmt"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
)

// Validator validates launch entries against the host
type Validator struct {
	system ports.SystemInfo
}

// NewValidator creates a new entry validator
func NewValidator(system ports.SystemInfo) *Validator {
	return &Validator{system: system}
}

// Validate validates an entry for a launch with the given options
func (v *Validator) Validate(entry domain.LaunchEntry, opts LaunchOptions) error {
	if err := entry.Validate(v.system.LogicalProcessors()); err != nil {
		return err
	}

	if opts.ValidateOnly && !entry.RequiresValidation() {
		return fmt.Errorf("entry %s: validate-only launch needs a validation id", entry.Name)
	}

	return nil
}

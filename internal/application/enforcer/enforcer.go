package enforcer

import (
	"context"
	"errors"
	"fmt"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Attribute names used in reports and metrics
const (
	AttributePriority = "priority"
	AttributeAffinity = "affinity"
)

// Report describes what enforcement did to a process
type Report struct {
	PID             uint32          `json:"pid"`
	Priority        domain.Priority `json:"priority"`
	PriorityClass   uint32          `json:"priority_class"`
	PriorityApplied bool            `json:"priority_applied"`
	AffinityMask    uint64          `json:"affinity_mask,omitempty"`
	AffinityApplied bool            `json:"affinity_applied"`
	// Repeated is set when the handle had already been enforced
	Repeated bool `json:"repeated,omitempty"`
}

// Enforcer applies process attributes
type Enforcer struct {
	setter  ports.AttributeSetter
	system  ports.SystemInfo
	clock   clockwork.Clock
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewEnforcer creates a new attribute enforcer
func NewEnforcer(
	setter ports.AttributeSetter,
	system ports.SystemInfo,
	clock clockwork.Clock,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Enforcer {
	return &Enforcer{
		setter:  setter,
		system:  system,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Enforce applies priority then affinity. Both are attempted even if the
// first fails; failures are joined under domain.ErrEnforcementFailed. A
// handle is enforced at most once, later calls return the recorded outcome.
func (e *Enforcer) Enforce(ctx context.Context, handle *domain.ProcessHandle, priority domain.Priority, affinity domain.AffinitySpec) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !handle.BeginEnforcement() {
		applied := handle.Applied()
		return &Report{
			PID:             handle.PID(),
			PriorityClass:   applied.PriorityClass,
			PriorityApplied: applied.Priority,
			AffinityMask:    applied.AffinityMask,
			AffinityApplied: applied.Affinity,
			Repeated:        true,
		}, nil
	}

	pid := handle.PID()
	report := &Report{
		PID:           pid,
		Priority:      priority,
		PriorityClass: priority.Class(),
	}
	var errs []error

	if err := e.setter.SetPriorityClass(pid, report.PriorityClass); err != nil {
		e.metrics.RecordEnforcementFailure(AttributePriority)
		errs = append(errs, fmt.Errorf("set priority %s: %w", priority, err))
	} else {
		report.PriorityApplied = true
	}

	mask, apply := affinity.Resolve(e.system.LogicalProcessors())
	if apply {
		report.AffinityMask = mask
		if err := e.setter.SetAffinityMask(pid, mask); err != nil {
			e.metrics.RecordEnforcementFailure(AttributeAffinity)
			errs = append(errs, fmt.Errorf("set affinity %#x: %w", mask, err))
		} else {
			report.AffinityApplied = true
		}
	}

	handle.RecordApplied(domain.AppliedAttributes{
		PriorityClass: report.PriorityClass,
		AffinityMask:  report.AffinityMask,
		Priority:      report.PriorityApplied,
		Affinity:      report.AffinityApplied,
		AppliedAt:     e.clock.Now(),
	})

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", domain.ErrEnforcementFailed, errors.Join(errs...))
		e.logger.Warn("attribute enforcement failed",
			zap.Uint32("pid", pid),
			zap.Bool("priority_applied", report.PriorityApplied),
			zap.Bool("affinity_applied", report.AffinityApplied),
			zap.Error(err))
		return report, err
	}

	e.logger.Info("attributes applied",
		zap.Uint32("pid", pid),
		zap.String("priority", string(priority)),
		zap.String("affinity", affinity.String()),
		zap.Uint64("mask", report.AffinityMask))

	return report, nil
}

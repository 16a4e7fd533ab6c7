package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
)

// LaunchOptions alter a single launch
type LaunchOptions struct {
	// ValidateOnly stops after VALIDATING and completes the run
	ValidateOnly bool `json:"validate_only"`
}

// RunStatus is a point-in-time view of a run
type RunStatus struct {
	RunID      string                        `json:"run_id"`
	EntryName  string                        `json:"entry"`
	State      domain.RunState               `json:"state"`
	Options    LaunchOptions                 `json:"options"`
	StartedAt  time.Time                     `json:"started_at"`
	StageTimes map[domain.RunState]time.Time `json:"stage_times"`
	Result     *domain.LaunchResult          `json:"result,omitempty"`
}

// run holds the mutable state of one launch
type run struct {
	id     string
	entry  domain.LaunchEntry
	opts   LaunchOptions
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	state      domain.RunState
	startedAt  time.Time
	stageTimes map[domain.RunState]time.Time
	warnings   []string
	process    *domain.ProcessInfo
	validation *domain.ValidationSummary
	result     *domain.LaunchResult
}

func newRun(parent context.Context, id string, entry domain.LaunchEntry, opts LaunchOptions, now time.Time) *run {
	ctx, cancel := context.WithCancel(parent)
	return &run{
		id:         id,
		entry:      entry,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      domain.RunStateIdle,
		startedAt:  now,
		stageTimes: map[domain.RunState]time.Time{domain.RunStateIdle: now},
	}
}

func (r *run) currentState() domain.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *run) addWarning(w string) {
	r.mu.Lock()
	r.warnings = append(r.warnings, w)
	r.mu.Unlock()
}

func (r *run) status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	times := make(map[domain.RunState]time.Time, len(r.stageTimes))
	for k, v := range r.stageTimes {
		times[k] = v
	}

	return RunStatus{
		RunID:      r.id,
		EntryName:  r.entry.Name,
		State:      r.state,
		Options:    r.opts,
		StartedAt:  r.startedAt,
		StageTimes: times,
		Result:     r.result,
	}
}

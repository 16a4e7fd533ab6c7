package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aescanero/launchorch/internal/application/activation"
	"github.com/aescanero/launchorch/internal/application/enforcer"
	"github.com/aescanero/launchorch/internal/application/resolver"
	"github.com/aescanero/launchorch/internal/application/validation"
	"github.com/aescanero/launchorch/internal/application/workers"
	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultRunRetention is how long finished runs stay queryable
const DefaultRunRetention = time.Hour

const (
	publishTimeout = 5 * time.Second
	storeTimeout   = 5 * time.Second
)

// ErrRunNotCompleted is returned when asking for the result of a run in flight
var ErrRunNotCompleted = errors.New("run has not completed")

// ErrManagerClosed is returned by launches after Shutdown
var ErrManagerClosed = errors.New("orchestrator is shutting down")

// ErrLaneFull is returned by launches while every lane slot is taken
var ErrLaneFull = errors.New("launch queue is full")

// ValidationStage watches external validation
type ValidationStage interface {
	Watch(ctx context.Context, validationID string, observe validation.Observer) (*domain.ValidationSession, error)
}

// ActivationStage issues the process-start request
type ActivationStage interface {
	Activate(ctx context.Context, identifier, arguments string, observe activation.Observer) (*activation.Outcome, error)
}

// ResolutionStage finds the launched process
type ResolutionStage interface {
	Resolve(ctx context.Context, criteria resolver.Criteria, waitBudget time.Duration) (*domain.ProcessHandle, error)
}

// EnforcementStage applies process attributes
type EnforcementStage interface {
	Enforce(ctx context.Context, handle *domain.ProcessHandle, priority domain.Priority, affinity domain.AffinitySpec) (*enforcer.Report, error)
}

// Stages groups the components a launch runs through
type Stages struct {
	Validation  ValidationStage
	Activation  ActivationStage
	Resolution  ResolutionStage
	Enforcement EnforcementStage
}

// Lane executes launch jobs in the background. TrySubmit must not block;
// it returns workers.ErrQueueFull when the job cannot be queued.
type Lane interface {
	TrySubmit(job workers.Job) error
}

// Manager coordinates launches
type Manager struct {
	store     ports.EntryStore
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	validator *Validator
	stages    Stages
	lane      Lane
	clock     clockwork.Clock
	logger    *zap.Logger

	retention  time.Duration
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	active   map[string]*run // entry name -> run in flight
	runs     map[string]*run // run id -> run, including finished runs within retention
	inFlight sync.WaitGroup
}

// NewManager creates a new orchestrator manager
func NewManager(
	store ports.EntryStore,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	stages Stages,
	lane Lane,
	clock clockwork.Clock,
	logger *zap.Logger,
	retention time.Duration,
) *Manager {
	if retention <= 0 {
		retention = DefaultRunRetention
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:      store,
		eventBus:   eventBus,
		metrics:    metrics,
		validator:  validator,
		stages:     stages,
		lane:       lane,
		clock:      clock,
		logger:     logger,
		retention:  retention,
		baseCtx:    ctx,
		baseCancel: cancel,
		active:     make(map[string]*run),
		runs:       make(map[string]*run),
	}
}

// Launch loads a stored entry and starts a run for it
func (m *Manager) Launch(ctx context.Context, name string, opts LaunchOptions) (string, error) {
	entry, err := m.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			m.metrics.RecordLaunchRejected("not_found")
		}
		return "", err
	}

	return m.LaunchEntry(ctx, *entry, opts)
}

// LaunchEntry starts a run for an entry. It returns once the run is
// registered; the stages execute on the lane.
func (m *Manager) LaunchEntry(ctx context.Context, entry domain.LaunchEntry, opts LaunchOptions) (string, error) {
	entry = entry.WithDefaults()

	if err := m.validator.Validate(entry, opts); err != nil {
		m.logger.Warn("launch entry rejected",
			zap.String("entry", entry.Name),
			zap.Error(err))
		m.metrics.RecordLaunchRejected("invalid")
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidEntry, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrManagerClosed
	}
	if existing, ok := m.active[entry.Name]; ok {
		m.mu.Unlock()
		m.logger.Info("launch rejected, entry already running",
			zap.String("entry", entry.Name),
			zap.String("run_id", existing.id))
		m.metrics.RecordLaunchRejected("already_running")
		return "", fmt.Errorf("%w: %s (run %s)", domain.ErrAlreadyRunning, entry.Name, existing.id)
	}

	r := newRun(m.baseCtx, uuid.New().String(), entry, opts, m.clock.Now())
	m.active[entry.Name] = r
	m.runs[r.id] = r
	m.inFlight.Add(1)
	m.mu.Unlock()

	// The job holds until the queued event is out
	queued := make(chan struct{})
	submitErr := m.lane.TrySubmit(func() {
		<-queued
		m.execute(r)
	})
	if errors.Is(submitErr, workers.ErrQueueFull) {
		m.discard(r)
		m.logger.Warn("launch rejected, launch queue is full",
			zap.String("entry", entry.Name))
		m.metrics.RecordLaunchRejected("queue_full")
		return "", fmt.Errorf("%w: %s", ErrLaneFull, entry.Name)
	}

	m.mu.Lock()
	activeRuns := len(m.active)
	m.mu.Unlock()

	m.metrics.RecordRunStarted()
	m.metrics.SetActiveRuns(activeRuns)
	m.logger.Info("launch accepted",
		zap.String("run_id", r.id),
		zap.String("entry", entry.Name),
		zap.Bool("validate_only", opts.ValidateOnly))
	m.publish(r, domain.EventStateChanged, domain.RunStateIdle, "queued", domain.KindNone)
	close(queued)

	if submitErr != nil {
		m.terminate(r, "", domain.RunStateFailed,
			domain.NewLaunchError(domain.KindInternal, domain.RunStateIdle, fmt.Errorf("schedule run: %w", submitErr)))
		return "", fmt.Errorf("failed to schedule run: %w", submitErr)
	}

	return r.id, nil
}

// discard drops a run that never reached the lane. No event was published
// for it, so it leaves no trace.
func (m *Manager) discard(r *run) {
	m.mu.Lock()
	delete(m.active, r.entry.Name)
	delete(m.runs, r.id)
	m.mu.Unlock()
	r.cancel()
	m.inFlight.Done()
}

// Cancel requests cancellation of a run. The run reaches CANCELLED at its
// next suspension point; a run still queued is cancelled at once.
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	r, err := m.lookup(runID)
	if err != nil {
		return err
	}

	if r.currentState().IsTerminal() {
		return fmt.Errorf("%w: %s", domain.ErrRunFinished, runID)
	}

	r.cancel()
	m.logger.Info("run cancellation requested",
		zap.String("run_id", runID),
		zap.String("entry", r.entry.Name))

	// A queued run has no stage to notice the cancellation
	m.terminate(r, domain.RunStateIdle, domain.RunStateCancelled,
		domain.NewLaunchError(domain.KindCancelled, domain.RunStateIdle, domain.ErrCancelled))

	return nil
}

// Status returns the current state of a run
func (m *Manager) Status(runID string) (*RunStatus, error) {
	r, err := m.lookup(runID)
	if err != nil {
		return nil, err
	}
	status := r.status()
	return &status, nil
}

// Result returns the terminal result of a run
func (m *Manager) Result(runID string) (*domain.LaunchResult, error) {
	r, err := m.lookup(runID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.result == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrRunNotCompleted, runID, r.state)
	}
	return r.result, nil
}

// Wait blocks until the run finishes or ctx ends
func (m *Manager) Wait(ctx context.Context, runID string) (*domain.LaunchResult, error) {
	r, err := m.lookup(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-r.done:
		return m.Result(runID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ListRuns returns every known run, oldest first
func (m *Manager) ListRuns() []RunStatus {
	m.mu.Lock()
	runs := make([]*run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.Unlock()

	statuses := make([]RunStatus, 0, len(runs))
	for _, r := range runs {
		statuses = append(statuses, r.status())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].StartedAt.Before(statuses[j].StartedAt)
	})
	return statuses
}

// ActiveRuns returns the number of runs in flight
func (m *Manager) ActiveRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown rejects new launches, cancels every run in flight and waits for
// them to reach a terminal state.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	pending := make([]*run, 0, len(m.active))
	for _, r := range m.active {
		pending = append(pending, r)
	}
	m.mu.Unlock()

	m.logger.Info("shutting down orchestrator", zap.Int("active_runs", len(pending)))

	m.baseCancel()
	for _, r := range pending {
		m.terminate(r, domain.RunStateIdle, domain.RunStateCancelled,
			domain.NewLaunchError(domain.KindCancelled, domain.RunStateIdle, domain.ErrCancelled))
	}

	done := make(chan struct{})
	go func() {
		m.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("orchestrator shutdown: %w", ctx.Err())
	}
}

func (m *Manager) lookup(runID string) (*run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	return r, nil
}

// execute drives one run through its stages
func (m *Manager) execute(r *run) {
	defer func() {
		if p := recover(); p != nil {
			stage := r.currentState()
			m.logger.Error("launch stage panicked",
				zap.String("run_id", r.id),
				zap.String("state", string(stage)),
				zap.Any("panic", p))
			m.terminate(r, "", domain.RunStateFailed,
				domain.NewLaunchError(domain.KindInternal, stage, fmt.Errorf("panic: %v", p)))
		}
	}()

	if r.currentState().IsTerminal() {
		return
	}

	entry := r.entry

	if entry.RequiresValidation() {
		if !m.validate(r) {
			return
		}
		if r.opts.ValidateOnly {
			m.terminate(r, "", domain.RunStateComplete, nil)
			return
		}
	}

	// Activation
	if !m.transition(r, domain.RunStateActivating, entry.Identifier) {
		return
	}
	outcome, err := m.stages.Activation.Activate(r.ctx, entry.Identifier, entry.Arguments, func(a activation.Attempt) {
		detail := a.Strategy + ": ok"
		switch {
		case a.Skipped:
			detail = a.Strategy + ": not applicable"
		case a.Err != nil:
			detail = fmt.Sprintf("%s: %v", a.Strategy, a.Err)
		}
		m.publish(r, domain.EventActivationAttempt, domain.RunStateActivating, detail, domain.KindNone)
	})
	if err != nil {
		m.fail(r, domain.RunStateActivating, err)
		return
	}

	// Resolution
	if !m.transition(r, domain.RunStateResolving, fmt.Sprintf("activated by %s, root pid %d", outcome.Strategy, outcome.PID)) {
		return
	}
	handle, err := m.stages.Resolution.Resolve(r.ctx, resolver.Criteria{
		TargetImage: entry.TargetExecutable,
		DisplayName: entry.Name,
		RootPID:     outcome.PID,
	}, entry.WaitBudget())
	if err != nil {
		m.fail(r, domain.RunStateResolving, err)
		return
	}
	info := handle.Info()
	r.mu.Lock()
	r.process = &info
	r.mu.Unlock()

	// Enforcement
	if !m.transition(r, domain.RunStateEnforcing, fmt.Sprintf("pid %d (%s)", info.PID, info.ImageName)) {
		return
	}
	report, err := m.stages.Enforcement.Enforce(r.ctx, handle, entry.Priority, entry.Affinity)
	switch {
	case err != nil && (r.ctx.Err() != nil || domain.KindOf(err) == domain.KindCancelled):
		m.fail(r, domain.RunStateEnforcing, err)
		return
	case err != nil:
		// The process is running; attributes are best effort
		r.addWarning(err.Error())
		m.publish(r, domain.EventEnforcementFailed, domain.RunStateEnforcing, err.Error(), domain.KindEnforcementFailed)
	default:
		m.publish(r, domain.EventAttributesApplied, domain.RunStateEnforcing,
			fmt.Sprintf("priority %s, affinity %#x", report.Priority, report.AffinityMask), domain.KindNone)
	}

	m.terminate(r, "", domain.RunStateComplete, nil)
}

// validate runs the VALIDATING stage and reports whether the run continues
func (m *Manager) validate(r *run) bool {
	if !m.transition(r, domain.RunStateValidating, r.entry.ValidationID) {
		return false
	}

	session, err := m.stages.Validation.Watch(r.ctx, r.entry.ValidationID, func(s *domain.ValidationSession) {
		m.publish(r, domain.EventValidationProgress, domain.RunStateValidating, string(s.State), domain.KindNone)
	})
	if session != nil {
		r.mu.Lock()
		r.validation = session.Summary()
		r.mu.Unlock()
	}
	if err != nil {
		m.fail(r, domain.RunStateValidating, err)
		return false
	}

	if session.Fallback {
		m.metrics.RecordValidation("fallback")
		r.addWarning(fmt.Sprintf("%v (%s)", domain.ErrValidationFallback, session.Reason))
		m.publish(r, domain.EventValidationFallback, domain.RunStateValidating, session.Reason, domain.KindValidationFallback)
	} else {
		m.metrics.RecordValidation("completed")
	}

	return true
}

// transition moves a run to the next stage. It returns false when the run
// was cancelled or already finished, in which case the caller stops.
func (m *Manager) transition(r *run, next domain.RunState, detail string) bool {
	r.mu.Lock()
	if r.state.IsTerminal() {
		r.mu.Unlock()
		return false
	}
	if r.ctx.Err() != nil {
		stage := r.state
		r.mu.Unlock()
		m.terminate(r, "", domain.RunStateCancelled,
			domain.NewLaunchError(domain.KindCancelled, stage, domain.ErrCancelled))
		return false
	}

	now := m.clock.Now()
	previous := r.state
	enteredAt := r.stageTimes[previous]
	r.state = next
	r.stageTimes[next] = now
	r.mu.Unlock()

	if previous != domain.RunStateIdle {
		m.metrics.ObserveStageDuration(string(previous), now.Sub(enteredAt))
	}

	m.logger.Info("run state changed",
		zap.String("run_id", r.id),
		zap.String("entry", r.entry.Name),
		zap.String("from", string(previous)),
		zap.String("state", string(next)))
	m.publish(r, domain.EventStateChanged, next, detail, domain.KindNone)

	return true
}

// fail ends a run after a stage error
func (m *Manager) fail(r *run, stage domain.RunState, err error) {
	kind := domain.KindOf(err)
	if kind == domain.KindCancelled || r.ctx.Err() != nil {
		m.terminate(r, "", domain.RunStateCancelled,
			domain.NewLaunchError(domain.KindCancelled, stage, domain.ErrCancelled))
		return
	}

	m.terminate(r, "", domain.RunStateFailed, domain.NewLaunchError(kind, stage, err))
}

// terminate moves a run to a terminal state and produces its result. When
// expect is set the run must currently be in that state. It returns false
// if the run was not terminated by this call.
func (m *Manager) terminate(r *run, expect, final domain.RunState, lerr *domain.LaunchError) bool {
	now := m.clock.Now()

	r.mu.Lock()
	if r.state.IsTerminal() || (expect != "" && r.state != expect) {
		r.mu.Unlock()
		return false
	}

	previous := r.state
	enteredAt := r.stageTimes[previous]
	r.state = final
	r.stageTimes[final] = now

	stageTimes := make(map[domain.RunState]time.Time, len(r.stageTimes))
	for k, v := range r.stageTimes {
		stageTimes[k] = v
	}

	result := &domain.LaunchResult{
		RunID:      r.id,
		EntryName:  r.entry.Name,
		Outcome:    domain.OutcomeFor(final),
		FinalState: final,
		StageTimes: stageTimes,
		Process:    r.process,
		Validation: r.validation,
		Warnings:   append([]string(nil), r.warnings...),
		StartedAt:  r.startedAt,
		FinishedAt: now,
	}
	detail := ""
	kind := domain.KindNone
	if lerr != nil {
		kind = lerr.Kind
		detail = string(lerr.Kind)
		if lerr.Err != nil {
			detail = lerr.Err.Error()
		}
		result.Error = &domain.ErrorDetail{
			Kind:    lerr.Kind,
			Stage:   lerr.Stage,
			Message: detail,
		}
	}
	r.result = result
	r.mu.Unlock()

	if previous != domain.RunStateIdle {
		m.metrics.ObserveStageDuration(string(previous), now.Sub(enteredAt))
	}
	m.publish(r, domain.EventStateChanged, final, detail, kind)

	m.mu.Lock()
	if m.active[r.entry.Name] == r {
		delete(m.active, r.entry.Name)
	}
	activeRuns := len(m.active)
	m.mu.Unlock()

	m.metrics.RecordRunFinished(string(result.Outcome), result.Duration())
	m.metrics.SetActiveRuns(activeRuns)
	m.saveLastRun(result)

	fields := []zap.Field{
		zap.String("run_id", r.id),
		zap.String("entry", r.entry.Name),
		zap.String("state", string(final)),
		zap.Duration("duration", result.Duration()),
	}
	if lerr != nil {
		fields = append(fields, zap.String("kind", string(lerr.Kind)), zap.String("stage", string(lerr.Stage)), zap.Error(lerr.Err))
	}
	if final == domain.RunStateFailed {
		m.logger.Warn("run finished", fields...)
	} else {
		m.logger.Info("run finished", fields...)
	}

	m.clock.AfterFunc(m.retention, func() {
		m.mu.Lock()
		if m.runs[r.id] == r {
			delete(m.runs, r.id)
		}
		m.mu.Unlock()
	})

	r.cancel()
	close(r.done)
	m.inFlight.Done()

	return true
}

func (m *Manager) saveLastRun(result *domain.LaunchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := m.store.SaveLastRun(ctx, result.EntryName, result.Record()); err != nil {
		m.logger.Error("failed to save last run",
			zap.String("run_id", result.RunID),
			zap.String("entry", result.EntryName),
			zap.Error(err))
	}
}

// publish sends a status event. Publishing never blocks a run for longer
// than publishTimeout and failures are only logged.
func (m *Manager) publish(r *run, eventType domain.EventType, state domain.RunState, detail string, kind domain.ErrorKind) {
	event := domain.StatusEvent{
		ID:        uuid.New().String(),
		RunID:     r.id,
		EntryName: r.entry.Name,
		Type:      eventType,
		State:     state,
		Timestamp: m.clock.Now(),
		Detail:    detail,
		Kind:      kind,
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := m.eventBus.Publish(ctx, ports.TopicLaunchEvents, event); err != nil {
		m.logger.Error("failed to publish status event",
			zap.String("run_id", r.id),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

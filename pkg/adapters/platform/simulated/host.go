package simulated

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/jonboulle/clockwork"
)

// Strategy names match the real platform
const (
	StrategyAppActivation = "app-activation"
	StrategyShellExecute  = "shell-execute"
)

// ErrNoSuchProcess is returned for attribute changes on an unknown PID
var ErrNoSuchProcess = errors.New("no such process")

// ErrNotRegistered is returned when activating an unknown application
var ErrNotRegistered = errors.New("application not registered")

// App describes what activating an identifier does
type App struct {
	// Image is the image name of the process that appears
	Image string
	// StartDelay is how long after activation the process appears
	StartDelay time.Duration
}

// TitleStep shows Title from After (relative to the validation trigger) onwards
type TitleStep struct {
	After time.Duration
	Title string
}

type process struct {
	info     domain.ProcessInfo
	priority uint32
	affinity uint64
}

// Host is a simulated Windows host
type Host struct {
	clock clockwork.Clock
	cpus  int

	mu           sync.Mutex
	nextPID      uint32
	procs        map[uint32]*process
	apps         map[string]App
	baseTitles   []string
	script       []TitleStep
	scriptStart  time.Time
	scriptArmed  bool
	openedURIs   []string
	uriErr       error
	strategyErrs map[string]error
	attributeErr error
	activations  []string
}

// NewHost creates a simulated host with the given logical processor count
func NewHost(clock clockwork.Clock, logicalProcessors int) *Host {
	if logicalProcessors <= 0 {
		logicalProcessors = 1
	}
	return &Host{
		clock:        clock,
		cpus:         logicalProcessors,
		nextPID:      1000,
		procs:        make(map[uint32]*process),
		apps:         make(map[string]App),
		baseTitles:   []string{"Steam"},
		strategyErrs: make(map[string]error),
	}
}

// RegisterApp makes an identifier activatable
func (h *Host) RegisterApp(identifier string, app App) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.apps[identifier] = app
}

// SetValidationScript sets the client window titles shown after the next
// validation trigger. Steps must be ordered by After.
func (h *Host) SetValidationScript(steps ...TitleStep) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.script = append([]TitleStep(nil), steps...)
	h.scriptArmed = false
}

// FailURIs makes OpenURI fail with err
func (h *Host) FailURIs(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uriErr = err
}

// FailStrategy makes the named activation strategy fail with err
func (h *Host) FailStrategy(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.strategyErrs, name)
		return
	}
	h.strategyErrs[name] = err
}

// FailAttributes makes attribute changes fail with err
func (h *Host) FailAttributes(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attributeErr = err
}

// Spawn adds a process to the table and returns its PID
func (h *Host) Spawn(image string) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.spawnLocked(image)
}

func (h *Host) spawnLocked(image string) uint32 {
	h.nextPID += 4
	pid := h.nextPID
	h.procs[pid] = &process{
		info: domain.ProcessInfo{
			PID:       pid,
			ImageName: image,
			StartTime: h.clock.Now(),
		},
		priority: domain.NormalPriorityClass,
		affinity: allProcessors(h.cpus),
	}
	return pid
}

// Exit removes a process from the table
func (h *Host) Exit(pid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.procs, pid)
}

// Attributes returns the priority class and affinity mask of a process
func (h *Host) Attributes(pid uint32) (uint32, uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.procs[pid]
	if !ok {
		return 0, 0, false
	}
	return p.priority, p.affinity, true
}

// OpenedURIs returns every URI passed to OpenURI
func (h *Host) OpenedURIs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.openedURIs...)
}

// Activations returns the strategies that issued a start request
func (h *Host) Activations() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.activations...)
}

// Snapshot implements ports.ProcessTable
func (h *Host) Snapshot(ctx context.Context) ([]domain.ProcessInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	procs := make([]domain.ProcessInfo, 0, len(h.procs))
	for _, p := range h.procs {
		procs = append(procs, p.info)
	}
	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs, nil
}

// Titles implements ports.WindowTitleSource
func (h *Host) Titles(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	titles := append([]string(nil), h.baseTitles...)
	if !h.scriptArmed {
		return titles, nil
	}

	elapsed := h.clock.Since(h.scriptStart)
	current := ""
	for _, step := range h.script {
		if elapsed >= step.After {
			current = step.Title
		}
	}
	if current != "" {
		titles = append(titles, current)
	}
	return titles, nil
}

// OpenURI implements ports.URIDispatcher. A validate URI arms the
// validation script; a registered protocol identifier starts its app.
func (h *Host) OpenURI(ctx context.Context, uri string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.openedURIs = append(h.openedURIs, uri)
	if h.uriErr != nil {
		return h.uriErr
	}

	if strings.Contains(uri, "://validate/") {
		h.scriptStart = h.clock.Now()
		h.scriptArmed = true
		return nil
	}

	if app, ok := h.apps[uri]; ok {
		h.startLocked(app)
	}
	return nil
}

// LogicalProcessors implements ports.SystemInfo
func (h *Host) LogicalProcessors() int {
	return h.cpus
}

// SetPriorityClass implements ports.AttributeSetter
func (h *Host) SetPriorityClass(pid uint32, class uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attributeErr != nil {
		return h.attributeErr
	}
	p, ok := h.procs[pid]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchProcess, pid)
	}
	p.priority = class
	return nil
}

// SetAffinityMask implements ports.AttributeSetter
func (h *Host) SetAffinityMask(pid uint32, mask uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attributeErr != nil {
		return h.attributeErr
	}
	p, ok := h.procs[pid]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoSuchProcess, pid)
	}
	if mask&^allProcessors(h.cpus) != 0 || mask == 0 {
		return fmt.Errorf("invalid affinity mask %#x", mask)
	}
	p.affinity = mask
	return nil
}

// startLocked schedules the app's process. It returns the PID when the
// process starts immediately.
func (h *Host) startLocked(app App) uint32 {
	if app.StartDelay <= 0 {
		return h.spawnLocked(app.Image)
	}
	h.clock.AfterFunc(app.StartDelay, func() {
		h.Spawn(app.Image)
	})
	return 0
}

func (h *Host) activate(ctx context.Context, strategy, identifier string) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.strategyErrs[strategy]; err != nil {
		return 0, err
	}
	app, ok := h.apps[identifier]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotRegistered, identifier)
	}

	h.activations = append(h.activations, strategy)
	return h.startLocked(app), nil
}

func allProcessors(n int) uint64 {
	if n >= domain.MaxAffinityProcessors {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}

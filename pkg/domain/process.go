package domain

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// ProcessInfo is one row of the OS process table
type ProcessInfo struct {
	PID       uint32    `json:"pid"`
	ParentPID uint32    `json:"parent_pid,omitempty"`
	ImageName string    `json:"image_name"`
	StartTime time.Time `json:"start_time"`
}

// AppliedAttributes records what the enforcer has applied to a process
type AppliedAttributes struct {
	PriorityClass uint32    `json:"priority_class,omitempty"`
	AffinityMask  uint64    `json:"affinity_mask,omitempty"`
	Priority      bool      `json:"priority"`
	Affinity      bool      `json:"affinity"`
	AppliedAt     time.Time `json:"applied_at"`
}

// ProcessHandle is a resolved process. Its identity never changes; only the
// applied-attributes record does.
type ProcessHandle struct {
	info ProcessInfo

	mu       sync.Mutex
	enforced bool
	applied  AppliedAttributes
}

// NewProcessHandle creates a handle for a process table row
func NewProcessHandle(info ProcessInfo) *ProcessHandle {
	return &ProcessHandle{info: info}
}

// PID returns the process id
func (h *ProcessHandle) PID() uint32 { return h.info.PID }

// ImageName returns the process image name
func (h *ProcessHandle) ImageName() string { return h.info.ImageName }

// StartTime returns the process start time
func (h *ProcessHandle) StartTime() time.Time { return h.info.StartTime }

// Info returns the identity of the process
func (h *ProcessHandle) Info() ProcessInfo { return h.info }

// Enforced reports whether enforcement already ran on this handle
func (h *ProcessHandle) Enforced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enforced
}

// Applied returns the applied-attributes record
func (h *ProcessHandle) Applied() AppliedAttributes {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.applied
}

// BeginEnforcement marks the handle as enforced. It returns false if
// enforcement had already begun, so callers apply attributes at most once.
func (h *ProcessHandle) BeginEnforcement() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.enforced {
		return false
	}
	h.enforced = true
	return true
}

// RecordApplied stores what was applied
func (h *ProcessHandle) RecordApplied(applied AppliedAttributes) {
	h.mu.Lock()
	h.applied = applied
	h.mu.Unlock()
}

// NormalizeImageToken lower-cases a name, drops a trailing ".exe" and keeps only letters and digits.
// "Rocket League" and "RocketLeague.exe" both normalize to "rocketleague".
func NormalizeImageToken(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	lower = strings.TrimSuffix(lower, ".exe")

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

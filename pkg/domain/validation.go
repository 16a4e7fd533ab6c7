package domain

import (
	"strings"
	"time"
)

// WatchState is a state of the validation watcher
type WatchState string

const (
	WatchInit     WatchState = "INIT"
	WatchWatching WatchState = "WATCHING"
	WatchQuiet    WatchState = "QUIET"
	WatchDone     WatchState = "DONE"
)

// Fallback reasons
const (
	FallbackNoSignal      = "no_signal"
	FallbackCeiling       = "ceiling"
	FallbackTriggerFailed = "trigger_failed"
)

// ValidationSession tracks one external validation watch
type ValidationSession struct {
	ValidationID string
	StartedAt    time.Time
	Keywords     []string
	LastSighting time.Time
	SeenAny      bool
	State        WatchState
	Fallback     bool
	Reason       string
	DoneAt       time.Time

	quietPeriod     time.Duration
	fallbackCeiling time.Duration
	lowered         []string
}

// NewValidationSession creates a session in INIT
func NewValidationSession(validationID string, startedAt time.Time, keywords []string, quietPeriod, fallbackCeiling time.Duration) *ValidationSession {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}

	return &ValidationSession{
		ValidationID:    validationID,
		StartedAt:       startedAt,
		Keywords:        keywords,
		State:           WatchInit,
		quietPeriod:     quietPeriod,
		fallbackCeiling: fallbackCeiling,
		lowered:         lowered,
	}
}

// Matches reports whether any keyword occurs in any title, ignoring case
func (s *ValidationSession) Matches(titles []string) bool {
	for _, title := range titles {
		t := strings.ToLower(title)
		for _, k := range s.lowered {
			if strings.Contains(t, k) {
				return true
			}
		}
	}
	return false
}

// Observe advances the session with one title sample taken at now and returns the new state
func (s *ValidationSession) Observe(now time.Time, titles []string) WatchState {
	if s.State == WatchDone {
		return s.State
	}

	if s.Matches(titles) {
		s.SeenAny = true
		s.LastSighting = now
		s.State = WatchWatching
	} else if s.SeenAny {
		s.State = WatchQuiet
	}

	if s.SeenAny && now.Sub(s.LastSighting) >= s.quietPeriod {
		s.finish(now, false, "")
		return s.State
	}

	if now.Sub(s.StartedAt) >= s.fallbackCeiling {
		reason := FallbackNoSignal
		if s.SeenAny {
			reason = FallbackCeiling
		}
		s.finish(now, true, reason)
	}

	return s.State
}

// Abort ends the session by fallback without waiting
func (s *ValidationSession) Abort(now time.Time, reason string) {
	if s.State != WatchDone {
		s.finish(now, true, reason)
	}
}

func (s *ValidationSession) finish(now time.Time, fallback bool, reason string) {
	s.State = WatchDone
	s.Fallback = fallback
	s.Reason = reason
	s.DoneAt = now
}

// Summary returns the serialisable view of the session
func (s *ValidationSession) Summary() *ValidationSummary {
	sum := &ValidationSummary{
		ValidationID: s.ValidationID,
		StartedAt:    s.StartedAt,
		DoneAt:       s.DoneAt,
		SeenAny:      s.SeenAny,
		Fallback:     s.Fallback,
		Reason:       s.Reason,
	}
	if s.SeenAny {
		last := s.LastSighting
		sum.LastSighting = &last
	}
	return sum
}

// ValidationSummary is the validation part of a LaunchResult
type ValidationSummary struct {
	ValidationID string     `json:"validation_id"`
	StartedAt    time.Time  `json:"started_at"`
	DoneAt       time.Time  `json:"done_at"`
	LastSighting *time.Time `json:"last_sighting,omitempty"`
	SeenAny      bool       `json:"seen_any"`
	Fallback     bool       `json:"fallback"`
	Reason       string     `json:"reason,omitempty"`
}

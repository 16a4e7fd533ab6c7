package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrActivationFailed    = errors.New("activation failed")
	ErrResolutionTimeout   = errors.New("no matching process within wait budget")
	ErrEnforcementFailed   = errors.New("attribute enforcement failed")
	ErrValidationFallback  = errors.New("validation completed by fallback")
	ErrAlreadyRunning      = errors.New("entry already has a run in flight")
	ErrCancelled           = errors.New("run cancelled")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrInvalidEntry        = errors.New("invalid entry")
	ErrRunNotFound         = errors.New("run not found")
	ErrRunFinished         = errors.New("run already finished")
	ErrUnsupportedPlatform = errors.New("operation requires Windows")
)

// ErrorKind classifies failures for results, events and metrics
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindActivationFailed   ErrorKind = "ActivationFailed"
	KindResolutionTimeout  ErrorKind = "ResolutionTimeout"
	KindEnforcementFailed  ErrorKind = "EnforcementFailed"
	KindValidationFallback ErrorKind = "ValidationFallback"
	KindAlreadyRunning     ErrorKind = "AlreadyRunning"
	KindCancelled          ErrorKind = "Cancelled"
	KindInvalidEntry       ErrorKind = "InvalidEntry"
	KindInternal           ErrorKind = "Internal"
)

var kindSentinels = map[ErrorKind]error{
	KindActivationFailed:   ErrActivationFailed,
	KindResolutionTimeout:  ErrResolutionTimeout,
	KindEnforcementFailed:  ErrEnforcementFailed,
	KindValidationFallback: ErrValidationFallback,
	KindAlreadyRunning:     ErrAlreadyRunning,
	KindCancelled:          ErrCancelled,
	KindInvalidEntry:       ErrInvalidEntry,
}

// LaunchError is a stage failure carrying its kind and the stage it happened in
type LaunchError struct {
	Kind  ErrorKind
	Stage RunState
	Err   error
}

// NewLaunchError creates a LaunchError
func NewLaunchError(kind ErrorKind, stage RunState, err error) *LaunchError {
	return &LaunchError{Kind: kind, Stage: stage, Err: err}
}

// Error implements the error interface
func (e *LaunchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s during %s", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap returns the underlying error
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the kind
func (e *LaunchError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf classifies an error
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var le *LaunchError
	if errors.As(err, &le) {
		return le.Kind
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrActivationFailed):
		return KindActivationFailed
	case errors.Is(err, ErrResolutionTimeout):
		return KindResolutionTimeout
	case errors.Is(err, ErrEnforcementFailed):
		return KindEnforcementFailed
	case errors.Is(err, ErrValidationFallback):
		return KindValidationFallback
	case errors.Is(err, ErrAlreadyRunning):
		return KindAlreadyRunning
	case errors.Is(err, ErrInvalidEntry):
		return KindInvalidEntry
	default:
		return KindInternal
	}
}

// ErrorDetail is the serialisable failure carried by a LaunchResult
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind"`
	Stage   RunState  `json:"stage"`
	Message string    `json:"message"`
}

// ErrStrategyNotApplicable is returned by an activation strategy that cannot handle an identifier
var ErrStrategyNotApplicable = errors.New("activation strategy not applicable")

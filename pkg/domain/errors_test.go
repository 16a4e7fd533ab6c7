package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLaunchError_IsKindSentinel(t *testing.T) {
	cause := errors.New("HRESULT 0x80070002")
	err := fmt.Errorf("run failed: %w", NewLaunchError(KindActivationFailed, RunStateActivating, cause))

	assert.ErrorIs(t, err, ErrActivationFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrResolutionTimeout)
	assert.Contains(t, err.Error(), "ActivationFailed during ACTIVATING")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindResolutionTimeout, KindOf(fmt.Errorf("x: %w", ErrResolutionTimeout)))
	assert.Equal(t, KindEnforcementFailed, KindOf(NewLaunchError(KindEnforcementFailed, RunStateEnforcing, nil)))
	assert.Equal(t, KindAlreadyRunning, KindOf(ErrAlreadyRunning))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestOutcomeFor(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, OutcomeFor(RunStateComplete))
	assert.Equal(t, OutcomeCancelled, OutcomeFor(RunStateCancelled))
	assert.Equal(t, OutcomeFailed, OutcomeFor(RunStateFailed))
	assert.True(t, RunStateCancelled.IsTerminal())
	assert.False(t, RunStateResolving.IsTerminal())
}

package simulated

import (
	"context"

	"github.com/aescanero/launchorch/pkg/domain"
)

// AppActivator mimics the application activation manager
type AppActivator struct {
	host *Host
}

// NewAppActivator creates the primary activation strategy of a host
func NewAppActivator(host *Host) *AppActivator {
	return &AppActivator{host: host}
}

// Name returns the strategy name
func (a *AppActivator) Name() string { return StrategyAppActivation }

// Activate starts a registered app and returns its PID when it starts at once
func (a *AppActivator) Activate(ctx context.Context, identifier, arguments string) (uint32, error) {
	if domain.IsProtocolIdentifier(identifier) {
		return 0, domain.ErrStrategyNotApplicable
	}
	return a.host.activate(ctx, StrategyAppActivation, identifier)
}

// ShellActivator mimics the shell fallback, which never reports a PID
type ShellActivator struct {
	host *Host
}

// NewShellActivator creates the fallback activation strategy of a host
func NewShellActivator(host *Host) *ShellActivator {
	return &ShellActivator{host: host}
}

// Name returns the strategy name
func (s *ShellActivator) Name() string { return StrategyShellExecute }

// Activate starts a registered app
func (s *ShellActivator) Activate(ctx context.Context, identifier, arguments string) (uint32, error) {
	if _, err := s.host.activate(ctx, StrategyShellExecute, identifier); err != nil {
		return 0, err
	}
	return 0, nil
}

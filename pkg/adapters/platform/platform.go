// Package platform assembles the OS ports used by the orchestrator.
package platform

import (
	"github.com/aescanero/launchorch/pkg/adapters/platform/simulated"
	"github.com/aescanero/launchorch/pkg/ports"
)

// Platform bundles the OS-facing ports
type Platform struct {
	Processes  ports.ProcessTable
	Titles     ports.WindowTitleSource
	URIs       ports.URIDispatcher
	Attributes ports.AttributeSetter
	System     ports.SystemInfo
	// Activators are tried in order
	Activators []ports.Activator
}

// Simulated builds a platform backed by an in-process host
func Simulated(host *simulated.Host) *Platform {
	return &Platform{
		Processes:  host,
		Titles:     host,
		URIs:       host,
		Attributes: host,
		System:     host,
		Activators: []ports.Activator{
			simulated.NewAppActivator(host),
			simulated.NewShellActivator(host),
		},
	}
}

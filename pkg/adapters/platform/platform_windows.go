//go:build windows

package platform

import (
	"github.com/aescanero/launchorch/pkg/adapters/platform/win32"
	"github.com/aescanero/launchorch/pkg/ports"
)

// Native builds the Windows platform. clientPrefix selects the processes
// whose windows are sampled during validation.
func Native(clientPrefix string) (*Platform, error) {
	table := win32.NewProcessTable()
	shell := win32.NewShell()

	return &Platform{
		Processes:  table,
		Titles:     win32.NewWindowTitles(table, clientPrefix),
		URIs:       shell,
		Attributes: win32.NewAttributes(),
		System:     win32.NewSystem(),
		Activators: []ports.Activator{
			win32.NewAppActivator(),
			shell,
		},
	}, nil
}

package ports

import (
	"context"

	"github.com/aescanero/launchorch/pkg/domain"
)

// ProcessTable reads the OS process table
type ProcessTable interface {
	Snapshot(ctx context.Context) ([]domain.ProcessInfo, error)
}

// WindowTitleSource samples the titles of the external client's top-level windows
type WindowTitleSource interface {
	Titles(ctx context.Context) ([]string, error)
}

// URIDispatcher hands a URI to the OS default handler
type URIDispatcher interface {
	OpenURI(ctx context.Context, uri string) error
}

// AttributeSetter applies scheduling attributes to a process
type AttributeSetter interface {
	SetPriorityClass(pid uint32, class uint32) error
	SetAffinityMask(pid uint32, mask uint64) error
}

// SystemInfo describes the host
type SystemInfo interface {
	LogicalProcessors() int
}

// Activator is one way of asking the OS to start a packaged application.
// It returns the root process id when the mechanism reports one, or 0.
type Activator interface {
	Name() string
	Activate(ctx context.Context, identifier, arguments string) (uint32, error)
}

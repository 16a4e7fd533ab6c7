package ports

import (
	"context"

	"github.com/aescanero/launchorch/pkg/domain"
)

// EntryStore is the persisted store of launch entries.
// Get returns domain.ErrEntryNotFound for unknown names.
type EntryStore interface {
	List(ctx context.Context) ([]domain.LaunchEntry, error)
	Get(ctx context.Context, name string) (*domain.LaunchEntry, error)
	Put(ctx context.Context, entry domain.LaunchEntry) error

	// SaveLastRun records the latest terminal run of an entry
	SaveLastRun(ctx context.Context, name string, record *domain.RunRecord) error

	// LastRun returns nil without error when the entry never ran
	LastRun(ctx context.Context, name string) (*domain.RunRecord, error)
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/launchorch/pkg/domain"
)

// InMemoryEntryStore implements EntryStore using in-memory maps
type InMemoryEntryStore struct {
	entries  map[string]domain.LaunchEntry
	lastRuns map[string]domain.RunRecord
	mu       sync.RWMutex
}

// NewInMemoryEntryStore creates a new in-memory entry store
func NewInMemoryEntryStore(entries ...domain.LaunchEntry) *InMemoryEntryStore {
	s := &InMemoryEntryStore{
		entries:  make(map[string]domain.LaunchEntry),
		lastRuns: make(map[string]domain.RunRecord),
	}
	for _, e := range entries {
		s.entries[e.Name] = e
	}
	return s
}

// List returns all entries ordered by name
func (s *InMemoryEntryStore) List(ctx context.Context) ([]domain.LaunchEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LaunchEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries, nil
}

// Get returns an entry by name
func (s *InMemoryEntryStore) Get(ctx context.Context, name string) (*domain.LaunchEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, name)
	}
	return &e, nil
}

// Put creates or replaces an entry
func (s *InMemoryEntryStore) Put(ctx context.Context, entry domain.LaunchEntry) error {
	if entry.Name == "" {
		return fmt.Errorf("%w: entry name is required", domain.ErrInvalidEntry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Name] = entry
	return nil
}

// SaveLastRun records the latest terminal run of an entry
func (s *InMemoryEntryStore) SaveLastRun(ctx context.Context, name string, record *domain.RunRecord) error {
	if record == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRuns[name] = *record
	return nil
}

// LastRun returns the latest terminal run of an entry, or nil
func (s *InMemoryEntryStore) LastRun(ctx context.Context, name string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lastRuns[name]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

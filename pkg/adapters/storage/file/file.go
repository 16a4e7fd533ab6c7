package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aescanero/launchorch/pkg/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// entriesDocument is the layout of the entries file
type entriesDocument struct {
	Entries []domain.LaunchEntry `yaml:"entries"`
}

// entriesFile is the entries file as read; fileEntry tells an absent wait
// budget from an explicit zero
type entriesFile struct {
	Entries []fileEntry `yaml:"entries"`
}

type fileEntry struct {
	domain.LaunchEntry
}

// UnmarshalYAML applies the default wait budget only when the key is absent
func (f *fileEntry) UnmarshalYAML(node *yaml.Node) error {
	var budget struct {
		WaitBudgetSeconds *int `yaml:"wait_budget_s"`
	}
	if err := node.Decode(&budget); err != nil {
		return err
	}
	if err := node.Decode(&f.LaunchEntry); err != nil {
		return err
	}
	if budget.WaitBudgetSeconds == nil {
		f.WaitBudgetSeconds = domain.DefaultWaitBudgetSeconds
	}
	return nil
}

// runsDocument is the layout of the last-run file
type runsDocument struct {
	Runs map[string]domain.RunRecord `yaml:"runs"`
}

// EntryStore implements EntryStore on two YAML files: one holding the
// entries, one holding the last run of each entry. Both are rewritten
// atomically on every change.
type EntryStore struct {
	entriesPath string
	runsPath    string
	logger      *zap.Logger

	mu      sync.RWMutex
	entries map[string]domain.LaunchEntry
	runs    map[string]domain.RunRecord
}

// NewEntryStore loads the store from disk. Missing files start empty.
func NewEntryStore(entriesPath, runsPath string, logger *zap.Logger) (*EntryStore, error) {
	s := &EntryStore{
		entriesPath: entriesPath,
		runsPath:    runsPath,
		logger:      logger,
		entries:     make(map[string]domain.LaunchEntry),
		runs:        make(map[string]domain.RunRecord),
	}

	var entries entriesFile
	if err := readYAML(entriesPath, &entries); err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	for _, fe := range entries.Entries {
		e := fe.LaunchEntry
		if _, dup := s.entries[e.Name]; dup {
			return nil, fmt.Errorf("failed to load entries: duplicate entry %q", e.Name)
		}
		s.entries[e.Name] = e
	}

	if runsPath != "" {
		var runs runsDocument
		if err := readYAML(runsPath, &runs); err != nil {
			return nil, fmt.Errorf("failed to load last runs: %w", err)
		}
		for name, rec := range runs.Runs {
			s.runs[name] = rec
		}
	}

	logger.Info("entry store loaded",
		zap.String("path", entriesPath),
		zap.Int("entries", len(s.entries)),
		zap.Int("last_runs", len(s.runs)))

	return s, nil
}

// List returns all entries ordered by name
func (s *EntryStore) List(ctx context.Context) ([]domain.LaunchEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedEntries(), nil
}

// Get returns an entry by name
func (s *EntryStore) Get(ctx context.Context, name string) (*domain.LaunchEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, name)
	}
	return &e, nil
}

// Put creates or replaces an entry and rewrites the entries file
func (s *EntryStore) Put(ctx context.Context, entry domain.LaunchEntry) error {
	if entry.Name == "" {
		return fmt.Errorf("%w: entry name is required", domain.ErrInvalidEntry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.entries[entry.Name]
	s.entries[entry.Name] = entry

	if err := writeYAML(s.entriesPath, entriesDocument{Entries: s.sortedEntries()}); err != nil {
		// Keep memory consistent with disk
		if existed {
			s.entries[entry.Name] = previous
		} else {
			delete(s.entries, entry.Name)
		}
		return fmt.Errorf("failed to save entries: %w", err)
	}

	return nil
}

// SaveLastRun records the latest terminal run of an entry
func (s *EntryStore) SaveLastRun(ctx context.Context, name string, record *domain.RunRecord) error {
	if record == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[name] = *record
	if s.runsPath == "" {
		return nil
	}

	if err := writeYAML(s.runsPath, runsDocument{Runs: s.runs}); err != nil {
		return fmt.Errorf("failed to save last runs: %w", err)
	}
	return nil
}

// LastRun returns the latest terminal run of an entry, or nil
func (s *EntryStore) LastRun(ctx context.Context, name string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[name]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *EntryStore) sortedEntries() []domain.LaunchEntry {
	entries := make([]domain.LaunchEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeYAML replaces path through a temporary file in the same directory
func writeYAML(path string, in interface{}) error {
	data, err := yaml.Marshal(in)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

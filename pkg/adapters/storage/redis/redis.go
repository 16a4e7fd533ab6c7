package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EntryStore implements EntryStore using Redis. Entries are JSON values
// indexed by a set of names; last-run records expire after a TTL.
type EntryStore struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	runTTL time.Duration
}

// NewEntryStore creates a new Redis entry store
func NewEntryStore(client *redis.Client, prefix string, runTTL time.Duration, logger *zap.Logger) *EntryStore {
	if prefix == "" {
		prefix = "launchorch"
	}
	return &EntryStore{
		client: client,
		logger: logger,
		prefix: prefix,
		runTTL: runTTL,
	}
}

// List returns all entries ordered by name
func (s *EntryStore) List(ctx context.Context) ([]domain.LaunchEntry, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	if len(names) == 0 {
		return []domain.LaunchEntry{}, nil
	}
	sort.Strings(names)

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = s.entryKey(name)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}

	entries := make([]domain.LaunchEntry, 0, len(values))
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			// Index points at a deleted key
			s.logger.Warn("entry missing from store", zap.String("entry", names[i]))
			continue
		}

		var entry domain.LaunchEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry %s: %w", names[i], err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Get returns an entry by name
func (s *EntryStore) Get(ctx context.Context, name string) (*domain.LaunchEntry, error) {
	data, err := s.client.Get(ctx, s.entryKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrEntryNotFound, name)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	var entry domain.LaunchEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	return &entry, nil
}

// Put creates or replaces an entry
func (s *EntryStore) Put(ctx context.Context, entry domain.LaunchEntry) error {
	if entry.Name == "" {
		return fmt.Errorf("%w: entry name is required", domain.ErrInvalidEntry)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.entryKey(entry.Name), data, 0)
	pipe.SAdd(ctx, s.indexKey(), entry.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	s.logger.Debug("entry saved", zap.String("entry", entry.Name))
	return nil
}

// SaveLastRun records the latest terminal run of an entry
func (s *EntryStore) SaveLastRun(ctx context.Context, name string, record *domain.RunRecord) error {
	if record == nil {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	if err := s.client.Set(ctx, s.lastRunKey(name), data, s.runTTL).Err(); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	return nil
}

// LastRun returns the latest terminal run of an entry, or nil
func (s *EntryStore) LastRun(ctx context.Context, name string) (*domain.RunRecord, error) {
	data, err := s.client.Get(ctx, s.lastRunKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run record: %w", err)
	}

	var record domain.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}

	return &record, nil
}

func (s *EntryStore) indexKey() string {
	return fmt.Sprintf("%s:entries", s.prefix)
}

func (s *EntryStore) entryKey(name string) string {
	return fmt.Sprintf("%s:entry:%s", s.prefix, name)
}

func (s *EntryStore) lastRunKey(name string) string {
	return fmt.Sprintf("%s:lastrun:%s", s.prefix, name)
}

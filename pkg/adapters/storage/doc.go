// Package storage provides launch entry store implementations.
//
// Implementations:
//   - file: YAML entries file plus a YAML last-run file (default)
//   - redis: Redis with JSON serialization and TTL on last-run records
//   - memory: In-memory for tests and one-shot runs
package storage

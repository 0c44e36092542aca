// Package storage persists deadlines and per-user reminder times.
//
// Drivers:
//   - sqlite (default): a single SQLite file, schema ensured on open
//   - file: JSON snapshot plus an append-only journal, compacted periodically
//   - memory: process-local, for tests and dry runs
package storage

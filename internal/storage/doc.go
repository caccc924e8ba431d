// Package storage keeps an append-only journal of task lifecycle events.
//
// It records what happened (added, removed, executed, evicted) for audit and
// diagnostics. It is not a registry snapshot: tasks are never restored from it.
//
// Drivers:
//   - "file": JSON Lines, no extra dependencies
//   - "sqlite": SQLite database file (modernc.org/sqlite, pure Go)
package storage

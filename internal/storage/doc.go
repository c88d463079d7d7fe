// Package storage provides SQLite-based persistence for analyzed code data.
//
// The storage layer manages:
//   - Project metadata and aggregate statistics
//   - File paths and content hashes for incremental updates
//   - Extracted symbols with source positions
//   - Symbol-to-symbol references (calls, inheritance, usage)
//   - Per-project structured facts and cached analysis results
//
// # Database Schema
//
// Tables:
//   - projects: one row per analyzed workspace, keyed by root path hash
//   - files: relative paths and content hashes, unique per project
//   - symbols: declared entities, unique per (file, name, position)
//   - symbol_references: directed edges between symbols
//   - project_structure: key -> JSON side table for structured facts
//   - analysis_results: cached whole-graph analyses per project and kind
//   - schema_version: applied migration versions
//
// All child tables cascade on delete, so removing a project or file takes
// its dependent rows with it.
//
// # Cache Files
//
// Each workspace gets its own database file, named from a truncated SHA-256
// of its normalized root path:
//
//	db, err := storage.OpenOrCreate(cacheDir, "/Users/dev/myproject")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// OpenOrCreate applies pending migrations before returning. Tests use
// storage.OpenInMemory for a throwaway database.
//
// # Concurrency
//
// CacheDB serializes all access through a single mutex and a single
// underlying connection. Store methods each take the gate for one
// statement; batch methods take it for a whole transaction:
//
//	err := files.UpsertFilesBatch(ctx, projectID, entries)
//
// A batch either commits completely or rolls back completely.
//
// # Incremental Updates
//
// Compare a fresh snapshot of the workspace against stored hashes:
//
//	stale, err := files.GetStaleFiles(ctx, projectID, currentHashes)
//	deleted, err := files.GetDeletedFiles(ctx, projectID, currentPaths)
//
// Stale files get re-extracted; deleted files are dropped and their
// symbols and references cascade away.
//
// # Build Tags
//
// Two driver configurations are supported:
//
//   - cgo_sqlite: github.com/mattn/go-sqlite3, requires a C compiler
//   - default / purego: modernc.org/sqlite, pure Go
//
// Both run with WAL journaling and foreign keys enforced.
package storage

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned when operating on a closed cache
	ErrClosed = errors.New("cache closed")
)

// RootHashLength is the number of hex characters kept from the root path digest.
// Short enough for a readable cache filename, long enough that collisions are
// not a practical concern.
const RootHashLength = 16

// CacheDB owns the single SQLite connection backing one cache file. All store
// operations serialize through its gate; SQLite is single-writer and the
// connection pool is pinned to one connection.
type CacheDB struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// RootHash computes the identity hash for a project root path: the path is
// case-folded, trailing separators are trimmed, and the SHA-256 digest is
// truncated to a short hex prefix. The same root always maps to the same
// cache file.
func RootHash(rootPath string) string {
	canonical := strings.ToLower(rootPath)
	for len(canonical) > 1 && (strings.HasSuffix(canonical, "/") || strings.HasSuffix(canonical, string(os.PathSeparator))) {
		canonical = canonical[:len(canonical)-1]
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:RootHashLength]
}

// CacheFilePath returns the deterministic cache file location for a project root.
func CacheFilePath(cacheDir, rootPath string) string {
	return filepath.Join(cacheDir, RootHash(rootPath)+".db")
}

// OpenOrCreate opens (creating if necessary) the cache file for the given
// project root under cacheDir and applies any pending schema migrations.
// A schema failure is fatal: the database is closed and the error returned.
func OpenOrCreate(cacheDir, rootPath string) (*CacheDB, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return open(CacheFilePath(cacheDir, rootPath))
}

// OpenInMemory opens an ephemeral in-memory cache. It runs the exact same
// schema and code paths as the durable variant; only the storage target
// differs. Intended for tests.
func OpenInMemory() (*CacheDB, error) {
	return open(":memory:")
}

func open(path string) (*CacheDB, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite benefits from a single writer; the gate serializes logical
	// operations on top of that.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &CacheDB{db: db, path: path}, nil
}

// Path returns the cache file path, or ":memory:" for the ephemeral variant.
func (c *CacheDB) Path() string {
	return c.path
}

// Close closes the underlying connection. Closing an already-closed cache
// is a no-op.
func (c *CacheDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// run acquires the gate and executes fn against the live connection.
// Operations queue on the gate in submission order.
func (c *CacheDB) run(ctx context.Context, fn func(q querier) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(c.db)
}

// RunInTransaction acquires the gate, begins a transaction, invokes action,
// and commits on success. Any error (including context cancellation observed
// by the action) rolls the whole transaction back and is returned; partial
// work is never committed.
func (c *CacheDB) RunInTransaction(ctx context.Context, action func(tx *sql.Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := action(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

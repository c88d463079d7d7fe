package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *CacheDB {
	db, err := OpenInMemory()
	require.NoError(t, err)
	require.NotNil(t, db)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRootHash(t *testing.T) {
	h := RootHash("/Users/dev/MyProject")
	assert.Len(t, h, 16)

	// Case and trailing separators do not change identity.
	assert.Equal(t, h, RootHash("/users/dev/myproject"))
	assert.Equal(t, h, RootHash("/Users/dev/MyProject/"))

	// Different roots hash differently.
	assert.NotEqual(t, h, RootHash("/Users/dev/OtherProject"))
}

func TestCacheFilePath(t *testing.T) {
	path := CacheFilePath("/tmp/cache", "/work/proj")
	assert.Equal(t, "/tmp/cache", filepath.Dir(path))
	assert.Equal(t, RootHash("/work/proj")+".db", filepath.Base(path))
}

func TestOpenOrCreate(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenOrCreate(dir, "/work/proj")
	require.NoError(t, err)
	assert.Equal(t, CacheFilePath(dir, "/work/proj"), db.Path())
	require.NoError(t, db.Close())

	// Reopening the same root resolves to the same file.
	db2, err := OpenOrCreate(dir, "/work/proj/")
	require.NoError(t, err)
	assert.Equal(t, db.Path(), db2.Path())
	require.NoError(t, db2.Close())
}

func TestCloseIdempotent(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)

	assert.NoError(t, db.Close())
	assert.NoError(t, db.Close())

	// Operations after close fail with ErrClosed.
	projects := NewProjectStore(db)
	_, err = projects.GetOrCreateProject(context.Background(), "/work/proj", "proj")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRunInTransactionRollback(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	projects := NewProjectStore(db)
	boom := errors.New("boom")

	err := db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (root_hash, root_path, name, opened_at)
			VALUES (?, '/work/proj', 'proj', CURRENT_TIMESTAMP)
		`, RootHash("/work/proj"))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The insert was rolled back.
	_, err = projects.GetProjectByPath(ctx, "/work/proj")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunInTransactionCommit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (root_hash, root_path, name, opened_at)
			VALUES (?, '/work/proj', 'proj', CURRENT_TIMESTAMP)
		`, RootHash("/work/proj"))
		return err
	})
	require.NoError(t, err)

	projects := NewProjectStore(db)
	project, err := projects.GetProjectByPath(ctx, "/work/proj")
	require.NoError(t, err)
	assert.Equal(t, "proj", project.Name)
}

func TestCanceledContext(t *testing.T) {
	db := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	projects := NewProjectStore(db)
	_, err := projects.GetOrCreateProject(ctx, "/work/proj", "proj")
	assert.ErrorIs(t, err, context.Canceled)
}

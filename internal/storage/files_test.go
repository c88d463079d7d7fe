package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProject(t *testing.T, db *CacheDB) int64 {
	id, err := NewProjectStore(db).GetOrCreateProject(context.Background(), "/work/proj", "proj")
	require.NoError(t, err)
	return id
}

func TestUpsertFileIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	files := NewFileStore(db)
	projectID := setupProject(t, db)

	entry := FileEntry{RelativePath: "src/a.cs", ContentHash: "h1", SizeBytes: 100, Language: "csharp"}
	id1, err := files.UpsertFile(ctx, projectID, entry)
	require.NoError(t, err)

	// Same path upserts in place; the hash is refreshed, the id is stable.
	entry.ContentHash = "h2"
	id2, err := files.UpsertFile(ctx, projectID, entry)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	f, err := files.GetFile(ctx, projectID, "src/a.cs")
	require.NoError(t, err)
	assert.Equal(t, "h2", f.ContentHash)

	count, err := files.GetFileCount(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertFilesBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	files := NewFileStore(db)
	projectID := setupProject(t, db)

	ids, err := files.UpsertFilesBatch(ctx, projectID, []FileEntry{
		{RelativePath: "src/a.cs", ContentHash: "h1"},
		{RelativePath: "src/b.cs", ContentHash: "h2"},
		{RelativePath: "src/c.cs", ContentHash: "h3"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	all, err := files.GetAllFiles(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "src/a.cs", all[0].RelativePath)
	assert.Equal(t, "src/c.cs", all[2].RelativePath)
}

func TestGetStaleFiles(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	files := NewFileStore(db)
	projectID := setupProject(t, db)

	_, err := files.UpsertFilesBatch(ctx, projectID, []FileEntry{
		{RelativePath: "a.cs", ContentHash: "h1"},
		{RelativePath: "b.cs", ContentHash: "h2"},
		{RelativePath: "c.cs", ContentHash: "h3"},
	})
	require.NoError(t, err)

	// b.cs changed, c.cs was deleted, a.cs is untouched.
	stale, err := files.GetStaleFiles(ctx, projectID, map[string]string{
		"a.cs": "h1",
		"b.cs": "h2-modified",
	})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "b.cs", stale[0].RelativePath)

	deleted, err := files.GetDeletedFiles(ctx, projectID, map[string]struct{}{
		"a.cs": {},
		"b.cs": {},
	})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "c.cs", deleted[0].RelativePath)
}

func TestGetStaleFilesEmptySnapshot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	files := NewFileStore(db)
	projectID := setupProject(t, db)

	_, err := files.UpsertFile(ctx, projectID, FileEntry{RelativePath: "a.cs", ContentHash: "h1"})
	require.NoError(t, err)

	// An empty snapshot means everything is deleted, nothing is stale.
	stale, err := files.GetStaleFiles(ctx, projectID, nil)
	require.NoError(t, err)
	assert.Empty(t, stale)

	deleted, err := files.GetDeletedFiles(ctx, projectID, nil)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "a.cs", deleted[0].RelativePath)
}

func TestGetAllFilesEmptyProject(t *testing.T) {
	db := setupTestDB(t)
	files := NewFileStore(db)
	projectID := setupProject(t, db)

	all, err := files.GetAllFiles(context.Background(), projectID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeleteFileCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	files := NewFileStore(db)
	symbols := NewSymbolStore(db)
	refs := NewReferenceStore(db)
	projectID := setupProject(t, db)

	fileID, err := files.UpsertFile(ctx, projectID, FileEntry{RelativePath: "a.cs", ContentHash: "h1"})
	require.NoError(t, err)

	caller := &Symbol{FileID: fileID, Name: "Caller", Kind: "method", Line: 1}
	callee := &Symbol{FileID: fileID, Name: "Callee", Kind: "method", Line: 5}
	require.NoError(t, symbols.UpsertSymbol(ctx, caller))
	require.NoError(t, symbols.UpsertSymbol(ctx, callee))
	require.NoError(t, refs.UpsertReference(ctx, &Reference{
		FromSymbolID: caller.ID, ToSymbolID: callee.ID, Kind: "call", FileID: fileID, Line: 2,
	}))

	require.NoError(t, files.DeleteFileByPath(ctx, projectID, "a.cs"))

	inFile, err := symbols.GetSymbolsInFile(ctx, fileID)
	require.NoError(t, err)
	assert.Empty(t, inFile)

	counts, err := refs.GetReferenceCountsByKind(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

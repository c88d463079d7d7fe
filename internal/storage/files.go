package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// File represents one tracked source file within a project. ContentHash is
// the digest the extractor computed over the file's bytes; staleness checks
// compare it against a freshly scanned snapshot without reading content.
type File struct {
	ID           int64
	ProjectID    int64
	RelativePath string
	ContentHash  string
	LastIndexed  time.Time
	SizeBytes    int64
	Language     string
}

// FileEntry is the ingestion-side description of a file for batch upserts.
type FileEntry struct {
	RelativePath string
	ContentHash  string
	SizeBytes    int64
	Language     string
}

// FileStore manages per-file metadata and the incremental re-indexing
// contract: callers supply a current path->hash snapshot and the store
// reports what is stale or deleted.
type FileStore struct {
	db *CacheDB
}

// NewFileStore creates a FileStore sharing the given connection.
func NewFileStore(db *CacheDB) *FileStore {
	return &FileStore{db: db}
}

const fileColumns = "id, project_id, relative_path, content_hash, last_indexed, size_bytes, language"

func scanFileRows(rows *sql.Rows) ([]*File, error) {
	files := make([]*File, 0)
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.RelativePath, &f.ContentHash,
			&f.LastIndexed, &f.SizeBytes, &f.Language); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

func upsertFileTx(ctx context.Context, q querier, projectID int64, entry FileEntry, now time.Time) (int64, error) {
	query := `
		INSERT INTO files (project_id, relative_path, content_hash, last_indexed, size_bytes, language)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, relative_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			last_indexed = excluded.last_indexed,
			size_bytes = excluded.size_bytes,
			language = excluded.language
		RETURNING id
	`
	var id int64
	err := q.QueryRowContext(ctx, query,
		projectID, entry.RelativePath, entry.ContentHash, now, entry.SizeBytes, entry.Language).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert file %s: %w", entry.RelativePath, err)
	}
	return id, nil
}

// UpsertFileTx upserts one file inside a caller-managed transaction.
func UpsertFileTx(ctx context.Context, tx *sql.Tx, projectID int64, entry FileEntry) (int64, error) {
	return upsertFileTx(ctx, tx, projectID, entry, time.Now())
}

// UpsertFile inserts or updates a single file keyed on (project, relative
// path) and returns its id.
func (s *FileStore) UpsertFile(ctx context.Context, projectID int64, entry FileEntry) (int64, error) {
	var id int64
	err := s.db.run(ctx, func(q querier) error {
		var err error
		id, err = upsertFileTx(ctx, q, projectID, entry, time.Now())
		return err
	})
	return id, err
}

// UpsertFilesBatch upserts many files in a single transaction. This is the
// primary ingestion path after a directory scan; a failure on any row rolls
// back the whole batch. Returns ids in entry order.
func (s *FileStore) UpsertFilesBatch(ctx context.Context, projectID int64, entries []FileEntry) ([]int64, error) {
	ids := make([]int64, 0, len(entries))
	now := time.Now()
	err := s.db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := upsertFileTx(ctx, tx, projectID, entry, now)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetFile returns the file at relativePath, or ErrNotFound.
func (s *FileStore) GetFile(ctx context.Context, projectID int64, relativePath string) (*File, error) {
	var file File
	err := s.db.run(ctx, func(q querier) error {
		row := q.QueryRowContext(ctx,
			"SELECT "+fileColumns+" FROM files WHERE project_id = ? AND relative_path = ?",
			projectID, relativePath)
		err := row.Scan(&file.ID, &file.ProjectID, &file.RelativePath, &file.ContentHash,
			&file.LastIndexed, &file.SizeBytes, &file.Language)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// GetAllFiles returns every file in the project ordered by relative path so
// output is deterministic.
func (s *FileStore) GetAllFiles(ctx context.Context, projectID int64) ([]*File, error) {
	var files []*File
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			"SELECT "+fileColumns+" FROM files WHERE project_id = ? ORDER BY relative_path", projectID)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		files, err = scanFileRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetStaleFiles returns every stored file whose hash differs from the entry
// in currentHashes. Files absent from the snapshot are not stale, they are
// deleted; see GetDeletedFiles. Linear in the number of stored files.
func (s *FileStore) GetStaleFiles(ctx context.Context, projectID int64, currentHashes map[string]string) ([]*File, error) {
	files, err := s.GetAllFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	stale := make([]*File, 0)
	for _, f := range files {
		if hash, ok := currentHashes[f.RelativePath]; ok && hash != f.ContentHash {
			stale = append(stale, f)
		}
	}
	return stale, nil
}

// GetDeletedFiles returns stored files whose relative path is absent from
// currentPaths: files removed from disk since the last index.
func (s *FileStore) GetDeletedFiles(ctx context.Context, projectID int64, currentPaths map[string]struct{}) ([]*File, error) {
	files, err := s.GetAllFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}
	deleted := make([]*File, 0)
	for _, f := range files {
		if _, ok := currentPaths[f.RelativePath]; !ok {
			deleted = append(deleted, f)
		}
	}
	return deleted, nil
}

// DeleteFile removes a file row; symbols and references anchored to it
// cascade-delete.
func (s *FileStore) DeleteFile(ctx context.Context, fileID int64) error {
	return s.db.run(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, "DELETE FROM files WHERE id = ?", fileID)
		return err
	})
}

// DeleteFileByPath removes the file at relativePath, cascading as DeleteFile.
func (s *FileStore) DeleteFileByPath(ctx context.Context, projectID int64, relativePath string) error {
	return s.db.run(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			"DELETE FROM files WHERE project_id = ? AND relative_path = ?", projectID, relativePath)
		return err
	})
}

// GetFileCount returns the number of files tracked for the project.
func (s *FileStore) GetFileCount(ctx context.Context, projectID int64) (int, error) {
	var count int
	err := s.db.run(ctx, func(q querier) error {
		return q.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM files WHERE project_id = ?", projectID).Scan(&count)
	})
	return count, err
}

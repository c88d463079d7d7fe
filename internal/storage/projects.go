package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Project represents one analyzed root directory. RootHash is the identity
// hash derived from the canonicalized root path and is unique per cache.
type Project struct {
	ID            int64
	RootHash      string
	RootPath      string
	Name          string
	OpenedAt      time.Time
	SolutionCount int
	ProjectCount  int
	FileCount     int
}

// ProjectStats is a partial update of a project's aggregate counters; only
// non-nil fields are written.
type ProjectStats struct {
	SolutionCount *int
	ProjectCount  *int
	FileCount     *int
}

// ProjectStore manages project registration and per-project structured facts.
type ProjectStore struct {
	db *CacheDB
}

// NewProjectStore creates a ProjectStore sharing the given connection.
func NewProjectStore(db *CacheDB) *ProjectStore {
	return &ProjectStore{db: db}
}

const projectColumns = "id, root_hash, root_path, name, opened_at, solution_count, project_count, file_count"

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.RootHash, &p.RootPath, &p.Name, &p.OpenedAt,
		&p.SolutionCount, &p.ProjectCount, &p.FileCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateProject registers a project root. If a project with the same
// identity hash already exists its open timestamp is refreshed; otherwise a
// new row is inserted. Returns the project id either way.
func (s *ProjectStore) GetOrCreateProject(ctx context.Context, rootPath, name string) (int64, error) {
	var id int64
	err := s.db.run(ctx, func(q querier) error {
		query := `
			INSERT INTO projects (root_hash, root_path, name, opened_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(root_hash) DO UPDATE SET opened_at = excluded.opened_at
			RETURNING id
		`
		return q.QueryRowContext(ctx, query, RootHash(rootPath), rootPath, name, time.Now()).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get or create project: %w", err)
	}
	return id, nil
}

// GetProjectByID looks up a project by its row id.
func (s *ProjectStore) GetProjectByID(ctx context.Context, projectID int64) (*Project, error) {
	var project *Project
	err := s.db.run(ctx, func(q querier) error {
		row := q.QueryRowContext(ctx,
			"SELECT "+projectColumns+" FROM projects WHERE id = ?", projectID)
		var err error
		project, err = scanProject(row)
		return err
	})
	return project, err
}

// GetProjectByPath looks up a project by root path via its identity hash.
func (s *ProjectStore) GetProjectByPath(ctx context.Context, rootPath string) (*Project, error) {
	var project *Project
	err := s.db.run(ctx, func(q querier) error {
		row := q.QueryRowContext(ctx,
			"SELECT "+projectColumns+" FROM projects WHERE root_hash = ?", RootHash(rootPath))
		var err error
		project, err = scanProject(row)
		return err
	})
	return project, err
}

// UpdateProjectStats writes the supplied aggregate counters. Fields left nil
// are untouched; calling with an empty update is a no-op.
func (s *ProjectStore) UpdateProjectStats(ctx context.Context, projectID int64, stats ProjectStats) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if stats.SolutionCount != nil {
		sets = append(sets, "solution_count = ?")
		args = append(args, *stats.SolutionCount)
	}
	if stats.ProjectCount != nil {
		sets = append(sets, "project_count = ?")
		args = append(args, *stats.ProjectCount)
	}
	if stats.FileCount != nil {
		sets = append(sets, "file_count = ?")
		args = append(args, *stats.FileCount)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, projectID)

	return s.db.run(ctx, func(q querier) error {
		query := "UPDATE projects SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update project stats: %w", err)
		}
		return nil
	})
}

// DeleteProject removes the project row; files, symbols, references and
// structure entries cascade.
func (s *ProjectStore) DeleteProject(ctx context.Context, projectID int64) error {
	return s.db.run(ctx, func(q querier) error {
		if _, err := q.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return nil
	})
}

// SetProjectStructure upserts a JSON value under a per-project key. This is
// the home for structured facts that don't warrant their own table, such as
// solution topology.
func (s *ProjectStore) SetProjectStructure(ctx context.Context, projectID int64, key string, value json.RawMessage) error {
	return s.db.run(ctx, func(q querier) error {
		query := `
			INSERT INTO project_structure (project_id, "key", value_json)
			VALUES (?, ?, ?)
			ON CONFLICT(project_id, "key") DO UPDATE SET value_json = excluded.value_json
		`
		if _, err := q.ExecContext(ctx, query, projectID, key, string(value)); err != nil {
			return fmt.Errorf("failed to set project structure %q: %w", key, err)
		}
		return nil
	})
}

// GetProjectStructure returns the JSON value stored under key, or ErrNotFound.
func (s *ProjectStore) GetProjectStructure(ctx context.Context, projectID int64, key string) (json.RawMessage, error) {
	var value string
	err := s.db.run(ctx, func(q querier) error {
		row := q.QueryRowContext(ctx,
			`SELECT value_json FROM project_structure WHERE project_id = ? AND "key" = ?`, projectID, key)
		if err := row.Scan(&value); err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

// ListProjectStructureKeys returns all structure keys for a project, sorted.
func (s *ProjectStore) ListProjectStructureKeys(ctx context.Context, projectID int64) ([]string, error) {
	keys := make([]string, 0)
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			`SELECT "key" FROM project_structure WHERE project_id = ? ORDER BY "key"`, projectID)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

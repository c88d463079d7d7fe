package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisStore caches whole-graph analysis results (cycle reports, metric
// summaries) per project and kind, so repeat queries skip the rebuild.
type AnalysisStore struct {
	db *CacheDB
}

// NewAnalysisStore creates an AnalysisStore sharing the given connection.
func NewAnalysisStore(db *CacheDB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

// SetAnalysisResult stores result under (projectID, kind), replacing any
// previous value.
func (s *AnalysisStore) SetAnalysisResult(ctx context.Context, projectID int64, kind string, result json.RawMessage) error {
	return s.db.run(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO analysis_results (project_id, kind, result_json, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(project_id, kind) DO UPDATE SET
				result_json = excluded.result_json,
				created_at = excluded.created_at
		`, projectID, kind, string(result), time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("failed to store %s analysis: %w", kind, err)
		}
		return nil
	})
}

// GetAnalysisResult returns the cached result for (projectID, kind), or
// ErrNotFound.
func (s *AnalysisStore) GetAnalysisResult(ctx context.Context, projectID int64, kind string) (json.RawMessage, error) {
	var raw string
	err := s.db.run(ctx, func(q querier) error {
		err := q.QueryRowContext(ctx,
			"SELECT result_json FROM analysis_results WHERE project_id = ? AND kind = ?",
			projectID, kind).Scan(&raw)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// DeleteAnalysisResults drops every cached analysis for a project. Call
// this whenever the underlying symbol or reference data changes.
func (s *AnalysisStore) DeleteAnalysisResults(ctx context.Context, projectID int64) error {
	return s.db.run(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx,
			"DELETE FROM analysis_results WHERE project_id = ?", projectID)
		return err
	})
}

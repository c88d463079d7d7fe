package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/calltrace/codegraph/internal/storage"
)

// Plan describes the work a re-index pass must do after a workspace scan:
// which stored files are stale (content changed) and which are new. Files
// that vanished from the workspace are already deleted by the time Plan
// returns; their symbols and references cascade away with them.
type Plan struct {
	Stale   []*storage.File
	New     []string // relative paths present in the snapshot but not stored
	Removed []string // relative paths deleted from storage by this plan
}

// Empty reports whether the plan leaves nothing to extract.
func (p *Plan) Empty() bool {
	return len(p.Stale) == 0 && len(p.New) == 0
}

// Planner diffs a freshly scanned path->hash snapshot against stored file
// state.
type Planner struct {
	files *storage.FileStore
}

// NewPlanner creates a Planner over the given file store.
func NewPlanner(files *storage.FileStore) *Planner {
	return &Planner{files: files}
}

// Plan computes the stale and new file sets for a project and deletes files
// absent from the snapshot. Unchanged files are untouched, so extraction
// cost is proportional to churn, not workspace size.
func (p *Planner) Plan(ctx context.Context, projectID int64, snapshot map[string]string) (*Plan, error) {
	currentPaths := make(map[string]struct{}, len(snapshot))
	for path := range snapshot {
		currentPaths[path] = struct{}{}
	}

	deleted, err := p.files.GetDeletedFiles(ctx, projectID, currentPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to diff deleted files: %w", err)
	}
	removed := make([]string, 0, len(deleted))
	for _, f := range deleted {
		if err := p.files.DeleteFile(ctx, f.ID); err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", f.RelativePath, err)
		}
		removed = append(removed, f.RelativePath)
	}

	stale, err := p.files.GetStaleFiles(ctx, projectID, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to diff stale files: %w", err)
	}

	stored, err := p.files.GetAllFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored files: %w", err)
	}
	known := make(map[string]struct{}, len(stored))
	for _, f := range stored {
		known[f.RelativePath] = struct{}{}
	}
	added := make([]string, 0)
	for path := range snapshot {
		if _, ok := known[path]; !ok {
			added = append(added, path)
		}
	}
	sort.Strings(added)

	return &Plan{Stale: stale, New: added, Removed: removed}, nil
}

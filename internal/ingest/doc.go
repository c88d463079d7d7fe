// Package ingest is the write-side plumbing an extractor drives: planning
// which files need re-extraction after a workspace scan, and applying
// extracted fact batches transactionally.
//
// A re-index pass looks like:
//
//	plan, err := planner.Plan(ctx, projectID, snapshot)
//	// extract plan.Stale and plan.New ...
//	stats, err := ingestor.Apply(ctx, projectID, batches)
//
// Plan deletes files missing from the snapshot; Apply replaces each
// re-extracted file's symbols wholesale inside one transaction per file.
// This package does no parsing: the extractor is an external collaborator
// that hands over ready-made facts.
package ingest

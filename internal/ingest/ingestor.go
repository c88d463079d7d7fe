package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calltrace/codegraph/internal/storage"
)

// BatchReference is one reference fact inside a Batch. Endpoints are
// indexes into the batch's Symbols slice; cross-file references are wired
// by a later pass through the reference store once both endpoints exist.
type BatchReference struct {
	FromIndex int
	ToIndex   int
	Kind      string
	Line      int
	Column    int
}

// Batch carries everything extracted from one file: the file entry itself,
// its symbols, and the references among them.
type Batch struct {
	File       storage.FileEntry
	Symbols    []*storage.Symbol
	References []BatchReference
}

// Stats summarizes one Apply run.
type Stats struct {
	FilesIngested      int
	SymbolsIngested    int
	ReferencesIngested int
	Duration           time.Duration
}

// Config tunes the ingestor.
type Config struct {
	Workers int // concurrent batch writers (default: runtime.NumCPU())
}

// Ingestor writes extracted fact batches into storage, one transaction per
// file, fanned out across workers. The database gate serializes the actual
// writes; concurrency here overlaps encoding and scheduling, and keeps the
// shape ready for a backend with real write parallelism.
type Ingestor struct {
	db      *storage.CacheDB
	workers int
}

// NewIngestor creates an Ingestor over db.
func NewIngestor(db *storage.CacheDB, cfg Config) *Ingestor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Ingestor{db: db, workers: workers}
}

// Apply ingests every batch. Re-extracted files are replaced wholesale:
// old symbols (and, by cascade, their references) are dropped inside the
// same transaction that writes the new facts, so readers never observe a
// half-updated file. A failed batch aborts the run; committed batches stay.
func (ing *Ingestor) Apply(ctx context.Context, projectID int64, batches []Batch) (*Stats, error) {
	start := time.Now()
	var files, symbols, references int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(ing.workers)
	for i := range batches {
		batch := &batches[i]
		eg.Go(func() error {
			if err := ing.applyBatch(egCtx, projectID, batch); err != nil {
				return fmt.Errorf("failed to ingest %s: %w", batch.File.RelativePath, err)
			}
			atomic.AddInt64(&files, 1)
			atomic.AddInt64(&symbols, int64(len(batch.Symbols)))
			atomic.AddInt64(&references, int64(len(batch.References)))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Stats{
		FilesIngested:      int(files),
		SymbolsIngested:    int(symbols),
		ReferencesIngested: int(references),
		Duration:           time.Since(start),
	}, nil
}

func (ing *Ingestor) applyBatch(ctx context.Context, projectID int64, batch *Batch) error {
	for _, ref := range batch.References {
		if ref.FromIndex < 0 || ref.FromIndex >= len(batch.Symbols) ||
			ref.ToIndex < 0 || ref.ToIndex >= len(batch.Symbols) {
			return fmt.Errorf("reference endpoint out of range: %d->%d", ref.FromIndex, ref.ToIndex)
		}
	}

	return ing.db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		fileID, err := storage.UpsertFileTx(ctx, tx, projectID, batch.File)
		if err != nil {
			return err
		}
		if err := storage.DeleteSymbolsForFileTx(ctx, tx, fileID); err != nil {
			return err
		}
		for _, sym := range batch.Symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			sym.FileID = fileID
			if err := storage.UpsertSymbolTx(ctx, tx, sym); err != nil {
				return err
			}
		}
		for _, ref := range batch.References {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := storage.UpsertReferenceTx(ctx, tx, &storage.Reference{
				FromSymbolID: batch.Symbols[ref.FromIndex].ID,
				ToSymbolID:   batch.Symbols[ref.ToIndex].ID,
				Kind:         ref.Kind,
				FileID:       fileID,
				Line:         ref.Line,
				Column:       ref.Column,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

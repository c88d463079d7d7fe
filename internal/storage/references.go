package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Reference records one directed relationship between two symbols: a call,
// an inheritance edge, an implementation edge, or a plain usage.
type Reference struct {
	ID           int64
	FromSymbolID int64
	ToSymbolID   int64
	Kind         string
	FileID       int64
	Line         int
	Column       int
}

// ReferenceLink pairs a reference with the symbol on its far end, as seen
// from the symbol the query started at.
type ReferenceLink struct {
	Reference *Reference
	Symbol    *Symbol
}

// ChainDirection selects which way GetCallChain walks the reference graph.
type ChainDirection string

const (
	// ChainForward walks callees: symbols the seed transitively calls.
	ChainForward ChainDirection = "forward"
	// ChainBackward walks callers: symbols that transitively call the seed.
	ChainBackward ChainDirection = "backward"
)

// ReferenceStore manages symbol-to-symbol references.
type ReferenceStore struct {
	db *CacheDB
}

// NewReferenceStore creates a ReferenceStore sharing the given connection.
func NewReferenceStore(db *CacheDB) *ReferenceStore {
	return &ReferenceStore{db: db}
}

func upsertReferenceTx(ctx context.Context, q querier, ref *Reference) error {
	query := `
		INSERT INTO symbol_references (from_symbol_id, to_symbol_id, reference_kind, file_id, line, "column")
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_symbol_id, to_symbol_id, reference_kind, file_id, line, "column") DO UPDATE SET
			reference_kind = excluded.reference_kind
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		ref.FromSymbolID, ref.ToSymbolID, ref.Kind, ref.FileID, ref.Line, ref.Column,
	).Scan(&ref.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert reference %d->%d: %w", ref.FromSymbolID, ref.ToSymbolID, err)
	}
	return nil
}

// UpsertReferenceTx upserts one reference inside a caller-managed
// transaction.
func UpsertReferenceTx(ctx context.Context, tx *sql.Tx, ref *Reference) error {
	return upsertReferenceTx(ctx, tx, ref)
}

// UpsertReference inserts or re-affirms one reference, setting its ID.
func (s *ReferenceStore) UpsertReference(ctx context.Context, ref *Reference) error {
	return s.db.run(ctx, func(q querier) error {
		return upsertReferenceTx(ctx, q, ref)
	})
}

// UpsertReferencesBatch upserts many references inside one transaction.
func (s *ReferenceStore) UpsertReferencesBatch(ctx context.Context, refs []*Reference) error {
	return s.db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := upsertReferenceTx(ctx, tx, ref); err != nil {
				return err
			}
		}
		return nil
	})
}

const linkQueryCallers = `
	SELECT r.id, r.from_symbol_id, r.to_symbol_id, r.reference_kind, r.file_id, r.line, r."column",
		` + prefixedSymbolColumns + `
	FROM symbol_references r
	JOIN symbols s ON s.id = r.from_symbol_id
	WHERE r.to_symbol_id = ?
	ORDER BY s.name, r.line
`

const linkQueryCallees = `
	SELECT r.id, r.from_symbol_id, r.to_symbol_id, r.reference_kind, r.file_id, r.line, r."column",
		` + prefixedSymbolColumns + `
	FROM symbol_references r
	JOIN symbols s ON s.id = r.to_symbol_id
	WHERE r.from_symbol_id = ?
	ORDER BY s.name, r.line
`

const prefixedSymbolColumns = `s.id, s.file_id, s.name, s.kind, s.namespace, s.containing_type,
		s.line, s."column", s.end_line, s.end_column, s.accessibility, s.signature`

func scanLinkRows(rows *sql.Rows) ([]*ReferenceLink, error) {
	links := make([]*ReferenceLink, 0)
	for rows.Next() {
		var ref Reference
		var sym Symbol
		var signature sql.NullString
		err := rows.Scan(
			&ref.ID, &ref.FromSymbolID, &ref.ToSymbolID, &ref.Kind, &ref.FileID, &ref.Line, &ref.Column,
			&sym.ID, &sym.FileID, &sym.Name, &sym.Kind, &sym.Namespace, &sym.ContainingType,
			&sym.Line, &sym.Column, &sym.EndLine, &sym.EndColumn, &sym.Accessibility, &signature,
		)
		if err != nil {
			return nil, err
		}
		if signature.Valid {
			sym.Signature = signature.String
		}
		links = append(links, &ReferenceLink{Reference: &ref, Symbol: &sym})
	}
	return links, rows.Err()
}

func (s *ReferenceStore) queryLinks(ctx context.Context, query string, symbolID int64) ([]*ReferenceLink, error) {
	var links []*ReferenceLink
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, query, symbolID)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		links, err = scanLinkRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// FindCallers returns every reference targeting symbolID, regardless of
// kind, each paired with the referencing symbol, ordered by name.
func (s *ReferenceStore) FindCallers(ctx context.Context, symbolID int64) ([]*ReferenceLink, error) {
	return s.queryLinks(ctx, linkQueryCallers, symbolID)
}

// FindCallees returns every symbol symbolID references, regardless of kind,
// ordered by name.
func (s *ReferenceStore) FindCallees(ctx context.Context, symbolID int64) ([]*ReferenceLink, error) {
	return s.queryLinks(ctx, linkQueryCallees, symbolID)
}

// GetCallChain walks the reference graph from symbolID up to maxDepth hops,
// forward to callees or backward to callers, and returns every symbol
// reached excluding the seed, ordered by name. Cycles are tolerated: each
// symbol is visited at most once.
func (s *ReferenceStore) GetCallChain(ctx context.Context, symbolID int64, direction ChainDirection, maxDepth int) ([]*Symbol, error) {
	query := linkQueryCallees
	if direction == ChainBackward {
		query = linkQueryCallers
	}

	visited := map[int64]*Symbol{symbolID: nil}
	frontier := []int64{symbolID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		next := make([]int64, 0, len(frontier))
		for _, id := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			links, err := s.queryLinks(ctx, query, id)
			if err != nil {
				return nil, err
			}
			for _, link := range links {
				if _, seen := visited[link.Symbol.ID]; seen {
					continue
				}
				visited[link.Symbol.ID] = link.Symbol
				next = append(next, link.Symbol.ID)
			}
		}
		frontier = next
	}

	chain := make([]*Symbol, 0, len(visited)-1)
	for id, sym := range visited {
		if id == symbolID {
			continue
		}
		chain = append(chain, sym)
	}
	sort.Slice(chain, func(i, j int) bool { return chain[i].Name < chain[j].Name })
	return chain, nil
}

// GetReferencesToSymbol returns every reference targeting symbolID,
// regardless of kind, ordered by location.
func (s *ReferenceStore) GetReferencesToSymbol(ctx context.Context, symbolID int64) ([]*Reference, error) {
	var refs []*Reference
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT id, from_symbol_id, to_symbol_id, reference_kind, file_id, line, "column"
			FROM symbol_references
			WHERE to_symbol_id = ?
			ORDER BY file_id, line, "column"
		`, symbolID)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		refs = make([]*Reference, 0)
		for rows.Next() {
			var ref Reference
			if err := rows.Scan(&ref.ID, &ref.FromSymbolID, &ref.ToSymbolID, &ref.Kind,
				&ref.FileID, &ref.Line, &ref.Column); err != nil {
				return err
			}
			refs = append(refs, &ref)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// DeleteReferencesForFile removes every reference recorded in a file.
func (s *ReferenceStore) DeleteReferencesForFile(ctx context.Context, fileID int64) error {
	return s.db.run(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, "DELETE FROM symbol_references WHERE file_id = ?", fileID)
		return err
	})
}

// GetReferenceCountsByKind returns reference counts grouped by kind.
func (s *ReferenceStore) GetReferenceCountsByKind(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			"SELECT reference_kind, COUNT(*) FROM symbol_references GROUP BY reference_kind")
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var kind string
			var count int
			if err := rows.Scan(&kind, &count); err != nil {
				return err
			}
			counts[kind] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// AllCallEdges returns every call reference as (from, to) id pairs. The
// dependency graph builder consumes this to seed its edge set.
func (s *ReferenceStore) AllCallEdges(ctx context.Context) ([][2]int64, error) {
	var edges [][2]int64
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			"SELECT from_symbol_id, to_symbol_id FROM symbol_references WHERE reference_kind = 'call'")
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		edges = make([][2]int64, 0)
		for rows.Next() {
			var from, to int64
			if err := rows.Scan(&from, &to); err != nil {
				return err
			}
			edges = append(edges, [2]int64{from, to})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

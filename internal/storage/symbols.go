package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Symbol represents one declared program entity anchored to a file. Symbols
// are never mutated field-by-field; re-extraction replaces them wholesale.
type Symbol struct {
	ID             int64
	FileID         int64
	Name           string
	Kind           string
	Namespace      string
	ContainingType string
	Line           int
	Column         int
	EndLine        int
	EndColumn      int
	Accessibility  string
	Signature      string
}

// SymbolQuery is a compound filter for SearchSymbols. Zero-value fields are
// not applied.
type SymbolQuery struct {
	Query      string   // substring match against name
	Kinds      []string // restrict to these kinds
	Namespaces []string // restrict to these namespaces
	Limit      int      // 0 means no cap
}

// SymbolStore manages declared symbols.
type SymbolStore struct {
	db *CacheDB
}

// NewSymbolStore creates a SymbolStore sharing the given connection.
func NewSymbolStore(db *CacheDB) *SymbolStore {
	return &SymbolStore{db: db}
}

const symbolColumns = `id, file_id, name, kind, namespace, containing_type, line, "column", end_line, end_column, accessibility, signature`

func scanSymbol(scan func(dest ...interface{}) error) (*Symbol, error) {
	var sym Symbol
	var signature sql.NullString
	err := scan(&sym.ID, &sym.FileID, &sym.Name, &sym.Kind, &sym.Namespace, &sym.ContainingType,
		&sym.Line, &sym.Column, &sym.EndLine, &sym.EndColumn, &sym.Accessibility, &signature)
	if err != nil {
		return nil, err
	}
	if signature.Valid {
		sym.Signature = signature.String
	}
	return &sym, nil
}

func scanSymbolRows(rows *sql.Rows) ([]*Symbol, error) {
	symbols := make([]*Symbol, 0)
	for rows.Next() {
		sym, err := scanSymbol(rows.Scan)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func upsertSymbolTx(ctx context.Context, q querier, sym *Symbol) error {
	query := `
		INSERT INTO symbols (file_id, name, kind, namespace, containing_type,
			line, "column", end_line, end_column, accessibility, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id, name, line, "column") DO UPDATE SET
			kind = excluded.kind,
			namespace = excluded.namespace,
			containing_type = excluded.containing_type,
			end_line = excluded.end_line,
			end_column = excluded.end_column,
			accessibility = excluded.accessibility,
			signature = excluded.signature
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		sym.FileID, sym.Name, sym.Kind, sym.Namespace, sym.ContainingType,
		sym.Line, sym.Column, sym.EndLine, sym.EndColumn, sym.Accessibility, sym.Signature,
	).Scan(&sym.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert symbol %s: %w", sym.Name, err)
	}
	return nil
}

// UpsertSymbolTx upserts one symbol inside a caller-managed transaction.
func UpsertSymbolTx(ctx context.Context, tx *sql.Tx, sym *Symbol) error {
	return upsertSymbolTx(ctx, tx, sym)
}

// DeleteSymbolsForFileTx removes a file's symbols inside a caller-managed
// transaction. Their references cascade away with them.
func DeleteSymbolsForFileTx(ctx context.Context, tx *sql.Tx, fileID int64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM symbols WHERE file_id = ?", fileID)
	return err
}

// UpsertSymbol inserts or updates one symbol, setting its ID on return.
func (s *SymbolStore) UpsertSymbol(ctx context.Context, sym *Symbol) error {
	return s.db.run(ctx, func(q querier) error {
		return upsertSymbolTx(ctx, q, sym)
	})
}

// UpsertSymbolsBatch upserts many symbols inside one transaction; this is
// the standard ingestion path. A constraint violation on any row rolls the
// whole batch back.
func (s *SymbolStore) UpsertSymbolsBatch(ctx context.Context, symbols []*Symbol) error {
	return s.db.RunInTransaction(ctx, func(tx *sql.Tx) error {
		for _, sym := range symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := upsertSymbolTx(ctx, tx, sym); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSymbolByID returns a symbol by id, or ErrNotFound.
func (s *SymbolStore) GetSymbolByID(ctx context.Context, symbolID int64) (*Symbol, error) {
	var sym *Symbol
	err := s.db.run(ctx, func(q querier) error {
		row := q.QueryRowContext(ctx,
			"SELECT "+symbolColumns+" FROM symbols WHERE id = ?", symbolID)
		var err error
		sym, err = scanSymbol(row.Scan)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// FindSymbolsByName returns symbols whose name contains pattern, optionally
// restricted to one kind, capped at limit.
func (s *SymbolStore) FindSymbolsByName(ctx context.Context, pattern, kind string, limit int) ([]*Symbol, error) {
	var symbols []*Symbol
	err := s.db.run(ctx, func(q querier) error {
		query := "SELECT " + symbolColumns + " FROM symbols WHERE name LIKE ?"
		args := []interface{}{"%" + pattern + "%"}
		if kind != "" {
			query += " AND kind = ?"
			args = append(args, kind)
		}
		query += " ORDER BY name LIMIT ?"
		args = append(args, limit)

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		symbols, err = scanSymbolRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

// FindSymbolsByExactName returns symbols named exactly name, optionally
// restricted to one kind.
func (s *SymbolStore) FindSymbolsByExactName(ctx context.Context, name, kind string) ([]*Symbol, error) {
	var symbols []*Symbol
	err := s.db.run(ctx, func(q querier) error {
		query := "SELECT " + symbolColumns + " FROM symbols WHERE name = ?"
		args := []interface{}{name}
		if kind != "" {
			query += " AND kind = ?"
			args = append(args, kind)
		}
		query += " ORDER BY name"

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		symbols, err = scanSymbolRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

// GetSymbolsInFile returns a file's symbols ordered by position.
func (s *SymbolStore) GetSymbolsInFile(ctx context.Context, fileID int64) ([]*Symbol, error) {
	var symbols []*Symbol
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx,
			"SELECT "+symbolColumns+` FROM symbols WHERE file_id = ? ORDER BY line, "column"`, fileID)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		symbols, err = scanSymbolRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

// SearchSymbols applies a compound filter built from the non-empty fields of
// query. An empty query matches everything (subject to Limit).
func (s *SymbolStore) SearchSymbols(ctx context.Context, query SymbolQuery) ([]*Symbol, error) {
	conds := make([]string, 0, 3)
	args := make([]interface{}, 0, 8)

	if query.Query != "" {
		conds = append(conds, "name LIKE ?")
		args = append(args, "%"+query.Query+"%")
	}
	if len(query.Kinds) > 0 {
		conds = append(conds, "kind IN ("+placeholders(len(query.Kinds))+")")
		for _, k := range query.Kinds {
			args = append(args, k)
		}
	}
	if len(query.Namespaces) > 0 {
		conds = append(conds, "namespace IN ("+placeholders(len(query.Namespaces))+")")
		for _, ns := range query.Namespaces {
			args = append(args, ns)
		}
	}

	sqlQuery := "SELECT " + symbolColumns + " FROM symbols"
	if len(conds) > 0 {
		sqlQuery += " WHERE " + strings.Join(conds, " AND ")
	}
	sqlQuery += " ORDER BY name"
	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)
	}

	var symbols []*Symbol
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, sqlQuery, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()
		symbols, err = scanSymbolRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

// DeleteSymbolsForFile removes every symbol anchored to a file.
func (s *SymbolStore) DeleteSymbolsForFile(ctx context.Context, fileID int64) error {
	return s.db.run(ctx, func(q querier) error {
		_, err := q.ExecContext(ctx, "DELETE FROM symbols WHERE file_id = ?", fileID)
		return err
	})
}

// GetSymbolCountsByKind returns symbol counts grouped by kind.
func (s *SymbolStore) GetSymbolCountsByKind(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.run(ctx, func(q querier) error {
		rows, err := q.QueryContext(ctx, "SELECT kind, COUNT(*) FROM symbols GROUP BY kind")
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

// placeholders builds a "?, ?, ..." list of length n.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

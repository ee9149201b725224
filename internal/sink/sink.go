// Package sink holds fetched result rows in an embedded DuckDB database for
// interactive inspection. Tables are recreated on every load; the sink is a
// materialization target, not a system of record.
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/streamhouse/flinksql-go/internal/errs"
)

// Sink wraps one in-memory DuckDB connection. It is owned by a single client
// instance and is not safe for concurrent use.
type Sink struct {
	db *sql.DB
}

// Open creates a fresh in-memory sink.
func Open() (*Sink, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errs.WrapErr(err, "failed to open local store")
	}
	return &Sink{db: db}, nil
}

// Close releases the embedded database.
func (s *Sink) Close() error {
	return s.db.Close()
}

// ColumnType names the DuckDB column types the sink infers.
const (
	TypeVarchar = "VARCHAR"
	TypeBoolean = "BOOLEAN"
	TypeInteger = "INTEGER"
	TypeDouble  = "DOUBLE"
)

// InferType maps a scalar sample value to a DuckDB column type. A nil sample
// degrades to VARCHAR; this single-sample heuristic cannot recover the type
// of a column whose first value is null but later values are typed.
func InferType(v any) string {
	switch val := v.(type) {
	case nil:
		return TypeVarchar
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32, float64:
		return TypeDouble
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return TypeInteger
		}
		if _, err := val.Float64(); err == nil {
			return TypeDouble
		}
		return TypeVarchar
	default:
		return TypeVarchar
	}
}

// Load drops any existing table of the given name, creates it with types
// inferred from the first row, and bulk-inserts all rows in one transaction.
// Returns the number of rows loaded.
func (s *Sink) Load(ctx context.Context, table string, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, errs.WrapErr(fmt.Errorf("no rows to load"), "local store")
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table))); err != nil {
		return 0, errs.WrapErrf(err, "failed to drop local table %s", table)
	}

	colDefs := make([]string, len(columns))
	for i, col := range columns {
		colType := TypeVarchar
		if i < len(rows[0]) {
			colType = InferType(rows[0][i])
		}
		colDefs[i] = fmt.Sprintf("%s %s", quoteIdent(col), colType)
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(colDefs, ", "))
	if _, err := s.db.ExecContext(ctx, createStmt); err != nil {
		return 0, errs.WrapErrf(err, "failed to create local table %s", table)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insertStmt := fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.WrapErr(err, "failed to begin local insert")
	}
	stmt, err := tx.PrepareContext(ctx, insertStmt)
	if err != nil {
		_ = tx.Rollback()
		return 0, errs.WrapErr(err, "failed to prepare local insert")
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(columns))
		for i := range columns {
			if i < len(row) {
				args[i] = normalize(row[i])
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return 0, errs.WrapErrf(err, "failed to insert into local table %s", table)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.WrapErr(err, "failed to commit local insert")
	}
	return len(rows), nil
}

// Drop removes a table from the sink if present.
func (s *Sink) Drop(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(table)))
	return err
}

// Query runs an ad-hoc statement against the sink and materializes the
// result, pass-through style.
func (s *Sink) Query(ctx context.Context, query string) ([]string, [][]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, values)
	}
	return columns, out, rows.Err()
}

// QueryValue runs a query expected to yield at most one scalar. Returns
// ("", false) when there is no row or the value is null.
func (s *Sink) QueryValue(ctx context.Context, query string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, query).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !value.Valid {
		return "", false, nil
	}
	return value.String, true, nil
}

// Tables lists the tables currently held in the sink.
func (s *Sink) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT table_name FROM information_schema.tables ORDER BY table_name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableColumn describes one column of a sink table.
type TableColumn struct {
	Name string
	Type string
}

// Describe returns the column layout of a sink table in positional order.
func (s *Sink) Describe(ctx context.Context, table string) ([]TableColumn, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("DESCRIBE %s", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []TableColumn
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		col := TableColumn{}
		if name, ok := values[0].(string); ok {
			col.Name = name
		}
		if typ, ok := values[1].(string); ok {
			col.Type = typ
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

// normalize converts decoder artifacts into driver-friendly values.
func normalize(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

// quoteIdent double-quotes an identifier; embedded quotes are doubled. Column
// names coming back from the gateway may contain spaces ("job name").
func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

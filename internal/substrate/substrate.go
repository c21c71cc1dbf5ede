// Package substrate wraps the embedded DuckDB connection that backs the
// local agent-state engine (C1/C2 in SPEC_FULL.md). It provides
// parameterized SQL execution, idempotent per-schema bootstrap, and a
// scoped search-path helper for the branch manager.
package substrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb" // registers the "duckdb" database/sql driver
)

// DB is the embedded storage substrate: a single DuckDB file, opened once
// per process. DuckDB's driver does not support concurrent statement
// execution against one connection, so the pool is pinned to a single
// connection — this makes the single-reader/single-writer discipline
// required by SPEC_FULL.md §5 explicit rather than incidental.
type DB struct {
	conn *sql.DB

	mu       sync.Mutex
	schemas  map[string]struct{} // schemas already bootstrapped this process
}

// Open creates parent directories for path if needed and opens the DuckDB
// file at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb file %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	return &DB{
		conn:    conn,
		schemas: make(map[string]struct{}),
	}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Query executes sql with the given positional parameters and returns rows
// as a slice of column-name-keyed maps, matching the shape the original
// engine's query() helper returns.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, _, err := d.QueryColumns(ctx, query, args...)
	return rows, err
}

// QueryColumns behaves like Query but also reports the result set's column
// names, letting a caller distinguish a statement that produced no result
// set at all (len(columns) == 0, e.g. DDL) from one that did but matched no
// rows (an empty SELECT).
func (d *DB) QueryColumns(ctx context.Context, query string, args ...any) ([]map[string]any, []string, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	out, err := scanRows(rows, cols)
	return out, cols, err
}

// Execute runs a statement and returns the number of affected rows
// (best-effort; DuckDB may report 0 for DDL).
func (d *DB) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // DuckDB doesn't always support RowsAffected; treat as best-effort
	}
	return n, nil
}

// Conn exposes the underlying *sql.DB for components (e.g. the branch
// manager) that need to scope session-level settings around a query.
func (d *DB) Conn() *sql.DB { return d.conn }

// EnsureSchema runs ddl exactly once per schema name for the lifetime of
// this process, tolerating repeated concurrent invocations (C2: Schema
// Bootstrap). ddl is a list of statements (schema creation, then tables).
func (d *DB) EnsureSchema(ctx context.Context, schema string, ddl []string) error {
	d.mu.Lock()
	_, done := d.schemas[schema]
	d.mu.Unlock()
	if done {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	// Re-check under the lock: another goroutine may have finished
	// bootstrap between the optimistic check above and acquiring the lock.
	if _, done := d.schemas[schema]; done {
		return nil
	}

	for _, stmt := range ddl {
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrapping schema %s: %w", schema, err)
		}
	}
	d.schemas[schema] = struct{}{}
	return nil
}

// WithScopedSetting runs fn against a single physical connection after
// executing setStmt on it, restoring the session with resetStmt on every
// exit path (including a panic unwinding through fn). This is the scoped
// resource acquisition pattern SPEC_FULL.md §9 requires for the branch
// manager's search_path mutation: a dedicated *sql.Conn guarantees setStmt
// and fn observe the same session, which a bare *sql.DB (with its internal
// pool) would not guarantee once MaxOpenConns > 1.
func (d *DB) WithScopedSetting(ctx context.Context, setStmt, resetStmt string, fn func(*sql.Conn) error) error {
	conn, err := d.conn.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, setStmt); err != nil {
		return fmt.Errorf("applying scoped setting: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, resetStmt)
	}()

	return fn(conn)
}

// scanRows materializes *sql.Rows into column-keyed maps given its columns.
func scanRows(rows *sql.Rows, cols []string) ([]map[string]any, error) {
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = normalize(vals[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalize converts driver-returned []byte values (DuckDB returns VARCHAR
// columns as []byte over database/sql in some configurations) to string so
// callers get JSON-friendly values.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

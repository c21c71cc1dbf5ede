// Package branch implements the data branch manager (C6 in SPEC_FULL.md):
// copy-on-write isolated schemas derived from "main", with merge-back and
// discard. Branch existence is determined exclusively by presence of the
// branch_<id> schema in the catalog — the manager persists no side table,
// per spec.md §3.
package branch

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hatidata/hati-mcp/internal/substrate"
)

// branchIDPattern enforces the 12-hex branch ID shape everywhere a branch ID
// is interpolated into a schema-qualified identifier, since DuckDB has no
// placeholder syntax for schema/table names (SPEC_FULL.md §9: no dynamic
// SQL from untrusted input — identifiers are validated, never taken as-is).
var branchIDPattern = regexp.MustCompile(`^[0-9a-f]{12}$`)

// Created is the result of branch_create (spec.md §4.5).
type Created struct {
	BranchID    string `json:"branch_id"`
	SchemaName  string `json:"schema_name"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TableCount  int    `json:"table_count"`
	TTLSeconds  int    `json:"ttl_seconds"`
	CreatedAt   string `json:"created_at"`
}

// MergeResult is the result of branch_merge (spec.md §4.5).
type MergeResult struct {
	BranchID string `json:"branch_id"`
	Strategy string `json:"strategy"`
	Merged   int    `json:"merged"`
	Status   string `json:"status"`
}

// Summary is one row of branch_list (spec.md §4.5).
type Summary struct {
	BranchID           string `json:"branch_id"`
	SchemaName         string `json:"schema_name"`
	MaterializedTables int    `json:"materialized_tables"`
	Views              int    `json:"views"`
	Status             string `json:"status"`
}

// Manager implements the branch manager against an embedded substrate.DB.
type Manager struct {
	db *substrate.DB
}

// New creates a Manager.
func New(db *substrate.DB) *Manager {
	return &Manager{db: db}
}

func schemaName(branchID string) string {
	return "branch_" + branchID
}

func validateBranchID(branchID string) error {
	if !branchIDPattern.MatchString(branchID) {
		return fmt.Errorf("invalid branch id %q: must be 12 lowercase hex characters", branchID)
	}
	return nil
}

// Exists reports whether the branch's schema is present in the catalog.
func (m *Manager) Exists(ctx context.Context, branchID string) (bool, error) {
	if err := validateBranchID(branchID); err != nil {
		return false, err
	}
	rows, err := m.db.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name = $1`,
		schemaName(branchID),
	)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// Create creates branch_<id> as a set of views over every base table
// currently in main, taking an effective snapshot of main's table list
// (not its contents) at creation time (spec.md §5).
func (m *Manager) Create(ctx context.Context, name, description string, ttlSeconds int) (*Created, error) {
	branchID := uuid.NewString()[:12]
	schema := schemaName(branchID)
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	displayName := name
	if displayName == "" {
		displayName = schema
	}

	if _, err := m.db.Execute(ctx, fmt.Sprintf(`CREATE SCHEMA "%s"`, schema)); err != nil {
		return nil, fmt.Errorf("creating branch schema: %w", err)
	}

	tables, err := m.baseTables(ctx, "main")
	if err != nil {
		return nil, err
	}
	for _, tbl := range tables {
		stmt := fmt.Sprintf(`CREATE VIEW "%s"."%s" AS SELECT * FROM main."%s"`, schema, tbl, tbl)
		if _, err := m.db.Execute(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating branch view for %s: %w", tbl, err)
		}
	}

	return &Created{
		BranchID:    branchID,
		SchemaName:  schema,
		Name:        displayName,
		Description: description,
		TableCount:  len(tables),
		TTLSeconds:  ttlSeconds,
		CreatedAt:   nowISO(),
	}, nil
}

// Query executes sql with the branch's schema preferred over main on the
// search path, restoring the session's search path on every exit path
// (SPEC_FULL.md §9 scoped acquisition).
func (m *Manager) Query(ctx context.Context, branchID, sqlText string) ([]map[string]any, error) {
	exists, err := m.Exists(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("branch %s not found", branchID)
	}
	schema := schemaName(branchID)

	var result []map[string]any
	err = m.db.WithScopedSetting(ctx,
		fmt.Sprintf(`SET search_path = '%s,main'`, schema),
		`SET search_path = 'main'`,
		func(conn *sql.Conn) error {
			rows, qErr := conn.QueryContext(ctx, sqlText)
			if qErr != nil {
				return qErr
			}
			defer rows.Close()
			result, qErr = scanRows(rows)
			return qErr
		},
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Merge folds the branch's materialized base tables back into main and
// drops the branch schema. Views are ignored (they represent unmodified
// main content, per spec.md §4.5).
func (m *Manager) Merge(ctx context.Context, branchID, strategy string) (*MergeResult, error) {
	exists, err := m.Exists(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("branch %s not found", branchID)
	}
	if strategy == "" {
		strategy = "branch_wins"
	}
	schema := schemaName(branchID)

	tables, err := m.baseTables(ctx, schema)
	if err != nil {
		return nil, err
	}

	merged := 0
	if strategy == "branch_wins" {
		for _, tbl := range tables {
			if _, err := m.db.Execute(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS main."%s"`, tbl)); err != nil {
				return nil, fmt.Errorf("dropping main.%s: %w", tbl, err)
			}
			stmt := fmt.Sprintf(`CREATE TABLE main."%s" AS SELECT * FROM "%s"."%s"`, tbl, schema, tbl)
			if _, err := m.db.Execute(ctx, stmt); err != nil {
				return nil, fmt.Errorf("materializing main.%s: %w", tbl, err)
			}
			merged++
		}
	}
	// main_wins: skip tables, main keeps its own version.

	if _, err := m.db.Execute(ctx, fmt.Sprintf(`DROP SCHEMA "%s" CASCADE`, schema)); err != nil {
		return nil, fmt.Errorf("dropping branch schema: %w", err)
	}

	return &MergeResult{
		BranchID: branchID,
		Strategy: strategy,
		Merged:   merged,
		Status:   "completed",
	}, nil
}

// Discard drops the branch schema entirely. Returns true iff it existed.
func (m *Manager) Discard(ctx context.Context, branchID string) (bool, error) {
	exists, err := m.Exists(ctx, branchID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	schema := schemaName(branchID)
	if _, err := m.db.Execute(ctx, fmt.Sprintf(`DROP SCHEMA "%s" CASCADE`, schema)); err != nil {
		return false, err
	}
	return true, nil
}

// List enumerates branch_* schemas with their materialized-table and view counts.
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	rows, err := m.db.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'branch_%'`,
	)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		schema := toString(r["schema_name"])
		branchID := strings.TrimPrefix(schema, "branch_")

		typeRows, err := m.db.Query(ctx,
			`SELECT table_type, COUNT(*) AS cnt FROM information_schema.tables
			 WHERE table_schema = $1 GROUP BY table_type`,
			schema,
		)
		if err != nil {
			return nil, err
		}
		var tables, views int
		for _, tr := range typeRows {
			n := int(toInt64(tr["cnt"]))
			if toString(tr["table_type"]) == "VIEW" {
				views += n
			} else {
				tables += n
			}
		}

		out = append(out, Summary{
			BranchID:           branchID,
			SchemaName:         schema,
			MaterializedTables: tables,
			Views:              views,
			Status:             "active",
		})
	}
	return out, nil
}

// baseTables lists BASE TABLE (not view) names in schema, ordered by name.
func (m *Manager) baseTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := m.db.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		 ORDER BY table_name`,
		schema,
	)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, toString(r["table_name"]))
	}
	return out, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
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
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

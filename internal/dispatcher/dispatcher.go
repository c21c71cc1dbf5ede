// Package dispatcher implements the tool dispatcher (C7 in SPEC_FULL.md): a
// single seam that routes every MCP tool call to either the local embedded
// engine (DuckDB, with the full C3-C6 domain surface) or a remote SQL-only
// backend, without the tool layer above it ever knowing which one is live.
package dispatcher

import (
	"context"
	"fmt"

	"github.com/hatidata/hati-mcp/internal/branch"
	"github.com/hatidata/hati-mcp/internal/cot"
	"github.com/hatidata/hati-mcp/internal/memory"
	"github.com/hatidata/hati-mcp/internal/remote"
	"github.com/hatidata/hati-mcp/internal/substrate"
	"github.com/hatidata/hati-mcp/internal/trigger"
)

// SQLBackend is the capability every backend offers: parameterized query and
// execute against the warehouse's catalog, regardless of what sits behind it.
type SQLBackend interface {
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	QueryColumns(ctx context.Context, query string, args ...any) ([]map[string]any, []string, error)
	Execute(ctx context.Context, query string, args ...any) (int64, error)
}

// ErrDomainUnavailable is returned by every C3-C6 operation when the
// dispatcher is running against a remote-only backend, which exposes no
// memory/CoT/trigger/branch schema of its own (spec.md §4.6).
var ErrDomainUnavailable = fmt.Errorf("this operation requires the local embedded engine; the remote backend only supports catalog and query tools")

// Dispatcher routes tool calls to whichever backend is configured. Exactly
// one of (local substrate + domain managers) or (remote client) is set.
type Dispatcher struct {
	sql SQLBackend

	// Local-only domain managers. Nil when running against a remote backend.
	Memory  *memory.Store
	CoT     *cot.Ledger
	Trigger *trigger.Registry
	Branch  *branch.Manager

	// DefaultAgentID is substituted for tool calls that omit agent_id, per
	// the --agent-id CLI flag (spec.md §6).
	DefaultAgentID string

	isLocal bool
}

// NewLocal builds a Dispatcher backed by the embedded engine, with the full
// C3-C6 tool surface available.
func NewLocal(db *substrate.DB, defaultAgentID string) *Dispatcher {
	return &Dispatcher{
		sql:            db,
		Memory:         memory.New(db),
		CoT:            cot.New(db),
		Trigger:        trigger.New(db),
		Branch:         branch.New(db),
		DefaultAgentID: defaultAgentID,
		isLocal:        true,
	}
}

// NewRemote builds a Dispatcher backed by a remote SQL-only warehouse. Only
// the catalog/query tool surface is available through it.
func NewRemote(client *remote.Client) *Dispatcher {
	return &Dispatcher{sql: client, isLocal: false}
}

// AgentID returns agentID if non-empty, otherwise the configured default
// agent_id (spec.md §6 --agent-id).
func (d *Dispatcher) AgentID(agentID string) string {
	if agentID != "" {
		return agentID
	}
	return d.DefaultAgentID
}

// IsLocal reports whether the dispatcher is running the embedded engine.
func (d *Dispatcher) IsLocal() bool { return d.isLocal }

// Query runs a read query against whichever backend is active.
func (d *Dispatcher) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return d.sql.Query(ctx, query, args...)
}

// QueryColumns behaves like Query but also reports the result set's column
// names, so a caller can tell a statement with no result set (DDL) apart
// from one whose result set simply matched no rows.
func (d *Dispatcher) QueryColumns(ctx context.Context, query string, args ...any) ([]map[string]any, []string, error) {
	return d.sql.QueryColumns(ctx, query, args...)
}

// Execute runs a statement against whichever backend is active.
func (d *Dispatcher) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return d.sql.Execute(ctx, query, args...)
}

// ListSchemas enumerates catalog schemas, working identically against
// either backend since information_schema is standard SQL (spec.md §4.1).
func (d *Dispatcher) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := d.sql.Query(ctx, `SELECT schema_name FROM information_schema.schemata ORDER BY schema_name`)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if s, ok := r["schema_name"].(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListTables enumerates tables (and views) in schemaName.
func (d *Dispatcher) ListTables(ctx context.Context, schemaName string) ([]map[string]any, error) {
	if schemaName == "" {
		schemaName = "main"
	}
	return d.sql.Query(ctx,
		`SELECT table_name, table_type FROM information_schema.tables
		 WHERE table_schema = $1 ORDER BY table_name`, schemaName,
	)
}

// DescribeTable returns column metadata for schemaName.tableName.
func (d *Dispatcher) DescribeTable(ctx context.Context, schemaName, tableName string) ([]map[string]any, error) {
	if schemaName == "" {
		schemaName = "main"
	}
	return d.sql.Query(ctx,
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`, schemaName, tableName,
	)
}

// UsageStats reports row counts per table in schemaName, using DuckDB's
// catalog functions when available (local backend) and falling back to a
// plain information_schema-driven COUNT(*) sweep otherwise (spec.md §9 Open
// Question: get_usage_stats).
func (d *Dispatcher) UsageStats(ctx context.Context, schemaName string) ([]map[string]any, error) {
	if schemaName == "" {
		schemaName = "main"
	}

	if d.isLocal {
		rows, err := d.sql.Query(ctx,
			`SELECT table_name, estimated_size AS row_count
			 FROM duckdb_tables() WHERE schema_name = $1 ORDER BY table_name`, schemaName)
		if err == nil {
			return rows, nil
		}
		// duckdb_tables() unavailable in this build; fall through to the
		// portable path below.
	}

	tables, err := d.ListTables(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(tables))
	for _, t := range tables {
		name, _ := t["table_name"].(string)
		if t["table_type"] != "BASE TABLE" {
			continue
		}
		rows, err := d.sql.Query(ctx, fmt.Sprintf(`SELECT COUNT(*) AS row_count FROM "%s"."%s"`, schemaName, name))
		if err != nil {
			return nil, err
		}
		count := int64(0)
		if len(rows) > 0 {
			count = toInt64(rows[0]["row_count"])
		}
		out = append(out, map[string]any{"table_name": name, "row_count": count})
	}
	return out, nil
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

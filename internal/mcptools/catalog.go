// Package mcptools wires the dispatcher's capabilities into the MCP tool
// catalog: six SQL catalog tools available against either backend, plus
// seventeen domain tools available only against the local embedded engine.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hatidata/hati-mcp/internal/dispatcher"
	"github.com/hatidata/hati-mcp/internal/mcp"
)

// --- list_schemas ---

type ListSchemas struct{ d *dispatcher.Dispatcher }

func NewListSchemas(d *dispatcher.Dispatcher) *ListSchemas { return &ListSchemas{d: d} }

func (t *ListSchemas) Name() string        { return "list_schemas" }
func (t *ListSchemas) Description() string { return "List all schemas in the warehouse catalog." }
func (t *ListSchemas) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (t *ListSchemas) Execute(ctx context.Context, _ json.RawMessage) (*mcp.ToolsCallResult, error) {
	schemas, err := t.d.ListSchemas(ctx)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"schemas": schemas})
}

// --- list_tables ---

type listTablesParams struct {
	Schema string `json:"schema,omitempty"`
}

type ListTables struct{ d *dispatcher.Dispatcher }

func NewListTables(d *dispatcher.Dispatcher) *ListTables { return &ListTables{d: d} }

func (t *ListTables) Name() string { return "list_tables" }
func (t *ListTables) Description() string {
	return "List tables and views in a schema (defaults to 'main')."
}
func (t *ListTables) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "schema": {"type": "string", "description": "Schema name, defaults to main"}
  }
}`)
}
func (t *ListTables) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p listTablesParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	rows, err := t.d.ListTables(ctx, p.Schema)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"tables": rows})
}

// --- describe_table ---

type describeTableParams struct {
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table"`
}

type DescribeTable struct{ d *dispatcher.Dispatcher }

func NewDescribeTable(d *dispatcher.Dispatcher) *DescribeTable { return &DescribeTable{d: d} }

func (t *DescribeTable) Name() string        { return "describe_table" }
func (t *DescribeTable) Description() string { return "Describe the columns of a table." }
func (t *DescribeTable) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "schema": {"type": "string", "description": "Schema name, defaults to main"},
    "table": {"type": "string", "description": "Table name"}
  },
  "required": ["table"]
}`)
}
func (t *DescribeTable) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p describeTableParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.Table == "" {
		return mcp.ErrorResult("table is required"), nil
	}
	rows, err := t.d.DescribeTable(ctx, p.Schema, p.Table)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"columns": rows})
}

// --- get_usage_stats ---

type usageStatsParams struct {
	Schema string `json:"schema,omitempty"`
}

type GetUsageStats struct{ d *dispatcher.Dispatcher }

func NewGetUsageStats(d *dispatcher.Dispatcher) *GetUsageStats { return &GetUsageStats{d: d} }

func (t *GetUsageStats) Name() string { return "get_usage_stats" }
func (t *GetUsageStats) Description() string {
	return "Report row counts per table in a schema, best-effort via catalog statistics."
}
func (t *GetUsageStats) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "schema": {"type": "string", "description": "Schema name, defaults to main"}
  }
}`)
}
func (t *GetUsageStats) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p usageStatsParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	rows, err := t.d.UsageStats(ctx, p.Schema)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"tables": rows})
}

// --- query (read-write, parameterized) ---

type queryParams struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args,omitempty"`
}

type Query struct{ d *dispatcher.Dispatcher }

func NewQuery(d *dispatcher.Dispatcher) *Query { return &Query{d: d} }

func (t *Query) Name() string { return "query" }
func (t *Query) Description() string {
	return "Run an arbitrary parameterized SQL statement against the warehouse and return its rows, if any. Use $1, $2, ... placeholders with args, never string-interpolated values."
}
func (t *Query) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "sql": {"type": "string", "description": "SQL statement with $1-style placeholders"},
    "args": {"type": "array", "description": "Positional parameter values", "items": {}}
  },
  "required": ["sql"]
}`)
}
func (t *Query) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p queryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.SQL == "" {
		return mcp.ErrorResult("sql is required"), nil
	}
	// A single execution decides the shape of the response: a statement that
	// yields a result set (a SELECT, or DuckDB's own "Count" result for a
	// DML statement) returns its rows; a statement with no result set at all
	// (DDL) reports rows_affected instead, mirroring the original engine's
	// query()/execute() split (local_engine.py).
	rows, cols, err := t.d.QueryColumns(ctx, p.SQL, p.Args...)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	if len(cols) == 0 {
		return mcp.JSONResult(map[string]any{"rows_affected": int64(0)})
	}
	return mcp.JSONResult(map[string]any{"rows": rows})
}

// --- read_query (read-only) ---

type ReadQuery struct{ d *dispatcher.Dispatcher }

func NewReadQuery(d *dispatcher.Dispatcher) *ReadQuery { return &ReadQuery{d: d} }

func (t *ReadQuery) Name() string { return "read_query" }
func (t *ReadQuery) Description() string {
	return "Run a parameterized read-only SQL query and return its rows."
}
func (t *ReadQuery) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "sql": {"type": "string", "description": "SELECT statement with $1-style placeholders"},
    "args": {"type": "array", "description": "Positional parameter values", "items": {}}
  },
  "required": ["sql"]
}`)
}
func (t *ReadQuery) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p queryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.SQL == "" {
		return mcp.ErrorResult("sql is required"), nil
	}
	// Wrap the caller's statement so only a legal SQL expression can survive:
	// a DDL/DML statement is not valid inside a subquery, so the substrate
	// rejects it syntactically rather than the tool having to parse it
	// (spec.md §4.6, testable property #6).
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS _readonly", p.SQL)
	rows, err := t.d.Query(ctx, wrapped, p.Args...)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"rows": rows})
}

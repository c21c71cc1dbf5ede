package guide

import "github.com/hatidata/hati-mcp/internal/mcp"

// --- hatidata://schema-reference resource ---

// SchemaReferenceResource exposes the four reserved schemas and their table
// shapes as a reference resource, so an LLM issuing raw SQL through
// query/read_query knows what it can address.
type SchemaReferenceResource struct{}

func (r *SchemaReferenceResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "hatidata://schema-reference",
		Name:        "hatidata Schema Reference",
		Description: "Reserved schemas and table shapes backing memory, CoT, triggers, and branches.",
		MimeType:    "text/markdown",
	}
}

func (r *SchemaReferenceResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      "hatidata://schema-reference",
				MimeType: "text/markdown",
				Text:     schemaReferenceContent,
			},
		},
	}, nil
}

// --- hatidata://tool-reference resource ---

// ToolReferenceResource is a quick-reference card for the 23-tool catalog.
type ToolReferenceResource struct{}

func (r *ToolReferenceResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "hatidata://tool-reference",
		Name:        "hatidata Tool Reference",
		Description: "Quick-reference card for all 23 hatidata MCP tools.",
		MimeType:    "text/markdown",
	}
}

func (r *ToolReferenceResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      "hatidata://tool-reference",
				MimeType: "text/markdown",
				Text:     toolReferenceContent,
			},
		},
	}, nil
}

const schemaReferenceContent = `# hatidata Schema Reference

## _memory

- **agent_memories**: memory_id (pk), agent_id, content, memory_type, importance,
  metadata (JSON text), created_at
- **agent_state**: (agent_id, key) pk, value (JSON text), version, updated_at

## _cot

- **agent_traces**: trace_id (pk), session_id, agent_id, step_number, step_type,
  content, importance, metadata, prev_hash, hash, created_at

Hash law: hash = SHA256(prev_hash || session_id || step_type || content),
raw UTF-8 concatenation, hex-encoded.

## _triggers

- **trigger_registry**: trigger_id (pk), name, concept, threshold, action_type,
  action_config (JSON text), enabled, cooldown_ms, fire_count, last_fired_at,
  created_at, updated_at

delete_trigger is a soft delete (enabled=false); nothing is ever hard-removed.

## branch_<12hex>

One schema per active branch. Every base table in main starts as a view of
the same name; a write must first materialize it as
` + "`CREATE TABLE branch_<id>.T AS SELECT * FROM main.T`" + ` before mutating it.
Branch existence is exactly "this schema is in the catalog" — there is no
separate branch registry table.
`

const toolReferenceContent = `# hatidata Tool Quick Reference

## Catalog tools (work against either backend)

- **list_schemas** — no params. All schemas in the catalog.
- **list_tables** — schema? (default main). Tables and views.
- **describe_table** — schema?, table (required). Columns in ordinal order.
- **get_usage_stats** — schema? (default main). Per-table row counts.
- **query** — sql, args?. Arbitrary parameterized statement.
- **read_query** — sql, args?. Wrapped as a read-only subquery; mutating
  statements fail at execution.

## Memory tools (local engine only)

- **store_memory** — agent_id, content, memory_type?, metadata?, importance?
- **search_memory** — agent_id, query?, top_k?, memory_type?, min_importance?
- **delete_memory** — memory_id
- **get_state** — agent_id, key
- **set_state** — agent_id, key, value

## CoT ledger tools (local engine only)

- **log_reasoning_step** — agent_id, session_id, step_type, content, metadata?, importance?
- **replay_session** — session_id, verify_chain?
- **list_sessions** — agent_id?, limit?, since?

## Trigger tools (local engine only)

- **register_trigger** — name, concept, threshold?, action_type?, action_config?
- **list_triggers** — status? (active/inactive)
- **delete_trigger** — trigger_id
- **test_trigger** — trigger_id, content

## Branch tools (local engine only)

- **branch_create** — name?, description?, ttl_seconds?
- **branch_query** — branch_id, sql
- **branch_merge** — branch_id, strategy? (branch_wins/main_wins)
- **branch_discard** — branch_id
- **branch_list** — no params
`

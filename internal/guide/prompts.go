// Package guide provides MCP prompts and resources that help an LLM client
// use the hatidata agent-state engine correctly: the branch lifecycle (the
// one component whose correct use depends on ordering — create, query,
// merge/discard) and a schema quick-reference.
package guide

import "github.com/hatidata/hati-mcp/internal/mcp"

// --- branch-lifecycle prompt ---

// BranchLifecyclePrompt walks an LLM through creating an isolated branch,
// testing changes inside it, and merging or discarding it.
type BranchLifecyclePrompt struct{}

func (p *BranchLifecyclePrompt) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "branch-lifecycle",
		Description: "Guide for creating a copy-on-write branch, testing changes inside it, and merging or discarding it.",
		Arguments: []mcp.PromptArgument{
			{
				Name:        "branch_name",
				Description: "A human-readable name for the branch, e.g. 'pricing-experiment'",
				Required:    false,
			},
		},
	}
}

func (p *BranchLifecyclePrompt) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	name := arguments["branch_name"]
	return &mcp.PromptsGetResult{
		Description: "Guide for the branch create/query/merge-or-discard lifecycle",
		Messages: []mcp.PromptMessage{
			{
				Role:    "user",
				Content: mcp.TextContent(buildBranchLifecycleGuide(name)),
			},
		},
	}, nil
}

func buildBranchLifecycleGuide(name string) string {
	label := name
	if label == "" {
		label = "<branch_name>"
	}
	return `# Branch Lifecycle

A branch is an isolated copy-on-write schema derived from main. It starts as
free — every table in main is just a view — and only costs storage for the
tables you actually modify inside it.

## Step 1: Create

Call ` + "`branch_create`" + ` with a descriptive name:

` + "```json" + `
{"name": "` + label + `", "description": "what this branch is for", "ttl_seconds": 3600}
` + "```" + `

This returns a branch_id (12 hex characters). Every table currently in main
is available inside the branch immediately, as a read-through view.

## Step 2: Query and modify

Use ` + "`branch_query`" + ` with that branch_id for everything you do inside the
branch, including the first write to any table:

` + "```json" + `
{"branch_id": "<branch_id>", "sql": "CREATE TABLE orders AS SELECT * FROM main.orders; UPDATE orders SET status = 'shipped' WHERE id = 42"}
` + "```" + `

The first statement against a table you intend to change must materialize it
(` + "`CREATE TABLE ... AS SELECT * FROM main.<table>`" + `) before mutating it — the
engine does not intercept writes to do this for you. Tables you never touch
stay as cheap views for the life of the branch.

## Step 3: Inspect before deciding

Run read queries inside the branch (` + "`branch_query`" + `) and, if useful, the
same query against main directly via ` + "`read_query`" + ` to compare. ` + "`branch_list`" + `
reports how many tables in a branch are materialized versus still views.

## Step 4: Merge or discard

- ` + "`branch_merge`" + ` with ` + "`strategy: \"branch_wins\"`" + ` replaces each modified table
  in main with the branch's version, then drops the branch schema.
- ` + "`branch_merge`" + ` with ` + "`strategy: \"main_wins\"`" + ` keeps main untouched and just
  drops the branch schema — use this to throw away experiments you decided
  not to keep while still recording that the branch completed.
- ` + "`branch_discard`" + ` drops the branch schema unconditionally, with no merge
  semantics at all.

After either call, the branch_id is gone: further ` + "`branch_query`" + ` calls
against it fail.

## Notes

- ttl_seconds is informational only; nothing in the engine expires a branch
  automatically unless a host-side sweeper is configured. Discard branches
  you no longer need explicitly.
- Branch existence is determined purely by whether the schema exists — there
  is no separate branch registry to get out of sync with reality.
`
}

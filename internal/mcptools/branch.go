package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hatidata/hati-mcp/internal/dispatcher"
	"github.com/hatidata/hati-mcp/internal/maintenance"
	"github.com/hatidata/hati-mcp/internal/mcp"
)

// --- branch_create ---

type branchCreateParams struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	TTLSeconds  int    `json:"ttl_seconds,omitempty"`
}

// BranchCreate implements branch_create. sweeper is optional — when set
// (the local engine was started with TTL sweeping enabled), every created
// branch is tracked for later expiry.
type BranchCreate struct {
	d       *dispatcher.Dispatcher
	sweeper *maintenance.BranchSweeper
}

func NewBranchCreate(d *dispatcher.Dispatcher, sweeper *maintenance.BranchSweeper) *BranchCreate {
	return &BranchCreate{d: d, sweeper: sweeper}
}

func (t *BranchCreate) Name() string { return "branch_create" }
func (t *BranchCreate) Description() string {
	return "Create a copy-on-write data branch: an isolated schema that initially views every table in main."
}
func (t *BranchCreate) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "ttl_seconds": {"type": "integer", "description": "Defaults to 3600; host may sweep expired branches"}
  }
}`)
}
func (t *BranchCreate) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Branch == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p branchCreateParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	created, err := t.d.Branch.Create(ctx, p.Name, p.Description, p.TTLSeconds)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	if t.sweeper != nil {
		t.sweeper.Track(created.BranchID, created.TTLSeconds)
	}
	return mcp.JSONResult(created)
}

// --- branch_query ---

type branchQueryParams struct {
	BranchID string `json:"branch_id"`
	SQL      string `json:"sql"`
}

type BranchQuery struct{ d *dispatcher.Dispatcher }

func NewBranchQuery(d *dispatcher.Dispatcher) *BranchQuery { return &BranchQuery{d: d} }

func (t *BranchQuery) Name() string { return "branch_query" }
func (t *BranchQuery) Description() string {
	return "Run a SQL query scoped to a branch: the branch's tables shadow main's for unmodified names."
}
func (t *BranchQuery) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "branch_id": {"type": "string"},
    "sql": {"type": "string"}
  },
  "required": ["branch_id", "sql"]
}`)
}
func (t *BranchQuery) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Branch == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p branchQueryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	rows, err := t.d.Branch.Query(ctx, p.BranchID, p.SQL)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"rows": rows})
}

// --- branch_merge ---

type branchMergeParams struct {
	BranchID string `json:"branch_id"`
	Strategy string `json:"strategy,omitempty"`
}

type BranchMerge struct{ d *dispatcher.Dispatcher }

func NewBranchMerge(d *dispatcher.Dispatcher) *BranchMerge { return &BranchMerge{d: d} }

func (t *BranchMerge) Name() string { return "branch_merge" }
func (t *BranchMerge) Description() string {
	return "Merge a branch's modified tables back into main and drop the branch schema."
}
func (t *BranchMerge) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "branch_id": {"type": "string"},
    "strategy": {"type": "string", "enum": ["branch_wins", "main_wins"], "description": "Defaults to branch_wins"}
  },
  "required": ["branch_id"]
}`)
}
func (t *BranchMerge) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Branch == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p branchMergeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	result, err := t.d.Branch.Merge(ctx, p.BranchID, p.Strategy)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(result)
}

// --- branch_discard ---

type branchDiscardParams struct {
	BranchID string `json:"branch_id"`
}

type BranchDiscard struct{ d *dispatcher.Dispatcher }

func NewBranchDiscard(d *dispatcher.Dispatcher) *BranchDiscard { return &BranchDiscard{d: d} }

func (t *BranchDiscard) Name() string        { return "branch_discard" }
func (t *BranchDiscard) Description() string { return "Discard a branch without merging its changes." }
func (t *BranchDiscard) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"branch_id": {"type": "string"}},
  "required": ["branch_id"]
}`)
}
func (t *BranchDiscard) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Branch == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p branchDiscardParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	discarded, err := t.d.Branch.Discard(ctx, p.BranchID)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"discarded": discarded})
}

// --- branch_list ---

type BranchList struct{ d *dispatcher.Dispatcher }

func NewBranchList(d *dispatcher.Dispatcher) *BranchList { return &BranchList{d: d} }

func (t *BranchList) Name() string        { return "branch_list" }
func (t *BranchList) Description() string { return "List all active data branches." }
func (t *BranchList) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (t *BranchList) Execute(ctx context.Context, _ json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Branch == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	branches, err := t.d.Branch.List(ctx)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"branches": branches})
}

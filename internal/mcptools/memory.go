package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hatidata/hati-mcp/internal/dispatcher"
	"github.com/hatidata/hati-mcp/internal/mcp"
	"github.com/hatidata/hati-mcp/internal/memory"
)

// --- store_memory ---

type storeMemoryParams struct {
	AgentID    string         `json:"agent_id"`
	Content    string         `json:"content"`
	MemoryType string         `json:"memory_type,omitempty"`
	Importance *float64       `json:"importance,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type StoreMemory struct{ d *dispatcher.Dispatcher }

func NewStoreMemory(d *dispatcher.Dispatcher) *StoreMemory { return &StoreMemory{d: d} }

func (t *StoreMemory) Name() string        { return "store_memory" }
func (t *StoreMemory) Description() string { return "Store a durable note owned by an agent." }
func (t *StoreMemory) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "string"},
    "content": {"type": "string"},
    "memory_type": {"type": "string", "description": "Defaults to 'fact'"},
    "importance": {"type": "number", "description": "0.0-1.0, defaults to 0.5"},
    "metadata": {"type": "object"}
  },
  "required": ["content"]
}`)
}
func (t *StoreMemory) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Memory == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p storeMemoryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	importance := 0.5
	if p.Importance != nil {
		importance = *p.Importance
	}
	id, err := t.d.Memory.StoreMemory(ctx, t.d.AgentID(p.AgentID), p.Content, p.MemoryType, p.Metadata, importance)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"memory_id": id})
}

// --- search_memory ---

type searchMemoryParams struct {
	AgentID       string   `json:"agent_id"`
	Query         string   `json:"query,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	MemoryType    string   `json:"memory_type,omitempty"`
	MinImportance *float64 `json:"min_importance,omitempty"`
}

type SearchMemory struct{ d *dispatcher.Dispatcher }

func NewSearchMemory(d *dispatcher.Dispatcher) *SearchMemory { return &SearchMemory{d: d} }

func (t *SearchMemory) Name() string { return "search_memory" }
func (t *SearchMemory) Description() string {
	return "Search an agent's memories by keyword, filtered by type and minimum importance."
}
func (t *SearchMemory) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "string"},
    "query": {"type": "string"},
    "top_k": {"type": "integer", "description": "Defaults to 10"},
    "memory_type": {"type": "string"},
    "min_importance": {"type": "number"}
  }
}`)
}
func (t *SearchMemory) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Memory == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p searchMemoryParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	results, err := t.d.Memory.SearchMemory(ctx, t.d.AgentID(p.AgentID), p.Query, p.TopK, memory.SearchFilter{
		MemoryType:    p.MemoryType,
		MinImportance: p.MinImportance,
	})
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"memories": results})
}

// --- delete_memory ---

type deleteMemoryParams struct {
	MemoryID string `json:"memory_id"`
}

type DeleteMemory struct{ d *dispatcher.Dispatcher }

func NewDeleteMemory(d *dispatcher.Dispatcher) *DeleteMemory { return &DeleteMemory{d: d} }

func (t *DeleteMemory) Name() string        { return "delete_memory" }
func (t *DeleteMemory) Description() string { return "Delete a memory by ID." }
func (t *DeleteMemory) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"memory_id": {"type": "string"}},
  "required": ["memory_id"]
}`)
}
func (t *DeleteMemory) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Memory == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p deleteMemoryParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	deleted, err := t.d.Memory.DeleteMemory(ctx, p.MemoryID)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"deleted": deleted})
}

// --- get_state ---

type getStateParams struct {
	AgentID string `json:"agent_id"`
	Key     string `json:"key"`
}

type GetState struct{ d *dispatcher.Dispatcher }

func NewGetState(d *dispatcher.Dispatcher) *GetState { return &GetState{d: d} }

func (t *GetState) Name() string        { return "get_state" }
func (t *GetState) Description() string { return "Get a keyed state value for an agent." }
func (t *GetState) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"agent_id": {"type": "string"}, "key": {"type": "string"}},
  "required": ["key"]
}`)
}
func (t *GetState) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Memory == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p getStateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	value, found, err := t.d.Memory.GetState(ctx, t.d.AgentID(p.AgentID), p.Key)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"found": found, "value": value})
}

// --- set_state ---

type setStateParams struct {
	AgentID string `json:"agent_id"`
	Key     string `json:"key"`
	Value   any    `json:"value"`
}

type SetState struct{ d *dispatcher.Dispatcher }

func NewSetState(d *dispatcher.Dispatcher) *SetState { return &SetState{d: d} }

func (t *SetState) Name() string        { return "set_state" }
func (t *SetState) Description() string { return "Set a keyed state value for an agent." }
func (t *SetState) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "string"},
    "key": {"type": "string"},
    "value": {}
  },
  "required": ["key", "value"]
}`)
}
func (t *SetState) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Memory == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p setStateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	agentID := t.d.AgentID(p.AgentID)
	if err := t.d.Memory.SetState(ctx, agentID, p.Key, p.Value); err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	version, err := t.d.Memory.StateVersion(ctx, agentID, p.Key)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"ok": true, "version": version})
}

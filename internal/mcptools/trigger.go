package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hatidata/hati-mcp/internal/dispatcher"
	"github.com/hatidata/hati-mcp/internal/mcp"
)

// --- register_trigger ---

type registerTriggerParams struct {
	Name         string         `json:"name"`
	Concept      string         `json:"concept"`
	Threshold    float64        `json:"threshold,omitempty"`
	ActionType   string         `json:"action_type,omitempty"`
	ActionConfig map[string]any `json:"action_config,omitempty"`
}

type RegisterTrigger struct{ d *dispatcher.Dispatcher }

func NewRegisterTrigger(d *dispatcher.Dispatcher) *RegisterTrigger { return &RegisterTrigger{d: d} }

func (t *RegisterTrigger) Name() string { return "register_trigger" }
func (t *RegisterTrigger) Description() string {
	return "Register a semantic trigger that fires when content matches a concept above a threshold."
}
func (t *RegisterTrigger) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "concept": {"type": "string"},
    "threshold": {"type": "number", "description": "0.0-1.0, defaults to 0.7"},
    "action_type": {"type": "string", "description": "Defaults to flag_for_review"},
    "action_config": {"type": "object"}
  },
  "required": ["name", "concept"]
}`)
}
func (t *RegisterTrigger) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Trigger == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p registerTriggerParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	id, err := t.d.Trigger.RegisterTrigger(ctx, p.Name, p.Concept, p.Threshold, p.ActionType, p.ActionConfig)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"trigger_id": id})
}

// --- list_triggers ---

type listTriggersParams struct {
	Status string `json:"status,omitempty"`
}

type ListTriggers struct{ d *dispatcher.Dispatcher }

func NewListTriggers(d *dispatcher.Dispatcher) *ListTriggers { return &ListTriggers{d: d} }

func (t *ListTriggers) Name() string { return "list_triggers" }
func (t *ListTriggers) Description() string {
	return "List registered triggers, optionally filtered by status (active/inactive)."
}
func (t *ListTriggers) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"status": {"type": "string", "enum": ["active", "inactive"]}}
}`)
}
func (t *ListTriggers) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Trigger == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p listTriggersParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	triggers, err := t.d.Trigger.ListTriggers(ctx, p.Status)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"triggers": triggers})
}

// --- delete_trigger ---

type deleteTriggerParams struct {
	TriggerID string `json:"trigger_id"`
}

type DeleteTrigger struct{ d *dispatcher.Dispatcher }

func NewDeleteTrigger(d *dispatcher.Dispatcher) *DeleteTrigger { return &DeleteTrigger{d: d} }

func (t *DeleteTrigger) Name() string        { return "delete_trigger" }
func (t *DeleteTrigger) Description() string { return "Disable a trigger by ID." }
func (t *DeleteTrigger) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"trigger_id": {"type": "string"}},
  "required": ["trigger_id"]
}`)
}
func (t *DeleteTrigger) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Trigger == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p deleteTriggerParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	deleted, err := t.d.Trigger.DeleteTrigger(ctx, p.TriggerID)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"deleted": deleted})
}

// --- test_trigger ---

type testTriggerParams struct {
	TriggerID string `json:"trigger_id"`
	Content   string `json:"content"`
}

type TestTrigger struct{ d *dispatcher.Dispatcher }

func NewTestTrigger(d *dispatcher.Dispatcher) *TestTrigger { return &TestTrigger{d: d} }

func (t *TestTrigger) Name() string { return "test_trigger" }
func (t *TestTrigger) Description() string {
	return "Evaluate content against a registered trigger's concept without firing its action."
}
func (t *TestTrigger) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "trigger_id": {"type": "string"},
    "content": {"type": "string"}
  },
  "required": ["trigger_id", "content"]
}`)
}
func (t *TestTrigger) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.Trigger == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p testTriggerParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	result, err := t.d.Trigger.TestTrigger(ctx, p.TriggerID, p.Content)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(result)
}

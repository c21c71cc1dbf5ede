package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hatidata/hati-mcp/internal/cot"
	"github.com/hatidata/hati-mcp/internal/dispatcher"
	"github.com/hatidata/hati-mcp/internal/mcp"
)

// --- log_reasoning_step ---

type logReasoningStepParams struct {
	AgentID    string         `json:"agent_id"`
	SessionID  string         `json:"session_id"`
	StepType   string         `json:"step_type"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Importance *float64       `json:"importance,omitempty"`
}

type LogReasoningStep struct{ d *dispatcher.Dispatcher }

func NewLogReasoningStep(d *dispatcher.Dispatcher) *LogReasoningStep { return &LogReasoningStep{d: d} }

func (t *LogReasoningStep) Name() string { return "log_reasoning_step" }
func (t *LogReasoningStep) Description() string {
	return "Append a reasoning step to a session's hash-chained ledger."
}
func (t *LogReasoningStep) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "agent_id": {"type": "string"},
    "session_id": {"type": "string"},
    "step_type": {"type": "string", "description": "e.g. observation, thought, action, result"},
    "content": {"type": "string"},
    "metadata": {"type": "object"},
    "importance": {"type": "number", "description": "0.0-1.0, defaults to 0.5"}
  },
  "required": ["session_id", "step_type", "content"]
}`)
}
func (t *LogReasoningStep) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.CoT == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p logReasoningStepParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	importance := 0.5
	if p.Importance != nil {
		importance = *p.Importance
	}
	traceID, err := t.d.CoT.LogReasoningStep(ctx, t.d.AgentID(p.AgentID), p.SessionID, p.StepType, p.Content, p.Metadata, importance)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"trace_id": traceID})
}

// --- replay_session ---

type replaySessionParams struct {
	SessionID   string `json:"session_id"`
	VerifyChain bool   `json:"verify_chain,omitempty"`
}

type ReplaySession struct{ d *dispatcher.Dispatcher }

func NewReplaySession(d *dispatcher.Dispatcher) *ReplaySession { return &ReplaySession{d: d} }

func (t *ReplaySession) Name() string { return "replay_session" }
func (t *ReplaySession) Description() string {
	return "Return a session's reasoning steps in order, optionally verifying the hash chain."
}
func (t *ReplaySession) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "session_id": {"type": "string"},
    "verify_chain": {"type": "boolean", "description": "Defaults to false"}
  },
  "required": ["session_id"]
}`)
}
func (t *ReplaySession) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.CoT == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p replaySessionParams
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	result, err := t.d.CoT.ReplaySession(ctx, p.SessionID, p.VerifyChain)
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(result)
}

// --- list_sessions ---

type listSessionsParams struct {
	Limit   int    `json:"limit,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	Since   string `json:"since,omitempty"`
}

type ListSessions struct{ d *dispatcher.Dispatcher }

func NewListSessions(d *dispatcher.Dispatcher) *ListSessions { return &ListSessions{d: d} }

func (t *ListSessions) Name() string { return "list_sessions" }
func (t *ListSessions) Description() string {
	return "List reasoning sessions, newest first, optionally filtered by agent or start time."
}
func (t *ListSessions) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "limit": {"type": "integer", "description": "Defaults to 50"},
    "agent_id": {"type": "string"},
    "since": {"type": "string", "description": "ISO-8601 timestamp lower bound"}
  }
}`)
}
func (t *ListSessions) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	if t.d.CoT == nil {
		return mcp.ErrorResult(dispatcher.ErrDomainUnavailable.Error()), nil
	}
	var p listSessionsParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
		}
	}
	sessions, err := t.d.CoT.ListSessions(ctx, p.Limit, cot.ListSessionsFilter{AgentID: p.AgentID, Since: p.Since})
	if err != nil {
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"sessions": sessions})
}

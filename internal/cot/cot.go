// Package cot implements the chain-of-thought ledger (C4 in SPEC_FULL.md):
// a per-session, hash-chained append-only log of reasoning steps with
// replay and tamper verification.
package cot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hatidata/hati-mcp/internal/substrate"
)

const schema = "_cot"

var bootstrapDDL = []string{
	`CREATE SCHEMA IF NOT EXISTS "_cot"`,
	`CREATE TABLE IF NOT EXISTS "_cot".agent_traces (
		trace_id    VARCHAR PRIMARY KEY,
		session_id  VARCHAR NOT NULL,
		agent_id    VARCHAR NOT NULL,
		step_number INTEGER NOT NULL,
		step_type   VARCHAR NOT NULL,
		content     TEXT NOT NULL,
		importance  DOUBLE DEFAULT 0.5,
		metadata    VARCHAR,
		prev_hash   VARCHAR NOT NULL DEFAULT '',
		hash        VARCHAR NOT NULL,
		created_at  VARCHAR NOT NULL
	)`,
}

// ReasoningTrace is one step in a hash-chained session ledger (spec.md §3).
type ReasoningTrace struct {
	TraceID    string         `json:"trace_id"`
	SessionID  string         `json:"session_id"`
	AgentID    string         `json:"agent_id"`
	StepNumber int64          `json:"step_number"`
	StepType   string         `json:"step_type"`
	Content    string         `json:"content"`
	Importance float64        `json:"importance"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	PrevHash   string         `json:"prev_hash"`
	Hash       string         `json:"hash"`
	CreatedAt  string         `json:"created_at"`
}

// SessionSummary is one row of list_sessions (spec.md §4.3).
type SessionSummary struct {
	SessionID   string `json:"session_id"`
	AgentID     string `json:"agent_id"`
	StartedAt   string `json:"started_at"`
	LastStepAt  string `json:"last_step_at"`
	StepCount   int64  `json:"step_count"`
}

// ReplayResult is the result of replay_session (spec.md §4.3).
type ReplayResult struct {
	SessionID  string           `json:"session_id"`
	Steps      []ReasoningTrace `json:"steps"`
	StepCount  int              `json:"step_count"`
	ChainValid *bool            `json:"chain_valid"`
}

// Ledger implements the CoT ledger against an embedded substrate.DB.
type Ledger struct {
	db *substrate.DB

	// sessionLocks serializes the predecessor read / insert sequence per
	// session so step_number stays dense under concurrent appends within
	// one process (SPEC_FULL.md §4.3).
	mu           sync.Mutex
	sessionLocks map[string]*sync.Mutex
}

// New creates a Ledger.
func New(db *substrate.DB) *Ledger {
	return &Ledger{
		db:           db,
		sessionLocks: make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) ensureSchema(ctx context.Context) error {
	return l.db.EnsureSchema(ctx, schema, bootstrapDDL)
}

func (l *Ledger) lockFor(sessionID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.sessionLocks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.sessionLocks[sessionID] = m
	}
	return m
}

// ComputeHash implements the hash law from spec.md §3:
// hash = SHA256(prev_hash || session_id || step_type || content).
func ComputeHash(prevHash, sessionID, stepType, content string) string {
	h := sha256.Sum256([]byte(prevHash + sessionID + stepType + content))
	return hex.EncodeToString(h[:])
}

// LogReasoningStep appends a reasoning step under the session's hash chain
// and returns the new trace_id.
func (l *Ledger) LogReasoningStep(ctx context.Context, agentID, sessionID, stepType, content string, metadata map[string]any, importance float64) (string, error) {
	if err := l.ensureSchema(ctx); err != nil {
		return "", err
	}

	lock := l.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	rows, err := l.db.Query(ctx,
		`SELECT hash, step_number FROM "_cot".agent_traces
		 WHERE session_id = $1 ORDER BY step_number DESC LIMIT 1`,
		sessionID,
	)
	if err != nil {
		return "", err
	}

	var prevHash string
	var stepNumber int64
	if len(rows) > 0 {
		prevHash = toString(rows[0]["hash"])
		stepNumber = toInt64(rows[0]["step_number"]) + 1
	}

	hash := ComputeHash(prevHash, sessionID, stepType, content)

	var metaJSON any
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("marshaling metadata: %w", err)
		}
		metaJSON = string(b)
	}

	traceID := uuid.NewString()
	_, err = l.db.Execute(ctx,
		`INSERT INTO "_cot".agent_traces
			(trace_id, session_id, agent_id, step_number, step_type, content,
			 importance, metadata, prev_hash, hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		traceID, sessionID, agentID, stepNumber, stepType, content,
		importance, metaJSON, prevHash, hash, nowISO(),
	)
	if err != nil {
		return "", err
	}
	return traceID, nil
}

// ReplaySession returns all steps in a session in step_number order,
// optionally verifying the hash chain.
func (l *Ledger) ReplaySession(ctx context.Context, sessionID string, verifyChain bool) (*ReplayResult, error) {
	if err := l.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := l.db.Query(ctx,
		`SELECT trace_id, session_id, agent_id, step_number, step_type, content,
			importance, metadata, prev_hash, hash, created_at
		 FROM "_cot".agent_traces
		 WHERE session_id = $1 ORDER BY step_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}

	steps := make([]ReasoningTrace, 0, len(rows))
	for _, r := range rows {
		t := ReasoningTrace{
			TraceID:    toString(r["trace_id"]),
			SessionID:  toString(r["session_id"]),
			AgentID:    toString(r["agent_id"]),
			StepNumber: toInt64(r["step_number"]),
			StepType:   toString(r["step_type"]),
			Content:    toString(r["content"]),
			Importance: toFloat64(r["importance"]),
			PrevHash:   toString(r["prev_hash"]),
			Hash:       toString(r["hash"]),
			CreatedAt:  toString(r["created_at"]),
		}
		if raw, ok := r["metadata"].(string); ok && raw != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				t.Metadata = meta
			}
		}
		steps = append(steps, t)
	}

	var chainValid *bool
	if verifyChain {
		valid := true
		for i, step := range steps {
			expectedPrev := ""
			if i > 0 {
				expectedPrev = steps[i-1].Hash
			}
			if step.PrevHash != expectedPrev {
				valid = false
				break
			}
			expectedHash := ComputeHash(step.PrevHash, step.SessionID, step.StepType, step.Content)
			if step.Hash != expectedHash {
				valid = false
				break
			}
		}
		chainValid = &valid
	}

	return &ReplayResult{
		SessionID:  sessionID,
		Steps:      steps,
		StepCount:  len(steps),
		ChainValid: chainValid,
	}, nil
}

// ListSessionsFilter narrows ListSessions.
type ListSessionsFilter struct {
	AgentID string
	Since   string
}

// ListSessions groups traces by (session_id, agent_id).
func (l *Ledger) ListSessions(ctx context.Context, limit int, filter ListSessionsFilter) ([]SessionSummary, error) {
	if err := l.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	var (
		conds []string
		args  []any
	)
	if filter.AgentID != "" {
		args = append(args, filter.AgentID)
		conds = append(conds, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	if filter.Since != "" {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT session_id, agent_id, MIN(created_at) AS started_at,
			MAX(created_at) AS last_step_at, COUNT(*) AS step_count
		 FROM "_cot".agent_traces %s
		 GROUP BY session_id, agent_id
		 ORDER BY started_at DESC
		 LIMIT %d`,
		where, limit,
	)

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]SessionSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, SessionSummary{
			SessionID:  toString(r["session_id"]),
			AgentID:    toString(r["agent_id"]),
			StartedAt:  toString(r["started_at"]),
			LastStepAt: toString(r["last_step_at"]),
			StepCount:  toInt64(r["step_count"]),
		})
	}
	return out, nil
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

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	}
	return 0
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

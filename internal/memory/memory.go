// Package memory implements the agent memory store (C3 in SPEC_FULL.md):
// durable per-agent notes with filtered retrieval, plus a small per-agent
// keyed state table with optimistic versioning.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hatidata/hati-mcp/internal/substrate"
)

const schema = "_memory"

var bootstrapDDL = []string{
	`CREATE SCHEMA IF NOT EXISTS "_memory"`,
	`CREATE TABLE IF NOT EXISTS "_memory".agent_memories (
		memory_id   VARCHAR PRIMARY KEY,
		agent_id    VARCHAR NOT NULL,
		content     TEXT NOT NULL,
		memory_type VARCHAR NOT NULL DEFAULT 'fact',
		importance  DOUBLE DEFAULT 0.5,
		metadata    VARCHAR,
		created_at  VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS "_memory".agent_state (
		agent_id   VARCHAR NOT NULL,
		key        VARCHAR NOT NULL,
		value      VARCHAR NOT NULL,
		version    BIGINT NOT NULL DEFAULT 1,
		updated_at VARCHAR NOT NULL,
		PRIMARY KEY (agent_id, key)
	)`,
}

// AgentMemory is a durable note owned by an agent (spec.md §3).
type AgentMemory struct {
	MemoryID   string         `json:"memory_id"`
	AgentID    string         `json:"agent_id"`
	Content    string         `json:"content"`
	MemoryType string         `json:"memory_type"`
	Importance float64        `json:"importance"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// Store implements the memory store against an embedded substrate.DB.
type Store struct {
	db *substrate.DB
}

// New creates a memory Store.
func New(db *substrate.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	return s.db.EnsureSchema(ctx, schema, bootstrapDDL)
}

// StoreMemory inserts a new memory and returns its ID.
func (s *Store) StoreMemory(ctx context.Context, agentID, content, memoryType string, metadata map[string]any, importance float64) (string, error) {
	if agentID == "" {
		return "", fmt.Errorf("agent_id is required")
	}
	if memoryType == "" {
		memoryType = "fact"
	}
	if importance < 0 || importance > 1 {
		return "", fmt.Errorf("importance must be in [0,1], got %v", importance)
	}
	if err := s.ensureSchema(ctx); err != nil {
		return "", err
	}

	var metaJSON any
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("marshaling metadata: %w", err)
		}
		metaJSON = string(b)
	}

	memoryID := uuid.NewString()
	createdAt := nowISO()
	_, err := s.db.Execute(ctx,
		`INSERT INTO "_memory".agent_memories
			(memory_id, agent_id, content, memory_type, importance, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		memoryID, agentID, content, memoryType, importance, metaJSON, createdAt,
	)
	if err != nil {
		return "", err
	}
	return memoryID, nil
}

// SearchFilter narrows SearchMemory beyond the agent_id and query text.
type SearchFilter struct {
	MemoryType    string
	MinImportance *float64
}

// SearchMemory performs the ILIKE token search described in spec.md §4.2.
// Tokens of length <= 2 are discarded; if none remain, no text filter is
// applied (boundary behavior: empty/short query returns all memories for
// the agent subject to the other filters).
func (s *Store) SearchMemory(ctx context.Context, agentID, query string, topK int, filter SearchFilter) ([]AgentMemory, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}

	var (
		conds []string
		args  []any
	)
	args = append(args, agentID)
	conds = append(conds, fmt.Sprintf("agent_id = $%d", len(args)))

	tokens := searchTokens(query)
	if len(tokens) > 0 {
		var likeClauses []string
		for _, tok := range tokens {
			args = append(args, "%"+tok+"%")
			likeClauses = append(likeClauses, fmt.Sprintf("content ILIKE $%d", len(args)))
		}
		conds = append(conds, "("+strings.Join(likeClauses, " OR ")+")")
	}

	if filter.MemoryType != "" {
		args = append(args, filter.MemoryType)
		conds = append(conds, fmt.Sprintf("memory_type = $%d", len(args)))
	}
	if filter.MinImportance != nil {
		args = append(args, *filter.MinImportance)
		conds = append(conds, fmt.Sprintf("importance >= $%d", len(args)))
	}

	query2 := fmt.Sprintf(
		`SELECT memory_id, agent_id, content, memory_type, importance, metadata, created_at
		 FROM "_memory".agent_memories
		 WHERE %s
		 ORDER BY importance DESC, created_at DESC
		 LIMIT %d`,
		strings.Join(conds, " AND "), topK,
	)

	rows, err := s.db.Query(ctx, query2, args...)
	if err != nil {
		return nil, err
	}
	return rowsToMemories(rows)
}

// DeleteMemory removes a memory by ID. Returns true iff a row existed.
func (s *Store) DeleteMemory(ctx context.Context, memoryID string) (bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}
	rows, err := s.db.Query(ctx, `SELECT COUNT(*) AS c FROM "_memory".agent_memories WHERE memory_id = $1`, memoryID)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 || toInt64(rows[0]["c"]) == 0 {
		return false, nil
	}
	if _, err := s.db.Execute(ctx, `DELETE FROM "_memory".agent_memories WHERE memory_id = $1`, memoryID); err != nil {
		return false, err
	}
	return true, nil
}

// GetState returns the JSON-decoded value for (agentID, key), the raw
// string if it doesn't decode as JSON, or nil if absent.
func (s *Store) GetState(ctx context.Context, agentID, key string) (any, bool, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, false, err
	}
	rows, err := s.db.Query(ctx, `SELECT value FROM "_memory".agent_state WHERE agent_id = $1 AND key = $2`, agentID, key)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	raw, _ := rows[0]["value"].(string)
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return raw, true, nil
	}
	return decoded, true, nil
}

// SetState upserts (agentID, key) = value, bumping version on conflict.
func (s *Store) SetState(ctx context.Context, agentID, key string, value any) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling state value: %w", err)
	}
	_, err = s.db.Execute(ctx,
		`INSERT INTO "_memory".agent_state (agent_id, key, value, version, updated_at)
		 VALUES ($1, $2, $3, 1, $4)
		 ON CONFLICT (agent_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			version = "_memory".agent_state.version + 1,
			updated_at = EXCLUDED.updated_at`,
		agentID, key, string(encoded), nowISO(),
	)
	return err
}

// StateVersion returns the current version for (agentID, key), or 0 if absent.
func (s *Store) StateVersion(ctx context.Context, agentID, key string) (int64, error) {
	rows, err := s.db.Query(ctx, `SELECT version FROM "_memory".agent_state WHERE agent_id = $1 AND key = $2`, agentID, key)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt64(rows[0]["version"]), nil
}

// searchTokens splits query on whitespace, discarding tokens of length <= 2.
func searchTokens(query string) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func rowsToMemories(rows []map[string]any) ([]AgentMemory, error) {
	out := make([]AgentMemory, 0, len(rows))
	for _, r := range rows {
		m := AgentMemory{
			MemoryID:   toString(r["memory_id"]),
			AgentID:    toString(r["agent_id"]),
			Content:    toString(r["content"]),
			MemoryType: toString(r["memory_type"]),
			Importance: toFloat64(r["importance"]),
			CreatedAt:  toString(r["created_at"]),
		}
		if raw, ok := r["metadata"].(string); ok && raw != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				m.Metadata = meta
			}
		}
		out = append(out, m)
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

// Package trigger implements the semantic trigger registry (C5 in
// SPEC_FULL.md): register/list/disable/test lifecycle for concept-matching
// rules.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hatidata/hati-mcp/internal/substrate"
)

const schema = "_triggers"

var bootstrapDDL = []string{
	`CREATE SCHEMA IF NOT EXISTS "_triggers"`,
	`CREATE TABLE IF NOT EXISTS "_triggers".trigger_registry (
		trigger_id    VARCHAR PRIMARY KEY,
		name          VARCHAR NOT NULL,
		concept       VARCHAR NOT NULL,
		threshold     DOUBLE DEFAULT 0.7,
		action_type   VARCHAR NOT NULL DEFAULT 'flag_for_review',
		action_config VARCHAR DEFAULT '{}',
		enabled       BOOLEAN DEFAULT TRUE,
		cooldown_ms   BIGINT DEFAULT 60000,
		fire_count    BIGINT DEFAULT 0,
		last_fired_at VARCHAR,
		created_at    VARCHAR NOT NULL,
		updated_at    VARCHAR NOT NULL
	)`,
}

// Trigger is a registered concept-matching rule (spec.md §3).
type Trigger struct {
	TriggerID    string         `json:"trigger_id"`
	Name         string         `json:"name"`
	Concept      string         `json:"concept"`
	Threshold    float64        `json:"threshold"`
	ActionType   string         `json:"action_type"`
	ActionConfig map[string]any `json:"action_config,omitempty"`
	Enabled      bool           `json:"enabled"`
	CooldownMS   int64          `json:"cooldown_ms"`
	FireCount    int64          `json:"fire_count"`
	LastFiredAt  string         `json:"last_fired_at,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// TestResult is the result of test_trigger (spec.md §4.4).
type TestResult struct {
	Matched     bool    `json:"matched"`
	Score       float64 `json:"score"`
	Threshold   float64 `json:"threshold"`
	TriggerName string  `json:"trigger_name,omitempty"`
	Concept     string  `json:"concept,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Registry implements the trigger registry against an embedded substrate.DB.
type Registry struct {
	db *substrate.DB
}

// New creates a Registry.
func New(db *substrate.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) ensureSchema(ctx context.Context) error {
	return r.db.EnsureSchema(ctx, schema, bootstrapDDL)
}

// RegisterTrigger creates a new trigger and returns its ID.
func (r *Registry) RegisterTrigger(ctx context.Context, name, concept string, threshold float64, actionType string, actionConfig map[string]any) (string, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return "", err
	}
	if name == "" || concept == "" {
		return "", fmt.Errorf("name and concept are required")
	}
	if threshold == 0 {
		threshold = 0.7
	}
	if actionType == "" {
		actionType = "flag_for_review"
	}

	configJSON := "{}"
	if actionConfig != nil {
		b, err := json.Marshal(actionConfig)
		if err != nil {
			return "", fmt.Errorf("marshaling action_config: %w", err)
		}
		configJSON = string(b)
	}

	triggerID := uuid.NewString()
	now := nowISO()
	_, err := r.db.Execute(ctx,
		`INSERT INTO "_triggers".trigger_registry
			(trigger_id, name, concept, threshold, action_type, action_config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		triggerID, name, concept, threshold, actionType, configJSON, now,
	)
	if err != nil {
		return "", err
	}
	return triggerID, nil
}

// ListTriggers returns triggers filtered by status ("active", "inactive",
// or anything else/absent for no filter), newest first.
func (r *Registry) ListTriggers(ctx context.Context, status string) ([]Trigger, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	where := ""
	switch status {
	case "active":
		where = "WHERE enabled = TRUE"
	case "inactive":
		where = "WHERE enabled = FALSE"
	}
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT trigger_id, name, concept, threshold, action_type, action_config,
			enabled, cooldown_ms, fire_count, last_fired_at, created_at, updated_at
		 FROM "_triggers".trigger_registry %s ORDER BY created_at DESC`, where))
	if err != nil {
		return nil, err
	}
	return rowsToTriggers(rows), nil
}

// DeleteTrigger soft-deletes a trigger (enabled=false). Returns true iff found.
func (r *Registry) DeleteTrigger(ctx context.Context, triggerID string) (bool, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return false, err
	}
	rows, err := r.db.Query(ctx, `SELECT trigger_id FROM "_triggers".trigger_registry WHERE trigger_id = $1`, triggerID)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	_, err = r.db.Execute(ctx,
		`UPDATE "_triggers".trigger_registry SET enabled = FALSE, updated_at = $2 WHERE trigger_id = $1`,
		triggerID, nowISO(),
	)
	return err == nil, err
}

// TestTrigger evaluates content against a trigger's concept using the
// exact arithmetic from spec.md §4.4: W = tokens(concept) longer than 2
// chars, M = the subset of W present as a substring of lowercased content,
// score = |M| / max(|W|, 1).
func (r *Registry) TestTrigger(ctx context.Context, triggerID, content string) (*TestResult, error) {
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx,
		`SELECT name, concept, threshold FROM "_triggers".trigger_registry WHERE trigger_id = $1`,
		triggerID,
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &TestResult{Matched: false, Error: "Trigger not found"}, nil
	}

	name := toString(rows[0]["name"])
	concept := toString(rows[0]["concept"])
	threshold := toFloat64(rows[0]["threshold"])

	conceptLower := strings.ToLower(concept)
	contentLower := strings.ToLower(content)

	var words []string
	for _, w := range strings.Fields(conceptLower) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}

	matched := 0
	for _, w := range words {
		if strings.Contains(contentLower, w) {
			matched++
		}
	}

	denom := len(words)
	if denom == 0 {
		denom = 1
	}
	score := round4(float64(matched) / float64(denom))

	return &TestResult{
		Matched:     score >= threshold,
		Score:       score,
		Threshold:   threshold,
		TriggerName: name,
		Concept:     concept,
	}, nil
}

func round4(f float64) float64 {
	return float64(int64(f*10000+0.5)) / 10000
}

func rowsToTriggers(rows []map[string]any) []Trigger {
	out := make([]Trigger, 0, len(rows))
	for _, r := range rows {
		t := Trigger{
			TriggerID:   toString(r["trigger_id"]),
			Name:        toString(r["name"]),
			Concept:     toString(r["concept"]),
			Threshold:   toFloat64(r["threshold"]),
			ActionType:  toString(r["action_type"]),
			Enabled:     toBool(r["enabled"]),
			CooldownMS:  toInt64(r["cooldown_ms"]),
			FireCount:   toInt64(r["fire_count"]),
			LastFiredAt: toString(r["last_fired_at"]),
			CreatedAt:   toString(r["created_at"]),
			UpdatedAt:   toString(r["updated_at"]),
		}
		if raw, ok := r["action_config"].(string); ok && raw != "" {
			var cfg map[string]any
			if err := json.Unmarshal([]byte(raw), &cfg); err == nil {
				t.ActionConfig = cfg
			}
		}
		out = append(out, t)
	}
	return out
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

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

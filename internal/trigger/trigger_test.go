package trigger

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatidata/hati-mcp/internal/substrate"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	db, err := substrate.Open(filepath.Join(dir, "state.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestRegisterAndListTriggers(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.RegisterTrigger(ctx, "budget-overrun", "budget overrun risk", 0.5, "flag_for_review", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	all, err := r.ListTriggers(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "budget-overrun", all[0].Name)
	assert.True(t, all[0].Enabled)
	assert.Equal(t, 0.5, all[0].Threshold)

	active, err := r.ListTriggers(ctx, "active")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	inactive, err := r.ListTriggers(ctx, "inactive")
	require.NoError(t, err)
	assert.Empty(t, inactive)
}

func TestRegisterTriggerDefaults(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.RegisterTrigger(ctx, "n", "c", 0, "", nil)
	require.NoError(t, err)

	all, err := r.ListTriggers(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].TriggerID)
	assert.Equal(t, 0.7, all[0].Threshold)
	assert.Equal(t, "flag_for_review", all[0].ActionType)
}

func TestRegisterTriggerRequiresNameAndConcept(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterTrigger(ctx, "", "concept", 0.5, "", nil)
	assert.Error(t, err)

	_, err = r.RegisterTrigger(ctx, "name", "", 0.5, "", nil)
	assert.Error(t, err)
}

func TestDeleteTriggerSoftDeletes(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.RegisterTrigger(ctx, "n", "c", 0.5, "", nil)
	require.NoError(t, err)

	deleted, err := r.DeleteTrigger(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	again, err := r.DeleteTrigger(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, again)

	inactive, err := r.ListTriggers(ctx, "inactive")
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, id, inactive[0].TriggerID)
}

// TestTestTriggerScoringArithmetic locks in the exact scoring law from
// spec.md §4.4: W = tokens(concept) longer than 2 chars, M = the subset of
// W present as a substring of lowercased content, score = |M| / max(|W|, 1).
func TestTestTriggerScoringArithmetic(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.RegisterTrigger(ctx, "overrun", "budget overrun risk exceeded", 0.5, "", nil)
	require.NoError(t, err)

	// concept tokens > 2 chars: "budget", "overrun", "risk", "exceeded" (4 words)
	result, err := r.TestTrigger(ctx, id, "We are worried about a budget overrun this quarter.")
	require.NoError(t, err)
	// matched: "budget", "overrun" => 2/4 = 0.5
	assert.Equal(t, 0.5, result.Score)
	assert.True(t, result.Matched, "score equal to threshold counts as matched")
	assert.Equal(t, "overrun", result.TriggerName)

	result2, err := r.TestTrigger(ctx, id, "nothing relevant here")
	require.NoError(t, err)
	assert.Equal(t, 0.0, result2.Score)
	assert.False(t, result2.Matched)

	// score and threshold must survive JSON encoding even at zero: §4.4
	// requires them on every hit, and omitempty would silently drop a
	// genuine 0.0 score from the envelope.
	encoded, err := json.Marshal(result2)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Contains(t, decoded, "score")
	assert.Contains(t, decoded, "threshold")
}

func TestTestTriggerUnknownID(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	result, err := r.TestTrigger(ctx, "missing", "anything")
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Equal(t, "Trigger not found", result.Error)
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.6667, round4(2.0/3.0))
	assert.Equal(t, 0.5, round4(1.0/2.0))
	assert.Equal(t, 1.0, round4(1.0))
}

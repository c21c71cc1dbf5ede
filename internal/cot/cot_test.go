package cot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatidata/hati-mcp/internal/substrate"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	db, err := substrate.Open(filepath.Join(dir, "state.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestComputeHashIsDeterministicAndPositional(t *testing.T) {
	h1 := ComputeHash("prev", "sess", "thought", "hello")
	h2 := ComputeHash("prev", "sess", "thought", "hello")
	assert.Equal(t, h1, h2, "same inputs must yield the same hash")

	// Concatenation without separators means fields at different positions
	// that happen to concatenate to the same string must still collide by
	// design (documenting the hash law, not asserting a bug):
	// "ab"+"c" == "a"+"bc".
	collided := ComputeHash("", "ab", "c", "") == ComputeHash("", "a", "bc", "")
	assert.True(t, collided, "hash law concatenates fields with no separator")

	h3 := ComputeHash("prev", "sess", "thought", "goodbye")
	assert.NotEqual(t, h1, h3)
}

func TestLogReasoningStepChainsHashes(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id1, err := l.LogReasoningStep(ctx, "agent-1", "sess-1", "observation", "saw a thing", nil, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	id2, err := l.LogReasoningStep(ctx, "agent-1", "sess-1", "thought", "thought about it", map[string]any{"k": "v"}, 0.8)
	require.NoError(t, err)
	require.NotEmpty(t, id2)
	require.NotEqual(t, id1, id2)

	result, err := l.ReplaySession(ctx, "sess-1", true)
	require.NoError(t, err)
	require.Equal(t, 2, result.StepCount)
	require.NotNil(t, result.ChainValid)
	assert.True(t, *result.ChainValid)

	step0 := result.Steps[0]
	step1 := result.Steps[1]
	assert.Equal(t, int64(0), step0.StepNumber)
	assert.Equal(t, int64(1), step1.StepNumber)
	assert.Equal(t, "", step0.PrevHash)
	assert.Equal(t, step0.Hash, step1.PrevHash)
	assert.Equal(t, ComputeHash("", "sess-1", "observation", "saw a thing"), step0.Hash)
	assert.Equal(t, map[string]any{"k": "v"}, step1.Metadata)
}

func TestReplaySessionDetectsTamper(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.LogReasoningStep(ctx, "agent-1", "sess-2", "observation", "first", nil, 0.5)
	require.NoError(t, err)
	_, err = l.LogReasoningStep(ctx, "agent-1", "sess-2", "thought", "second", nil, 0.5)
	require.NoError(t, err)

	_, err = l.db.Execute(ctx,
		`UPDATE "_cot".agent_traces SET content = $1 WHERE session_id = $2 AND step_number = 0`,
		"tampered", "sess-2",
	)
	require.NoError(t, err)

	result, err := l.ReplaySession(ctx, "sess-2", true)
	require.NoError(t, err)
	require.NotNil(t, result.ChainValid)
	assert.False(t, *result.ChainValid)
}

func TestReplaySessionWithoutVerifyLeavesChainValidNil(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, err := l.LogReasoningStep(ctx, "agent-1", "sess-3", "observation", "x", nil, 0.5)
	require.NoError(t, err)

	result, err := l.ReplaySession(ctx, "sess-3", false)
	require.NoError(t, err)
	assert.Nil(t, result.ChainValid)
}

func TestListSessionsFiltersByAgentAndSince(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.LogReasoningStep(ctx, "agent-a", "sess-a", "observation", "x", nil, 0.5)
	require.NoError(t, err)
	_, err = l.LogReasoningStep(ctx, "agent-b", "sess-b", "observation", "y", nil, 0.5)
	require.NoError(t, err)

	sessions, err := l.ListSessions(ctx, 0, ListSessionsFilter{AgentID: "agent-a"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-a", sessions[0].SessionID)
	assert.Equal(t, int64(1), sessions[0].StepCount)

	all, err := l.ListSessions(ctx, 0, ListSessionsFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLogReasoningStepSerializesConcurrentAppendsPerSession(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := l.LogReasoningStep(ctx, "agent-1", "sess-concurrent", "observation", "step", nil, 0.5)
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	result, err := l.ReplaySession(ctx, "sess-concurrent", true)
	require.NoError(t, err)
	require.Equal(t, n, result.StepCount)
	require.NotNil(t, result.ChainValid)
	assert.True(t, *result.ChainValid, "step_number must stay dense and chained under concurrent appends")

	for i, step := range result.Steps {
		assert.Equal(t, int64(i), step.StepNumber)
	}
}

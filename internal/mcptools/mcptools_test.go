package mcptools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatidata/hati-mcp/internal/branch"
	"github.com/hatidata/hati-mcp/internal/cot"
	"github.com/hatidata/hati-mcp/internal/dispatcher"
	"github.com/hatidata/hati-mcp/internal/maintenance"
	"github.com/hatidata/hati-mcp/internal/memory"
	"github.com/hatidata/hati-mcp/internal/substrate"
)

func newTestDispatcher(t *testing.T, defaultAgentID string) *dispatcher.Dispatcher {
	t.Helper()
	dir := t.TempDir()
	db, err := substrate.Open(filepath.Join(dir, "state.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return dispatcher.NewLocal(db, defaultAgentID)
}

func decodeResult(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestReadQueryRejectsMutatingStatements(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()
	_, err := d.Execute(ctx, `CREATE TABLE main.widgets (id INTEGER)`)
	require.NoError(t, err)

	tool := NewReadQuery(d)
	params, _ := json.Marshal(map[string]any{"sql": `DROP TABLE main.widgets`})
	result, err := tool.Execute(ctx, params)
	require.NoError(t, err)
	assert.True(t, result.IsError, "a DDL statement must not survive the read_query subquery wrapper")
}

func TestReadQueryAllowsSelect(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()
	_, err := d.Execute(ctx, `CREATE TABLE main.widgets (id INTEGER)`)
	require.NoError(t, err)
	_, err = d.Execute(ctx, `INSERT INTO main.widgets VALUES (1), (2)`)
	require.NoError(t, err)

	tool := NewReadQuery(d)
	params, _ := json.Marshal(map[string]any{"sql": `SELECT * FROM main.widgets ORDER BY id`})
	result, err := tool.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	body := decodeResult(t, []byte(result.Content[0].Text))
	rows, ok := body["rows"].([]any)
	require.True(t, ok)
	assert.Len(t, rows, 2)
}

func TestStoreMemoryFallsBackToDefaultAgentID(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()

	store := NewStoreMemory(d)
	params, _ := json.Marshal(map[string]any{"content": "a durable note"})
	result, err := store.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	memories, err := d.Memory.SearchMemory(ctx, "default-agent", "", 10, memory.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, memories, 1, "store_memory with no agent_id must fall back to the dispatcher's default")
	assert.Equal(t, "a durable note", memories[0].Content)
}

func TestStoreMemoryRequiresNoAgentIDButUsesExplicitWhenGiven(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()

	store := NewStoreMemory(d)
	params, _ := json.Marshal(map[string]any{"content": "note", "agent_id": "explicit-agent"})
	result, err := store.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	search := NewSearchMemory(d)
	searchParams, _ := json.Marshal(map[string]any{"agent_id": "explicit-agent"})
	searchResult, err := search.Execute(ctx, searchParams)
	require.NoError(t, err)
	require.False(t, searchResult.IsError)
	body := decodeResult(t, []byte(searchResult.Content[0].Text))
	mems, ok := body["memories"].([]any)
	require.True(t, ok)
	require.Len(t, mems, 1)

	defaultSearch := NewSearchMemory(d)
	defaultSearchParams, _ := json.Marshal(map[string]any{"agent_id": "default-agent"})
	defaultResult, err := defaultSearch.Execute(ctx, defaultSearchParams)
	require.NoError(t, err)
	defaultBody := decodeResult(t, []byte(defaultResult.Content[0].Text))
	assert.Empty(t, defaultBody["memories"])
}

func TestStoreMemoryHonorsExplicitZeroImportance(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()

	store := NewStoreMemory(d)
	params, _ := json.Marshal(map[string]any{"content": "irrelevant aside", "importance": 0.0})
	result, err := store.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	memories, err := d.Memory.SearchMemory(ctx, "default-agent", "", 10, memory.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, 0.0, memories[0].Importance, "an explicit importance of 0.0 must not be rewritten to the 0.5 default")
}

func TestLogReasoningStepHonorsExplicitZeroImportance(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()

	logStep := NewLogReasoningStep(d)
	params, _ := json.Marshal(map[string]any{
		"session_id": "sess-zero",
		"step_type":  "observation",
		"content":    "saw nothing important",
		"importance": 0.0,
	})
	result, err := logStep.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	replay, err := d.CoT.ReplaySession(ctx, "sess-zero", false)
	require.NoError(t, err)
	require.Len(t, replay.Steps, 1)
	assert.Equal(t, 0.0, replay.Steps[0].Importance, "an explicit importance of 0.0 must not be rewritten to the 0.5 default")
}

func TestLogReasoningStepFallsBackToDefaultAgentID(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()

	logStep := NewLogReasoningStep(d)
	params, _ := json.Marshal(map[string]any{
		"session_id": "sess-1",
		"step_type":  "observation",
		"content":    "saw something",
	})
	result, err := logStep.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	sessions, err := d.CoT.ListSessions(ctx, 0, cot.ListSessionsFilter{AgentID: "default-agent"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].SessionID)
}

func TestBranchCreateWithSweeperCreatesListedBranch(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()
	_, err := d.Execute(ctx, `CREATE TABLE main.widgets (id INTEGER)`)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := maintenance.NewBranchSweeper(branch.New(nil), logger)

	create := NewBranchCreate(d, sweeper)
	params, _ := json.Marshal(map[string]any{"name": "scratch", "ttl_seconds": 3600})
	result, err := create.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)

	body := decodeResult(t, []byte(result.Content[0].Text))
	branchID, ok := body["branch_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, branchID)

	list := NewBranchList(d)
	listResult, err := list.Execute(ctx, nil)
	require.NoError(t, err)
	listBody := decodeResult(t, []byte(listResult.Content[0].Text))
	branches, ok := listBody["branches"].([]any)
	require.True(t, ok)
	require.Len(t, branches, 1)
}

func TestBranchQueryMergeDiscardLifecycle(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()
	_, err := d.Execute(ctx, `CREATE TABLE main.widgets (id INTEGER)`)
	require.NoError(t, err)
	_, err = d.Execute(ctx, `INSERT INTO main.widgets VALUES (1)`)
	require.NoError(t, err)

	create := NewBranchCreate(d, nil)
	createParams, _ := json.Marshal(map[string]any{"name": "b"})
	createResult, err := create.Execute(ctx, createParams)
	require.NoError(t, err)
	require.False(t, createResult.IsError)
	branchID := decodeResult(t, []byte(createResult.Content[0].Text))["branch_id"].(string)

	query := NewBranchQuery(d)
	queryParams, _ := json.Marshal(map[string]any{"branch_id": branchID, "sql": "SELECT * FROM widgets"})
	queryResult, err := query.Execute(ctx, queryParams)
	require.NoError(t, err)
	require.False(t, queryResult.IsError)

	merge := NewBranchMerge(d)
	mergeParams, _ := json.Marshal(map[string]any{"branch_id": branchID, "strategy": "main_wins"})
	mergeResult, err := merge.Execute(ctx, mergeParams)
	require.NoError(t, err)
	require.False(t, mergeResult.IsError)

	discard := NewBranchDiscard(d)
	discardParams, _ := json.Marshal(map[string]any{"branch_id": branchID})
	discardResult, err := discard.Execute(ctx, discardParams)
	require.NoError(t, err)
	require.False(t, discardResult.IsError)
	discardBody := decodeResult(t, []byte(discardResult.Content[0].Text))
	assert.Equal(t, false, discardBody["discarded"], "branch_merge already dropped the schema, so discard finds nothing")
}

func TestRegisterAndTestTriggerEndToEnd(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()

	register := NewRegisterTrigger(d)
	registerParams, _ := json.Marshal(map[string]any{
		"name":    "overrun",
		"concept": "budget overrun risk",
		"threshold": 0.5,
	})
	registerResult, err := register.Execute(ctx, registerParams)
	require.NoError(t, err)
	require.False(t, registerResult.IsError)
	triggerID := decodeResult(t, []byte(registerResult.Content[0].Text))["trigger_id"].(string)
	require.NotEmpty(t, triggerID)

	test := NewTestTrigger(d)
	testParams, _ := json.Marshal(map[string]any{
		"trigger_id": triggerID,
		"content":    "we are worried about a budget overrun this quarter",
	})
	testResult, err := test.Execute(ctx, testParams)
	require.NoError(t, err)
	require.False(t, testResult.IsError)
	body := decodeResult(t, []byte(testResult.Content[0].Text))
	assert.Equal(t, true, body["matched"])

	del := NewDeleteTrigger(d)
	delParams, _ := json.Marshal(map[string]any{"trigger_id": triggerID})
	delResult, err := del.Execute(ctx, delParams)
	require.NoError(t, err)
	delBody := decodeResult(t, []byte(delResult.Content[0].Text))
	assert.Equal(t, true, delBody["deleted"])

	list := NewListTriggers(d)
	listResult, err := list.Execute(ctx, json.RawMessage(`{"status":"active"}`))
	require.NoError(t, err)
	listBody := decodeResult(t, []byte(listResult.Content[0].Text))
	assert.Empty(t, listBody["triggers"])
}

func TestCatalogToolsListSchemasTablesDescribeAndUsageStats(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()
	_, err := d.Execute(ctx, `CREATE TABLE main.widgets (id INTEGER, name VARCHAR)`)
	require.NoError(t, err)
	_, err = d.Execute(ctx, `INSERT INTO main.widgets VALUES (1, 'a'), (2, 'b')`)
	require.NoError(t, err)

	schemasResult, err := NewListSchemas(d).Execute(ctx, nil)
	require.NoError(t, err)
	require.False(t, schemasResult.IsError)
	schemasBody := decodeResult(t, []byte(schemasResult.Content[0].Text))
	schemas, ok := schemasBody["schemas"].([]any)
	require.True(t, ok)
	assert.Contains(t, schemas, "main")

	tablesResult, err := NewListTables(d).Execute(ctx, json.RawMessage(`{"schema":"main"}`))
	require.NoError(t, err)
	require.False(t, tablesResult.IsError)
	tablesBody := decodeResult(t, []byte(tablesResult.Content[0].Text))
	_, ok = tablesBody["tables"].([]any)
	require.True(t, ok)

	describeResult, err := NewDescribeTable(d).Execute(ctx, json.RawMessage(`{"table":"widgets"}`))
	require.NoError(t, err)
	require.False(t, describeResult.IsError)
	describeBody := decodeResult(t, []byte(describeResult.Content[0].Text))
	columns, ok := describeBody["columns"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, columns)

	describeMissingTable, err := NewDescribeTable(d).Execute(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, describeMissingTable.IsError, "describe_table without a table name must error")

	statsResult, err := NewGetUsageStats(d).Execute(ctx, nil)
	require.NoError(t, err)
	require.False(t, statsResult.IsError)
	statsBody := decodeResult(t, []byte(statsResult.Content[0].Text))
	_, ok = statsBody["tables"].([]any)
	require.True(t, ok)
}

func TestQueryToolReturnsRowsForASelectStatement(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()
	_, err := d.Execute(ctx, `CREATE TABLE main.widgets (id INTEGER)`)
	require.NoError(t, err)
	_, err = d.Execute(ctx, `INSERT INTO main.widgets VALUES (1), (2), (3)`)
	require.NoError(t, err)

	query := NewQuery(d)
	params, _ := json.Marshal(map[string]any{"sql": `SELECT * FROM main.widgets ORDER BY id`})
	result, err := query.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)
	body := decodeResult(t, []byte(result.Content[0].Text))
	rows, ok := body["rows"].([]any)
	require.True(t, ok, "a SELECT through the query tool must return its rows, not just rows_affected")
	assert.Len(t, rows, 3)

	missingSQL, err := query.Execute(ctx, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, missingSQL.IsError, "query without sql must error")
}

func TestQueryToolReportsRowsAffectedForDDLWithNoResultSet(t *testing.T) {
	d := newTestDispatcher(t, "default-agent")
	ctx := context.Background()

	query := NewQuery(d)
	params, _ := json.Marshal(map[string]any{"sql": `CREATE TABLE main.widgets (id INTEGER)`})
	result, err := query.Execute(ctx, params)
	require.NoError(t, err)
	require.False(t, result.IsError)
	body := decodeResult(t, []byte(result.Content[0].Text))
	assert.Contains(t, body, "rows_affected", "a DDL statement with no result set must fall back to rows_affected")

	tables, err := d.ListTables(ctx, "main")
	require.NoError(t, err)
	require.Len(t, tables, 1, "the DDL must have actually run exactly once")
}

func TestDomainToolsReportUnavailableOnRemoteDispatcher(t *testing.T) {
	d := dispatcher.NewRemote(nil)
	ctx := context.Background()

	storeResult, err := NewStoreMemory(d).Execute(ctx, json.RawMessage(`{"content":"x"}`))
	require.NoError(t, err)
	assert.True(t, storeResult.IsError)

	triggerResult, err := NewRegisterTrigger(d).Execute(ctx, json.RawMessage(`{"name":"n","concept":"c"}`))
	require.NoError(t, err)
	assert.True(t, triggerResult.IsError)

	branchResult, err := NewBranchList(d).Execute(ctx, nil)
	require.NoError(t, err)
	assert.True(t, branchResult.IsError)

	cotResult, err := NewLogReasoningStep(d).Execute(ctx, json.RawMessage(`{"session_id":"s","step_type":"t","content":"c"}`))
	require.NoError(t, err)
	assert.True(t, cotResult.IsError)
}

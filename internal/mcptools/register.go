package mcptools

import (
	"github.com/hatidata/hati-mcp/internal/dispatcher"
	"github.com/hatidata/hati-mcp/internal/maintenance"
	"github.com/hatidata/hati-mcp/internal/mcp"
)

// RegisterAll wires the full 23-tool catalog into reg. Domain tools
// (memory/cot/trigger/branch) self-report ErrDomainUnavailable at call time
// when d is running against a remote-only backend; they are still listed so
// tools/list is stable across backend choice. sweeper may be nil when TTL
// sweeping is disabled.
func RegisterAll(reg *mcp.Registry, d *dispatcher.Dispatcher, sweeper *maintenance.BranchSweeper) {
	reg.Register(NewListSchemas(d))
	reg.Register(NewListTables(d))
	reg.Register(NewDescribeTable(d))
	reg.Register(NewGetUsageStats(d))
	reg.Register(NewQuery(d))
	reg.Register(NewReadQuery(d))

	reg.Register(NewStoreMemory(d))
	reg.Register(NewSearchMemory(d))
	reg.Register(NewDeleteMemory(d))
	reg.Register(NewGetState(d))
	reg.Register(NewSetState(d))

	reg.Register(NewLogReasoningStep(d))
	reg.Register(NewReplaySession(d))
	reg.Register(NewListSessions(d))

	reg.Register(NewRegisterTrigger(d))
	reg.Register(NewListTriggers(d))
	reg.Register(NewDeleteTrigger(d))
	reg.Register(NewTestTrigger(d))

	reg.Register(NewBranchCreate(d, sweeper))
	reg.Register(NewBranchQuery(d))
	reg.Register(NewBranchMerge(d))
	reg.Register(NewBranchDiscard(d))
	reg.Register(NewBranchList(d))
}

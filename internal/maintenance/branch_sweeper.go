package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hatidata/hati-mcp/internal/branch"
)

// BranchSweeper discards branches past their TTL. TTL tracking is in-memory
// only and populated by Track calls from the branch_create tool handler —
// branch schemas carry no side metadata of their own (spec.md §3), so a
// branch's deadline does not survive a process restart and a branch with no
// observed Track call is never swept (SPEC_FULL.md §4.8/§9, resolving the
// ttl_seconds Open Question as host-optional and off by default).
type BranchSweeper struct {
	mgr    *branch.Manager
	logger *slog.Logger

	mu       sync.Mutex
	deadline map[string]time.Time
}

// NewBranchSweeper creates a sweeper over mgr.
func NewBranchSweeper(mgr *branch.Manager, logger *slog.Logger) *BranchSweeper {
	return &BranchSweeper{
		mgr:      mgr,
		logger:   logger,
		deadline: make(map[string]time.Time),
	}
}

// Track records that branchID should be discarded after ttlSeconds.
func (s *BranchSweeper) Track(branchID string, ttlSeconds int) {
	if ttlSeconds <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline[branchID] = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
}

// Name satisfies maintenance.Job.
func (s *BranchSweeper) Name() string { return "branch-ttl-sweep" }

// Run discards every tracked branch whose deadline has passed.
func (s *BranchSweeper) Run(ctx context.Context) error {
	now := time.Now()

	s.mu.Lock()
	var expired []string
	for id, dl := range s.deadline {
		if now.After(dl) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		exists, err := s.mgr.Exists(ctx, id)
		if err != nil {
			s.logger.Warn("branch sweep: checking existence failed", "branch_id", id, "error", err)
			continue
		}
		if exists {
			if _, err := s.mgr.Discard(ctx, id); err != nil {
				s.logger.Warn("branch sweep: discard failed", "branch_id", id, "error", err)
				continue
			}
			s.logger.Info("branch sweep: discarded expired branch", "branch_id", id)
		}
		s.mu.Lock()
		delete(s.deadline, id)
		s.mu.Unlock()
	}
	return nil
}

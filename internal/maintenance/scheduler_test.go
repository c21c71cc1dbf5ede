package maintenance

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int64
}

func (j *countingJob) Name() string { return "counting-job" }
func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func TestSchedulerRunsJobOnCadence(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewScheduler(logger)
	job := &countingJob{}

	// "@every 1s" is a descriptor the default cron parser accepts besides
	// five-field expressions; a test timeout of a few seconds gives it room
	// to fire at least once.
	require.NoError(t, sched.AddJob(context.Background(), job, "@every 1s"))

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	defer cancel()

	assert.Eventually(t, func() bool {
		return job.runs.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)

	sched.Stop()
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/metrics"
)

// RunSweeper fails test runs that have been running since before cutoff.
type RunSweeper interface {
	FailStaleRuns(ctx context.Context, cutoff time.Time, reason string) (int, error)
}

// StaleRunTask marks test runs that never reported back as failed.
type StaleRunTask struct {
	sweeper    RunSweeper
	staleAfter time.Duration
	log        *slog.Logger
	now        func() time.Time
}

func NewStaleRunTask(sweeper RunSweeper, staleAfter time.Duration, log *slog.Logger) *StaleRunTask {
	return &StaleRunTask{
		sweeper:    sweeper,
		staleAfter: staleAfter,
		log:        log.With(logger.Scope("stale-runs")),
		now:        time.Now,
	}
}

// Run executes the sweep once.
func (t *StaleRunTask) Run(ctx context.Context) error {
	cutoff := t.now().Add(-t.staleAfter)
	reason := fmt.Sprintf("no result received within %s", t.staleAfter)

	n, err := t.sweeper.FailStaleRuns(ctx, cutoff, reason)
	if err != nil {
		return fmt.Errorf("sweep stale runs: %w", err)
	}
	if n > 0 {
		metrics.StaleRunsSwept.Add(float64(n))
		t.log.Info("marked stale test runs failed", slog.Int("count", n))
	}
	return nil
}

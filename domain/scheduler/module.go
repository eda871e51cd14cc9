package scheduler

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/logger"
)

// Module provides scheduled task functionality
var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams contains dependencies for creating scheduled tasks
type TaskParams struct {
	fx.In
	Scheduler *Scheduler
	Sweeper   RunSweeper
	Log       *slog.Logger
	Cfg       *config.Config
}

// RegisterTasks registers all scheduled tasks
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Scheduler.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	stale := NewStaleRunTask(p.Sweeper, p.Cfg.Automation.StaleAfter, p.Log)
	if err := p.Scheduler.AddIntervalTask("stale_test_runs", p.Cfg.Scheduler.StaleRunSweepEvery, stale.Run); err != nil {
		p.Log.Error("failed to register stale run task", logger.Error(err))
	}

	p.Log.Info("registered scheduled tasks", slog.Any("tasks", p.Scheduler.ListTasks()))
	return nil
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *config.Config) {
	if !cfg.Scheduler.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: scheduler.Start,
		OnStop:  scheduler.Stop,
	})
}

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/pkg/logger"
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
	DB        bun.IDB
	Loader    *bulkload.Loader
	Log       *slog.Logger
	Cfg       *config.Config
}

// RegisterTasks registers all scheduled tasks
func RegisterTasks(p TaskParams) error {
	cfg := p.Cfg.Scheduler
	if !cfg.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	sweep := NewArtifactSweepTask(p.Loader.Dir(), p.Cfg.Transfer.ArtifactTTL, p.Log)
	if err := schedule(p.Scheduler, "artifact_sweep", cfg.SweepSchedule, cfg.SweepInterval, sweep.Run); err != nil {
		p.Log.Error("failed to register artifact sweep task", logger.Error(err))
	}

	if cfg.AnalyzeSchedule != "" || cfg.AnalyzeInterval > 0 {
		analyze := NewAnalyzeTablesTask(p.DB, p.Log)
		if err := schedule(p.Scheduler, "analyze_tables", cfg.AnalyzeSchedule, cfg.AnalyzeInterval, analyze.Run); err != nil {
			p.Log.Error("failed to register analyze task", logger.Error(err))
		}
	}

	p.Log.Info("registered scheduled tasks",
		slog.Any("tasks", p.Scheduler.ListTasks()))
	return nil
}

// schedule prefers the cron expression when one is configured.
func schedule(s *Scheduler, name, cronExpr string, interval time.Duration, task TaskFunc) error {
	if cronExpr != "" {
		return s.AddCronTask(name, cronExpr, task)
	}
	return s.AddIntervalTask(name, interval, task)
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *config.Config) {
	if !cfg.Scheduler.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}

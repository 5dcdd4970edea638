package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/soldey/graph-api/pkg/logger"
)

// taskTimeout bounds a single task run.
const taskTimeout = 10 * time.Minute

var (
	taskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_task_runs_total",
		Help: "Scheduled task runs by outcome (ok, failed)",
	}, []string{"task", "outcome"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_task_duration_seconds",
		Help:    "Wall time of scheduled task runs",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"task"})
)

// TaskFunc is the function signature for scheduled tasks
type TaskFunc func(ctx context.Context) error

// Scheduler runs named maintenance tasks. A run still in progress when its
// next tick fires makes that tick a no-op.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger

	mu      sync.RWMutex
	tasks   map[string]cron.EntryID
	running bool
}

// NewScheduler creates a scheduler; cron expressions carry a seconds field.
func NewScheduler(log *slog.Logger) *Scheduler {
	log = log.With(logger.Scope("scheduler"))
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:   log,
		tasks: make(map[string]cron.EntryID),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", slog.Any("tasks", s.names()))
	return nil
}

// Stop waits for in-flight runs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out with tasks still running")
	}
	s.running = false
	return nil
}

// AddCronTask schedules task on a six-field cron expression
// ("second minute hour day-of-month month day-of-week"). A task already
// registered under name is replaced.
func (s *Scheduler) AddCronTask(name, spec string, task TaskFunc) error {
	return s.add(name, spec, task)
}

// AddIntervalTask schedules task every interval, replacing any task already
// registered under name.
func (s *Scheduler) AddIntervalTask(name string, interval time.Duration, task TaskFunc) error {
	return s.add(name, "@every "+interval.String(), task)
}

func (s *Scheduler) add(name, spec string, task TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() { s.runTask(name, task) })
	if err != nil {
		return err
	}
	if old, ok := s.tasks[name]; ok {
		s.cron.Remove(old)
	}
	s.tasks[name] = id
	s.log.Info("task scheduled", slog.String("name", name), slog.String("spec", spec))
	return nil
}

func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.tasks[name]; ok {
		s.cron.Remove(id)
		delete(s.tasks, name)
		s.log.Info("task removed", slog.String("name", name))
	}
}

func (s *Scheduler) runTask(name string, task TaskFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	start := time.Now()
	err := task(ctx)
	elapsed := time.Since(start)
	taskDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		taskRuns.WithLabelValues(name, "failed").Inc()
		s.log.Error("scheduled task failed",
			slog.String("name", name),
			slog.Duration("duration", elapsed),
			logger.Error(err))
		return
	}
	taskRuns.WithLabelValues(name, "ok").Inc()
	s.log.Debug("scheduled task completed",
		slog.String("name", name),
		slog.Duration("duration", elapsed))
}

// ListTasks returns the registered task names in order.
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names()
}

func (s *Scheduler) names() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TaskInfo describes one scheduled task.
type TaskInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run,omitempty"`
}

// GetTaskInfo returns run times of every task ordered by name. NextRun is
// zero until the scheduler starts.
func (s *Scheduler) GetTaskInfo() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := make([]TaskInfo, 0, len(s.tasks))
	for _, name := range s.names() {
		entry := s.cron.Entry(s.tasks[name])
		info = append(info, TaskInfo{Name: name, NextRun: entry.Next, PrevRun: entry.Prev})
	}
	return info
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// cronLogger routes cron's own messages (skipped ticks, recovered panics)
// to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, logger.Error(err))...)
}

package scheduler

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/pkg/logger"
)

// ArtifactSweepTask removes transfer artifacts left behind by loads that
// never reached their cleanup, such as a process killed mid-transfer.
type ArtifactSweepTask struct {
	dir string
	ttl time.Duration
	log *slog.Logger
	now func() time.Time
}

func NewArtifactSweepTask(dir string, ttl time.Duration, log *slog.Logger) *ArtifactSweepTask {
	return &ArtifactSweepTask{
		dir: dir,
		ttl: ttl,
		log: log.With(logger.Scope("scheduler.artifact_sweep")),
		now: time.Now,
	}
}

// Run deletes artifacts older than the TTL. Younger ones may belong to a
// transfer still in progress.
func (t *ArtifactSweepTask) Run(ctx context.Context) error {
	paths, err := filepath.Glob(filepath.Join(t.dir, bulkload.ArtifactPattern))
	if err != nil {
		return err
	}

	cutoff := t.now().Add(-t.ttl)
	removed := 0
	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		t.log.Info("removed stale transfer artifacts",
			slog.Int("count", removed),
			slog.String("dir", t.dir))
	}
	return errors.Join(errs...)
}

// AnalyzeTablesTask refreshes planner statistics of the domain tables, which
// bulk COPY loads skew faster than autovacuum catches up.
type AnalyzeTablesTask struct {
	db     bun.IDB
	tables []string
	log    *slog.Logger
}

// DomainTables are the tables AnalyzeTablesTask refreshes.
var DomainTables = []string{"nodes", "edges", "graph_edges"}

func NewAnalyzeTablesTask(db bun.IDB, log *slog.Logger) *AnalyzeTablesTask {
	return &AnalyzeTablesTask{
		db:     db,
		tables: DomainTables,
		log:    log.With(logger.Scope("scheduler.analyze")),
	}
}

// Run executes ANALYZE on every table.
func (t *AnalyzeTablesTask) Run(ctx context.Context) error {
	start := time.Now()
	if _, err := t.db.ExecContext(ctx, analyzeSQL(t.tables)); err != nil {
		t.log.Error("failed to analyze tables", logger.Error(err))
		return err
	}
	t.log.Debug("tables analyzed",
		slog.Any("tables", t.tables),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func analyzeSQL(tables []string) string {
	return "ANALYZE " + strings.Join(tables, ", ")
}

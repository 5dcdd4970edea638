package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/soldey/graph-api/domain/scheduler"
	"github.com/soldey/graph-api/pkg/logger"
)

// MetricsHandler reports table and scheduler state.
type MetricsHandler struct {
	db        bun.IDB
	scheduler *scheduler.Scheduler
	log       *slog.Logger
}

func NewMetricsHandler(db bun.IDB, s *scheduler.Scheduler, log *slog.Logger) *MetricsHandler {
	return &MetricsHandler{
		db:        db,
		scheduler: s,
		log:       log.With(logger.Scope("health.metrics")),
	}
}

// TableMetrics holds planner statistics of one domain table.
type TableMetrics struct {
	Table        string     `json:"table" bun:"relname"`
	LiveRows     int64      `json:"live_rows" bun:"n_live_tup"`
	DeadRows     int64      `json:"dead_rows" bun:"n_dead_tup"`
	Size         string     `json:"size" bun:"size"`
	LastAnalyzed *time.Time `json:"last_analyzed,omitempty" bun:"last_analyzed"`
}

// AllTableMetrics contains metrics for every domain table
type AllTableMetrics struct {
	Tables    []TableMetrics `json:"tables"`
	Timestamp string         `json:"timestamp"`
}

// TableMetrics returns row estimates for the domain tables.
func (h *MetricsHandler) TableMetrics(c echo.Context) error {
	tables, err := h.tableMetrics(c.Request().Context())
	if err != nil {
		h.log.Error("failed to read table statistics", logger.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, AllTableMetrics{
		Tables:    tables,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *MetricsHandler) tableMetrics(ctx context.Context) ([]TableMetrics, error) {
	tables := make([]TableMetrics, 0, len(scheduler.DomainTables)+1)
	err := h.db.NewRaw(`
		SELECT
			s.relname,
			s.n_live_tup,
			s.n_dead_tup,
			pg_size_pretty(pg_total_relation_size(s.relid)) AS size,
			GREATEST(s.last_analyze, s.last_autoanalyze) AS last_analyzed
		FROM pg_stat_user_tables AS s
		WHERE s.schemaname = current_schema() AND s.relname IN (?)
		ORDER BY s.relname`,
		bun.In(append([]string{"graphs"}, scheduler.DomainTables...)),
	).Scan(ctx, &tables)
	return tables, err
}

// SchedulerMetrics lists the scheduled tasks and their next runs.
func (h *MetricsHandler) SchedulerMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"running": h.scheduler.IsRunning(),
		"tasks":   h.scheduler.GetTaskInfo(),
	})
}

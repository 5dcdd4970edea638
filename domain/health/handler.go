package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/internal/version"
)

const probeTimeout = 5 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Pool is the part of the connection pool the probes need.
type Pool interface {
	Ping(ctx context.Context) error
	Stat() *pgxpool.Stat
}

// Handler serves liveness, readiness and debug probes.
type Handler struct {
	pool        Pool
	transferDir string
	cfg         *config.Config
	startAt     time.Time
}

func NewHandler(pool *pgxpool.Pool, loader *bulkload.Loader, cfg *config.Config) *Handler {
	return newHandler(pool, loader.Dir(), cfg)
}

func newHandler(pool Pool, transferDir string, cfg *config.Config) *Handler {
	return &Handler{
		pool:        pool,
		transferDir: transferDir,
		cfg:         cfg,
		startAt:     time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func checkOf(err error) Check {
	if err != nil {
		return Check{Status: statusUnhealthy, Message: err.Error()}
	}
	return Check{Status: statusHealthy}
}

// checks runs every dependency probe. Bulk loads need both the database and
// a usable transfer directory.
func (h *Handler) checks(ctx context.Context) (map[string]Check, bool) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	checks := map[string]Check{
		"database":     checkOf(h.pool.Ping(ctx)),
		"transfer_dir": checkOf(dirUsable(h.transferDir)),
	}
	for _, c := range checks {
		if c.Status != statusHealthy {
			return checks, false
		}
	}
	return checks, true
}

func dirUsable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Health reports every check with the build version.
func (h *Handler) Health(c echo.Context) error {
	checks, ok := h.checks(c.Request().Context())

	response := HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Version:   version.Version,
		Checks:    checks,
	}
	statusCode := http.StatusOK
	if !ok {
		response.Status = statusUnhealthy
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, response)
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready is the readiness probe.
func (h *Handler) Ready(c echo.Context) error {
	if _, ok := h.checks(c.Request().Context()); !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "a dependency check failed, see /health",
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ready"})
}

// Debug returns runtime and pool details; hidden in production.
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.Environment == "production" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stat := h.pool.Stat()

	return c.JSON(http.StatusOK, map[string]any{
		"environment":  h.cfg.Environment,
		"version":      version.Info(),
		"go_version":   runtime.Version(),
		"goroutines":   runtime.NumGoroutine(),
		"transfer_dir": h.transferDir,
		"memory": map[string]any{
			"heap_alloc_mb": mem.HeapAlloc / 1024 / 1024,
			"sys_mb":        mem.Sys / 1024 / 1024,
			"num_gc":        mem.NumGC,
		},
		"pool": map[string]any{
			"total":             stat.TotalConns(),
			"idle":              stat.IdleConns(),
			"acquired":          stat.AcquiredConns(),
			"max":               stat.MaxConns(),
			"empty_acquires":    stat.EmptyAcquireCount(),
			"canceled_acquires": stat.CanceledAcquireCount(),
		},
	})
}

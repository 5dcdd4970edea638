package health

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/internal/server"
)

// RegisterRoutes registers probes at the root and metrics under the API prefix.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, h *Handler, m *MetricsHandler) {
	e.GET("/health", h.Health)
	e.GET("/healthz", h.Healthz)
	e.GET("/ready", h.Ready)
	e.GET("/debug", h.Debug)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := server.API(e, cfg)
	g.GET("/health", h.Health)
	g.GET("/metrics/tables", m.TableMetrics)
	g.GET("/metrics/scheduler", m.SchedulerMetrics)
}

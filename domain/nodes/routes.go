package nodes

import (
	"github.com/labstack/echo/v4"

	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/internal/server"
)

// RegisterRoutes mounts the node endpoints under the API prefix.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, h *Handler) {
	g := server.API(e, cfg).Group("/node")
	g.POST("/create", h.Create)
	g.GET("/select-one/:id", h.SelectOne)
	g.POST("/select-many", h.SelectMany)
	g.DELETE("/delete/:id", h.Delete)
}

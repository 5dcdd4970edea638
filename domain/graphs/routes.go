package graphs

import (
	"github.com/labstack/echo/v4"

	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/internal/server"
)

// RegisterRoutes mounts the graph endpoints under the API prefix.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, h *Handler) {
	g := server.API(e, cfg).Group("/graph")
	g.POST("/create", h.Create)
	g.GET("/select-one/:id", h.SelectOne)
	g.GET("/select-many", h.SelectMany)
	g.POST("/add-edge", h.AddEdge)
	g.POST("/add-edge-bulk", h.AddEdgeBulk)
	g.POST("/build", h.Build)
	g.DELETE("/delete/:id", h.Delete)
	g.DELETE("/delete-relationship/:id", h.DeleteRelationship)
}

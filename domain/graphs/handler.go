package graphs

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/soldey/graph-api/pkg/apperror"
)

// Handler handles HTTP requests for graphs.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create creates a graph.
// POST /api/v1/graph/create
func (h *Handler) Create(c echo.Context) error {
	var req CreateGraphRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	g, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// SelectOne returns a graph by id or name.
// GET /api/v1/graph/select-one/:id
func (h *Handler) SelectOne(c echo.Context) error {
	key := strings.TrimSpace(c.Param("id"))
	if key == "" {
		return apperror.NewBadRequest("graph id or name is required")
	}
	g, err := h.svc.Get(c.Request().Context(), key)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, g)
}

// SelectMany lists graphs, optionally of one type.
// GET /api/v1/graph/select-many?type=ROAD
func (h *Handler) SelectMany(c echo.Context) error {
	req := SelectGraphsRequest{Type: GraphType(c.QueryParam("type"))}
	if err := req.Validate(); err != nil {
		return err
	}
	out, err := h.svc.List(c.Request().Context(), req.Type)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// AddEdge creates or reuses an edge and links it into a graph.
// POST /api/v1/graph/add-edge
func (h *Handler) AddEdge(c echo.Context) error {
	var req AddEdgeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	link, err := h.svc.AddEdge(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, link)
}

// AddEdgeBulk uploads nodes and edges and links the edges into a graph.
// POST /api/v1/graph/add-edge-bulk?graph=1
func (h *Handler) AddEdgeBulk(c echo.Context) error {
	graphID, err := strconv.ParseInt(c.QueryParam("graph"), 10, 64)
	if err != nil || graphID <= 0 {
		return apperror.NewBadRequest("graph must be a positive integer")
	}
	var req UploadRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	summary, err := h.svc.BulkUpload(c.Request().Context(), graphID, &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

// Build assembles a directed multigraph and returns it as node-link JSON.
// POST /api/v1/graph/build
func (h *Handler) Build(c echo.Context) error {
	var req BuildRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	mg, err := h.svc.Build(c.Request().Context(), req.Selector())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, BuildResponse{
		Attributes: mg.Attrs,
		Graph:      mg.Export(),
	})
}

// Delete removes a graph and its edge links. Edges stay.
// DELETE /api/v1/graph/delete/:id
func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// DeleteRelationship removes one edge link.
// DELETE /api/v1/graph/delete-relationship/:id
func (h *Handler) DeleteRelationship(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRelationship(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("id must be a positive integer")
	}
	return id, nil
}

package edges

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/soldey/graph-api/pkg/apperror"
)

// Handler handles HTTP requests for edges.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create returns the edge matching the body, creating it and any nested
// endpoint nodes when missing.
// POST /api/v1/edge/create
func (h *Handler) Create(c echo.Context) error {
	var req CreateEdgeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	e, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// CreateBulk loads a list of edges through COPY.
// POST /api/v1/edge/create-bulk
func (h *Handler) CreateBulk(c echo.Context) error {
	var req CreateEdgesRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	for i := range req.DTOs {
		if err := req.DTOs[i].Validate(); err != nil {
			return err
		}
	}
	if len(req.DTOs) == 0 {
		return c.JSON(http.StatusOK, []*Edge{})
	}

	out, err := h.svc.CreateBulk(c.Request().Context(), req.DTOs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// SelectOne returns an edge by id.
// GET /api/v1/edge/select-one/:id
func (h *Handler) SelectOne(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

// SelectMany filters edges by graph, type, level and area.
// POST /api/v1/edge/select-many
func (h *Handler) SelectMany(c echo.Context) error {
	var req SelectEdgesRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	p := ListParams{GraphID: req.Graph, Area: req.Geometry}
	if req.Type != "" {
		p.Types = []EdgeType{req.Type}
	}
	if req.Level != "" {
		p.Levels = []Level{req.Level}
	}
	out, err := h.svc.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	if out == nil {
		out = []*Edge{}
	}
	return c.JSON(http.StatusOK, out)
}

// Delete removes an edge and its graph memberships.
// DELETE /api/v1/edge/delete/:id
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

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.NewBadRequest("id must be a positive integer")
	}
	return id, nil
}

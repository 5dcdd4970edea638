package nodes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/soldey/graph-api/pkg/apperror"
)

// Handler handles HTTP requests for nodes.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create returns the node matching the body, creating it when missing.
// POST /api/v1/node/create
func (h *Handler) Create(c echo.Context) error {
	var req CreateNodeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	n, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// SelectOne returns a node by id.
// GET /api/v1/node/select-one/:id
func (h *Handler) SelectOne(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// SelectMany filters nodes by graph, type and area.
// POST /api/v1/node/select-many
func (h *Handler) SelectMany(c echo.Context) error {
	var req SelectNodesRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	out, err := h.svc.List(c.Request().Context(), ListParams{
		GraphID: req.Graph,
		Types:   req.Types,
		Area:    req.Geometry,
	})
	if err != nil {
		return err
	}
	if out == nil {
		out = []*Node{}
	}
	return c.JSON(http.StatusOK, out)
}

// Delete removes a node and, through cascade, its edges.
// DELETE /api/v1/node/delete/:id
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

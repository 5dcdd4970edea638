package graphs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/soldey/graph-api/domain/edges"
	"github.com/soldey/graph-api/domain/nodes"
	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
)

// NameMaxLen is the length of graphs.name.
const NameMaxLen = 100

// CreateGraphRequest is the body of POST /graph/create.
type CreateGraphRequest struct {
	Name       string         `json:"name"`
	Type       GraphType      `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Validate applies defaults and checks the request.
func (r *CreateGraphRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Type == "" {
		r.Type = TypeRoad
	}
	switch {
	case r.Name == "":
		return apperror.ErrValidation.WithMessage("name is required")
	case utf8.RuneCountInString(r.Name) > NameMaxLen:
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("name must be at most %d characters", NameMaxLen))
	case isNumeric(r.Name):
		return apperror.ErrInvalidGraphName
	case !r.Type.Valid():
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown graph type %q", r.Type))
	}
	return nil
}

// isNumeric reports whether s is made of decimal digits only. Such names
// would be ambiguous with ids in select-one.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SelectGraphsRequest filters GET /graph/select-many.
type SelectGraphsRequest struct {
	Type GraphType `query:"type" json:"type"`
}

func (r *SelectGraphsRequest) Validate() error {
	if r.Type != "" && !r.Type.Valid() {
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown graph type %q", r.Type))
	}
	return nil
}

// AddEdgeRequest is the body of POST /graph/add-edge: an edge plus the
// graph it joins.
type AddEdgeRequest struct {
	edges.CreateEdgeRequest
}

func (r *AddEdgeRequest) Validate() error {
	if r.Graph == nil || *r.Graph <= 0 {
		return apperror.ErrValidation.WithMessage("graph is required")
	}
	return r.CreateEdgeRequest.Validate()
}

// UploadEdge is an edge of a bulk upload. U and V index the upload's node
// list.
type UploadEdge struct {
	U int `json:"u"`
	V int `json:"v"`
	edges.Attributes
}

// UploadRequest is the body of POST /graph/add-edge-bulk.
type UploadRequest struct {
	Nodes []nodes.CreateNodeRequest `json:"nodes"`
	Edges []UploadEdge              `json:"edges"`
}

// Validate checks every row and that each endpoint index refers to a node
// of the request.
func (r *UploadRequest) Validate() error {
	for i := range r.Nodes {
		if err := r.Nodes[i].Validate(); err != nil {
			return prefixed(err, "nodes["+strconv.Itoa(i)+"]")
		}
	}
	for i := range r.Edges {
		e := &r.Edges[i]
		at := "edges[" + strconv.Itoa(i) + "]"
		if e.U < 0 || e.U >= len(r.Nodes) || e.V < 0 || e.V >= len(r.Nodes) {
			return apperror.NewBadRequest(fmt.Sprintf("%s: endpoint index out of range [0, %d)", at, len(r.Nodes)))
		}
		if err := e.Attributes.Validate(); err != nil {
			return prefixed(err, at)
		}
	}
	return nil
}

func prefixed(err error, at string) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.WithMessage(at + ": " + appErr.Message)
	}
	return err
}

// BuildRequest selects what POST /graph/build assembles.
type BuildRequest struct {
	IDOrName string            `json:"id_or_name"`
	Geometry geometry.Geometry `json:"geometry"`
	Type     Mode              `json:"type"`
}

func (r *BuildRequest) Validate() error {
	if r.Type == "" {
		r.Type = ModeWalk
	}
	if !r.Type.Valid() {
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown build mode %q", r.Type))
	}
	if !r.Geometry.IsNull() {
		if err := r.Geometry.MustHaveType("Polygon", "MultiPolygon"); err != nil {
			return apperror.ErrValidation.WithMessage("geometry: " + err.Error())
		}
	}
	return nil
}

// Selector identifies what to assemble.
func (r *BuildRequest) Selector() Selector {
	return Selector{IDOrName: strings.TrimSpace(r.IDOrName), Area: r.Geometry, Mode: r.Type}
}

// UploadSummary reports the rows written by each stage of a bulk upload.
type UploadSummary struct {
	Nodes         int `json:"nodes"`
	Edges         int `json:"edges"`
	Relationships int `json:"relationships"`
	// Dropped counts node and edge rows that hit a conflict whose persisted
	// row could not be found.
	Dropped int `json:"dropped"`
}

// BuildResponse is the body returned by POST /graph/build.
type BuildResponse struct {
	Attributes map[string]any `json:"attributes"`
	Graph      any            `json:"graph"`
}

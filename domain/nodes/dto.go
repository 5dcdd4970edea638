package nodes

import (
	"encoding/json"
	"fmt"

	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
)

// CreateNodeRequest is the body of POST /node/create.
type CreateNodeRequest struct {
	Type       NodeType          `json:"type"`
	Point      geometry.Geometry `json:"point"`
	Route      string            `json:"route"`
	Properties map[string]any    `json:"properties"`
}

// Validate applies defaults and checks the request.
func (r *CreateNodeRequest) Validate() error {
	if r.Type == "" {
		r.Type = TypeCrossroad
	}
	if !r.Type.Valid() {
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown node type %q", r.Type))
	}
	if err := r.Point.MustHaveType("Point"); err != nil {
		return apperror.ErrValidation.WithMessage("point: " + err.Error())
	}
	return nil
}

// Record converts the request into a normalized record.
func (r *CreateNodeRequest) Record() Record {
	return Record{
		Type:       r.Type,
		Point:      r.Point,
		Route:      NormalizeRoute(r.Route),
		Properties: r.Properties,
	}
}

// TypeList accepts either a single type or an array of types.
type TypeList []NodeType

func (l *TypeList) UnmarshalJSON(data []byte) error {
	var one NodeType
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
		} else {
			*l = TypeList{one}
		}
		return nil
	}
	var many []NodeType
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// SelectNodesRequest filters POST /node/select-many.
type SelectNodesRequest struct {
	Graph    *int64            `json:"graph"`
	Types    TypeList          `json:"type"`
	Geometry geometry.Geometry `json:"geometry"`
}

func (r *SelectNodesRequest) Validate() error {
	for _, t := range r.Types {
		if !t.Valid() {
			return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown node type %q", t))
		}
	}
	return nil
}

// ListParams are the repository filters for nodes.
type ListParams struct {
	GraphID *int64
	Types   []NodeType
	// EdgeTypes keeps nodes touched by edges of these types, inside GraphID
	// when it is set.
	EdgeTypes []string
	// Area keeps nodes covered by the geometry.
	Area geometry.Geometry
}

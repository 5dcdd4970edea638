package edges

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soldey/graph-api/domain/nodes"
	"github.com/soldey/graph-api/pkg/apperror"
	"github.com/soldey/graph-api/pkg/geometry"
)

// NodeRef is either an existing node id or a node to create.
type NodeRef struct {
	ID   int64
	Node *nodes.CreateNodeRequest
}

func (r *NodeRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var n nodes.CreateNodeRequest
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		r.Node = &n
		return nil
	}
	return json.Unmarshal(data, &r.ID)
}

func (r NodeRef) MarshalJSON() ([]byte, error) {
	if r.Node != nil {
		return json.Marshal(r.Node)
	}
	return json.Marshal(r.ID)
}

func (r *NodeRef) validate(field string) error {
	if r.Node != nil {
		if err := r.Node.Validate(); err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) {
				return appErr.WithMessage(field + ": " + appErr.Message)
			}
			return err
		}
		return nil
	}
	if r.ID <= 0 {
		return apperror.ErrValidation.WithMessage(field + " must be a node id or a node")
	}
	return nil
}

// Attributes are the edge columns besides its endpoints.
type Attributes struct {
	Type       EdgeType          `json:"type"`
	Weight     float64           `json:"weight"`
	WeightType WeightType        `json:"weight_type"`
	Level      Level             `json:"level"`
	Speed      int               `json:"speed"`
	Route      string            `json:"route"`
	Properties map[string]any    `json:"properties"`
	Geometry   geometry.Geometry `json:"geometry"`
}

// Validate applies defaults and checks the attributes.
func (a *Attributes) Validate() error {
	if a.Type == "" {
		a.Type = TypeDrive
	}
	if a.WeightType == "" {
		a.WeightType = WeightDistance
	}
	if a.Level == "" {
		a.Level = LevelNone
	}
	switch {
	case !a.Type.Valid():
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown edge type %q", a.Type))
	case !a.WeightType.Valid():
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown weight type %q", a.WeightType))
	case !a.Level.Valid():
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown edge level %q", a.Level))
	case a.Speed < 0:
		return apperror.ErrValidation.WithMessage("speed must not be negative")
	}
	if !a.Geometry.IsNull() {
		if err := a.Geometry.MustHaveType(GeometryTypes...); err != nil {
			return apperror.ErrValidation.WithMessage("geometry: " + err.Error())
		}
	}
	return nil
}

// Record converts the attributes with resolved endpoint ids.
func (a *Attributes) Record(u, v int64) Record {
	return Record{
		U:          u,
		V:          v,
		Type:       a.Type,
		Weight:     a.Weight,
		WeightType: a.WeightType,
		Level:      a.Level,
		Speed:      a.Speed,
		Route:      nodes.NormalizeRoute(a.Route),
		Geometry:   a.Geometry,
		Properties: a.Properties,
	}
}

// CreateEdgeRequest is the body of POST /edge/create.
type CreateEdgeRequest struct {
	U     NodeRef `json:"u"`
	V     NodeRef `json:"v"`
	Graph *int64  `json:"graph,omitempty"`
	Attributes
}

// Validate applies defaults and checks the request.
func (r *CreateEdgeRequest) Validate() error {
	if err := r.U.validate("u"); err != nil {
		return err
	}
	if err := r.V.validate("v"); err != nil {
		return err
	}
	return r.Attributes.Validate()
}

// CreateEdgesRequest is the body of POST /edge/create-bulk.
type CreateEdgesRequest struct {
	DTOs []CreateEdgeRequest `json:"dtos"`
}

// SelectEdgesRequest filters POST /edge/select-many.
type SelectEdgesRequest struct {
	Graph    *int64            `json:"graph"`
	Type     EdgeType          `json:"type"`
	Level    Level             `json:"level"`
	Geometry geometry.Geometry `json:"geometry"`
}

func (r *SelectEdgesRequest) Validate() error {
	if r.Type != "" && !r.Type.Valid() {
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown edge type %q", r.Type))
	}
	if r.Level != "" && !r.Level.Valid() {
		return apperror.ErrValidation.WithMessage(fmt.Sprintf("unknown edge level %q", r.Level))
	}
	return nil
}

// ListParams are the repository filters for edges.
type ListParams struct {
	GraphID *int64
	Types   []EdgeType
	Levels  []Level
	// Area keeps edges whose geometry intersects it.
	Area geometry.Geometry
}

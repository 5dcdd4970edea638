package graphs

import (
	"github.com/soldey/graph-api/domain/edges"
	"github.com/soldey/graph-api/domain/nodes"
	"github.com/soldey/graph-api/pkg/geometry"
	"github.com/soldey/graph-api/pkg/multigraph"
)

// Mode picks the edge types a build includes.
type Mode string

const (
	ModeIntermodal Mode = "intermodal"
	ModeWater      Mode = "water"
	ModeDrive      Mode = "drive"
	ModeWalk       Mode = "walk"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeIntermodal, ModeWater, ModeDrive, ModeWalk:
		return true
	}
	return false
}

// EdgeTypes returns the edge types of the mode. Unknown modes build the
// walking network.
func (m Mode) EdgeTypes() []edges.EdgeType {
	switch m {
	case ModeIntermodal:
		out := make([]edges.EdgeType, 0, len(edges.Types)-1)
		for _, t := range edges.Types {
			if t != edges.TypeWaterChannel {
				out = append(out, t)
			}
		}
		return out
	case ModeWater:
		return []edges.EdgeType{edges.TypeWaterChannel}
	case ModeDrive:
		return []edges.EdgeType{edges.TypeDrive}
	default:
		return []edges.EdgeType{edges.TypeWalk}
	}
}

// Selector identifies the rows a build reads. An empty IDOrName reads across
// all graphs.
type Selector struct {
	IDOrName string
	Area     geometry.Geometry
	Mode     Mode
}

// Assemble builds the directed multigraph of ns and es. Rows are added in
// the given order, so parallel edges get their keys in that order. Edge
// endpoints absent from ns become attribute-less nodes.
func Assemble(g *Graph, ns []*nodes.Node, es []*edges.Edge) *multigraph.Graph {
	attrs := multigraph.Attrs{"crs": geometry.CRS}
	if g != nil {
		for k, v := range g.Attrs() {
			attrs[k] = v
		}
	}

	mg := multigraph.New(attrs)
	for _, n := range ns {
		mg.AddNode(n.ID, n.Attrs())
	}
	for _, e := range es {
		mg.AddEdge(e.U, e.V, e.Attrs())
	}
	return mg
}

package graphs

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// GraphType mirrors graphtypeenum.
type GraphType string

const (
	TypeRoad  GraphType = "ROAD"
	TypeWater GraphType = "WATER"
)

func (t GraphType) Valid() bool {
	return t == TypeRoad || t == TypeWater
}

// Graph is a named set of edges.
type Graph struct {
	bun.BaseModel `bun:"table:graphs,alias:g"`

	ID         int64          `bun:"id,pk,autoincrement" json:"id"`
	Name       string         `bun:"name,notnull" json:"name"`
	Type       GraphType      `bun:"type,notnull" json:"type"`
	Properties map[string]any `bun:"properties,type:jsonb,notnull" json:"properties"`
	CreatedAt  time.Time      `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Attrs returns the graph fields copied onto an assembled multigraph.
func (g *Graph) Attrs() map[string]any {
	return map[string]any{
		"id":         g.ID,
		"name":       g.Name,
		"type":       g.Type,
		"properties": g.Properties,
	}
}

// GraphEdge links an edge into a graph.
type GraphEdge struct {
	bun.BaseModel `bun:"table:graph_edges,alias:ge"`

	ID    int64 `bun:"id,pk,autoincrement" json:"id"`
	Graph int64 `bun:"graph,notnull" json:"graph"`
	Edge  int64 `bun:"edge,notnull" json:"edge"`
}

// relationshipRecord is a graph_edges row to be written in bulk.
type relationshipRecord struct {
	Graph int64
	Edge  int64
}

func (r relationshipRecord) Key() string {
	return relationshipKey(r.Graph, r.Edge)
}

func relationshipKey(graph, edge int64) string {
	return strconv.FormatInt(graph, 10) + "|" + strconv.FormatInt(edge, 10)
}

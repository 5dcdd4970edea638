package nodes

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"

	"github.com/soldey/graph-api/pkg/geometry"
)

// NodeType mirrors the nodetypeenum database type.
type NodeType string

const (
	TypeCrossroad NodeType = "CROSSROAD"
	TypeStop      NodeType = "STOP"
	TypePlatform  NodeType = "PLATFORM"
	TypeNone      NodeType = "NONE"
)

// Types lists every node type in declaration order.
var Types = []NodeType{TypeCrossroad, TypeStop, TypePlatform, TypeNone}

func (t NodeType) Valid() bool {
	switch t {
	case TypeCrossroad, TypeStop, TypePlatform, TypeNone:
		return true
	}
	return false
}

// RouteMaxLen is the width of the route column.
const RouteMaxLen = 50

// NormalizeRoute strips double quotes and cuts the route to the column width.
func NormalizeRoute(route string) string {
	route = strings.ReplaceAll(route, `"`, "")
	if utf8.RuneCountInString(route) <= RouteMaxLen {
		return route
	}
	return string([]rune(route)[:RouteMaxLen])
}

// Node is a point of the transport network.
type Node struct {
	bun.BaseModel `bun:"table:nodes,alias:n"`

	ID         int64             `bun:"id,pk,autoincrement" json:"id"`
	Type       NodeType          `bun:"type,notnull" json:"type"`
	Point      geometry.Geometry `bun:"point,notnull" json:"point"`
	Route      string            `bun:"route,notnull" json:"route"`
	Properties map[string]any    `bun:"properties,type:jsonb,notnull" json:"properties"`
	CreatedAt  time.Time         `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Attrs returns the node fields used as multigraph attributes.
func (n *Node) Attrs() map[string]any {
	return map[string]any{
		"id":         n.ID,
		"type":       n.Type,
		"point":      n.Point,
		"route":      n.Route,
		"properties": n.Properties,
	}
}

// Record is a node to be written in bulk.
type Record struct {
	Type       NodeType
	Point      geometry.Geometry
	Route      string
	Properties map[string]any
}

// Key identifies a node by its unique columns with the point in canonical WKT.
func (r Record) Key() string {
	return dedupKey(r.Type, r.Point.WKT(), r.Route)
}

func dedupKey(t NodeType, pointWKT, route string) string {
	return string(t) + "|" + pointWKT + "|" + route
}

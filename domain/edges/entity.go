package edges

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"

	"github.com/soldey/graph-api/pkg/geometry"
)

// EdgeType mirrors edgetypeenum.
type EdgeType string

const (
	TypeDrive        EdgeType = "DRIVE"
	TypeTrain        EdgeType = "TRAIN"
	TypeBoarding     EdgeType = "BOARDING"
	TypeWalk         EdgeType = "WALK"
	TypeTram         EdgeType = "TRAM"
	TypeBus          EdgeType = "BUS"
	TypeTrolleybus   EdgeType = "TROLLEYBUS"
	TypeSubway       EdgeType = "SUBWAY"
	TypeWaterChannel EdgeType = "WATERCHANNEL"
)

// Types lists every edge type in declaration order.
var Types = []EdgeType{
	TypeDrive, TypeTrain, TypeBoarding, TypeWalk, TypeTram,
	TypeBus, TypeTrolleybus, TypeSubway, TypeWaterChannel,
}

func (t EdgeType) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// WeightType mirrors weighttypeenum.
type WeightType string

const (
	WeightDistance WeightType = "DISTANCE"
	WeightTime     WeightType = "TIME"
	WeightVolume   WeightType = "VOLUME"
)

func (w WeightType) Valid() bool {
	switch w {
	case WeightDistance, WeightTime, WeightVolume:
		return true
	}
	return false
}

// Level mirrors edgelevelenum.
type Level string

const (
	LevelNone     Level = "NONE"
	LevelLocal    Level = "LOCAL"
	LevelRegional Level = "REGIONAL"
	LevelFederal  Level = "FEDERAL"
)

func (l Level) Valid() bool {
	switch l {
	case LevelNone, LevelLocal, LevelRegional, LevelFederal:
		return true
	}
	return false
}

// GeometryTypes are the accepted edge geometry types.
var GeometryTypes = []string{"LineString", "MultiLineString", "Polygon", "MultiPolygon"}

// Edge is a directed link between two nodes.
type Edge struct {
	bun.BaseModel `bun:"table:edges,alias:e"`

	ID         int64             `bun:"id,pk,autoincrement" json:"id"`
	U          int64             `bun:"u,notnull" json:"u"`
	V          int64             `bun:"v,notnull" json:"v"`
	Type       EdgeType          `bun:"type,notnull" json:"type"`
	Weight     float64           `bun:"weight,notnull" json:"weight"`
	WeightType WeightType        `bun:"weight_type,notnull" json:"weight_type"`
	Level      Level             `bun:"level,notnull" json:"level"`
	Speed      int               `bun:"speed,notnull" json:"speed"`
	Route      string            `bun:"route,notnull" json:"route"`
	Geometry   geometry.Geometry `bun:"geometry" json:"geometry"`
	Properties map[string]any    `bun:"properties,type:jsonb,notnull" json:"properties"`
	CreatedAt  time.Time         `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Attrs returns the edge fields used as multigraph attributes.
func (e *Edge) Attrs() map[string]any {
	return map[string]any{
		"id":          e.ID,
		"type":        e.Type,
		"weight":      e.Weight,
		"weight_type": e.WeightType,
		"level":       e.Level,
		"speed":       e.Speed,
		"route":       e.Route,
		"geometry":    e.Geometry,
		"properties":  e.Properties,
	}
}

// Record is an edge to be written in bulk. U and V are node ids.
type Record struct {
	U          int64
	V          int64
	Type       EdgeType
	Weight     float64
	WeightType WeightType
	Level      Level
	Speed      int
	Route      string
	Geometry   geometry.Geometry
	Properties map[string]any
}

// nullGeometryKey stands in for a missing geometry; no WKT spells it.
const nullGeometryKey = "NULL"

// Key identifies an edge by its unique columns. Edges without geometry are
// keyed too: the constraint never rejects them, so the pipeline matches them
// the way FindExisting does.
func (r Record) Key() string {
	if r.Geometry.IsNull() {
		return dedupKey(r.U, r.V, r.Type, nullGeometryKey, r.Route)
	}
	return dedupKey(r.U, r.V, r.Type, r.Geometry.WKT(), r.Route)
}

func dedupKey(u, v int64, t EdgeType, geomWKT, route string) string {
	return strconv.FormatInt(u, 10) + "|" + strconv.FormatInt(v, 10) + "|" + string(t) + "|" + geomWKT + "|" + route
}

package geometry

import (
	"github.com/paulmach/orb"
)

// Envelope accumulates the bounding box of a set of geometries.
type Envelope struct {
	bound orb.Bound
	empty bool
}

func NewEnvelope() *Envelope {
	return &Envelope{empty: true}
}

// Extend grows the envelope by g; nil geometries are ignored.
func (e *Envelope) Extend(g orb.Geometry) {
	if g == nil {
		return
	}
	b := g.Bound()
	if e.empty {
		e.bound = b
		e.empty = false
		return
	}
	e.bound = e.bound.Union(b)
}

func (e *Envelope) IsEmpty() bool {
	return e.empty
}

// Polygon returns the padded envelope as a polygon, or nil when nothing was added.
func (e *Envelope) Polygon() orb.Geometry {
	if e.empty {
		return nil
	}
	return e.bound.Pad(boundPad).ToPolygon()
}

// BoundingBox returns the padded bounding polygon of all non-nil geometries.
func BoundingBox(geoms ...orb.Geometry) orb.Geometry {
	env := NewEnvelope()
	for _, g := range geoms {
		env.Extend(g)
	}
	return env.Polygon()
}

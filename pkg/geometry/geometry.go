// Package geometry wraps orb geometries with the conversions the storage layer
// needs: GeoJSON for the API, EWKT for writes and EWKB for reads.
package geometry

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// SRID is the only spatial reference used by the service (WGS 84).
const SRID = 4326

// CRS is the SRID spelled as an authority code.
const CRS = "EPSG:4326"

// boundPad keeps degenerate boxes (a single point, an axis-aligned line)
// from collapsing into zero-area polygons.
const boundPad = 1e-9

var (
	ErrEmpty           = errors.New("geometry is empty")
	ErrUnsupportedType = errors.New("unsupported geometry type")
)

// Geometry is a nullable orb geometry usable as a bun column and as JSON.
type Geometry struct {
	orb.Geometry
}

func New(g orb.Geometry) Geometry {
	return Geometry{Geometry: g}
}

// IsNull reports whether no geometry is set.
func (g Geometry) IsNull() bool {
	return g.Geometry == nil
}

// Type returns the GeoJSON type name, or "" when null.
func (g Geometry) Type() string {
	if g.Geometry == nil {
		return ""
	}
	return g.Geometry.GeoJSONType()
}

// WKT returns the canonical well-known text. Two geometries with identical
// coordinates always produce identical text.
func (g Geometry) WKT() string {
	if g.Geometry == nil {
		return ""
	}
	return wkt.MarshalString(g.Geometry)
}

// EWKT returns the WKT prefixed with the SRID, as accepted by PostGIS input.
func (g Geometry) EWKT() string {
	if g.Geometry == nil {
		return ""
	}
	return fmt.Sprintf("SRID=%d;%s", SRID, g.WKT())
}

// CanonicalWKT is the dedup form of a geometry; "" for nil.
func CanonicalWKT(g orb.Geometry) string {
	return New(g).WKT()
}

// MustHaveType validates the geometry against the allowed GeoJSON types.
func (g Geometry) MustHaveType(allowed ...string) error {
	if g.Geometry == nil {
		return ErrEmpty
	}
	t := g.Type()
	for _, a := range allowed {
		if t == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (want %s)", ErrUnsupportedType, t, strings.Join(allowed, ", "))
}

// Value implements driver.Valuer. PostGIS parses EWKT from a text literal.
func (g Geometry) Value() (driver.Value, error) {
	if g.Geometry == nil {
		return nil, nil
	}
	return g.EWKT(), nil
}

// Scan implements sql.Scanner for geometry columns, which PostGIS renders as
// hex EWKB in text mode and raw EWKB in binary mode.
func (g *Geometry) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		g.Geometry = nil
		return nil
	case string:
		geom, err := ParseEWKBHex(v)
		if err != nil {
			return err
		}
		g.Geometry = geom
		return nil
	case []byte:
		if isHex(v) {
			geom, err := ParseEWKBHex(string(v))
			if err != nil {
				return err
			}
			g.Geometry = geom
			return nil
		}
		geom, _, err := ewkb.Unmarshal(v)
		if err != nil {
			return fmt.Errorf("decode ewkb: %w", err)
		}
		g.Geometry = geom
		return nil
	default:
		return fmt.Errorf("geometry: cannot scan %T", src)
	}
}

// ParseEWKBHex decodes hex EWKB, the text output of a PostGIS geometry value.
func ParseEWKBHex(s string) (orb.Geometry, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode hex ewkb: %w", err)
	}
	geom, _, err := ewkb.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("decode ewkb: %w", err)
	}
	return geom, nil
}

// HexEWKB encodes a geometry with the service SRID.
func HexEWKB(g orb.Geometry) (string, error) {
	return ewkb.MarshalToHex(g, SRID)
}

func isHex(b []byte) bool {
	if len(b) == 0 || len(b)%2 != 0 {
		return false
	}
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// MarshalJSON renders the geometry as a GeoJSON geometry object.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.Geometry == nil {
		return []byte("null"), nil
	}
	return geojson.NewGeometry(g.Geometry).MarshalJSON()
}

// UnmarshalJSON accepts a GeoJSON geometry object or null.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	if strings.TrimSpace(string(data)) == "null" {
		g.Geometry = nil
		return nil
	}
	gj, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("parse geojson geometry: %w", err)
	}
	g.Geometry = gj.Geometry()
	return nil
}

// ParseWKT reads WKT, tolerating an EWKT SRID prefix.
func ParseWKT(s string) (orb.Geometry, error) {
	if i := strings.Index(s, ";"); i >= 0 && strings.HasPrefix(strings.ToUpper(s), "SRID=") {
		s = s[i+1:]
	}
	return wkt.Unmarshal(s)
}

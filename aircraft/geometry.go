// aircraft/geometry.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aircraft

import (
	"encoding/json"
	"fmt"
	gomath "math"

	"github.com/mmp/skycam"

	"github.com/paulmach/orb"
)

// Coord is a vertex: (lon, lat, alt) in degrees and meters, or (x, y,
// alt) in pixels and meters for geometry in image space.
type Coord []float64

// Geometry is a vector shape with 3D vertices. The concrete types mirror
// the GeoJSON geometry types.
type Geometry interface {
	GeoJSONType() string
}

type (
	Point              Coord
	MultiPoint         []Coord
	LineString         []Coord
	LinearRing         []Coord
	Polygon            []LinearRing
	MultiLineString    []LineString
	MultiPolygon       []Polygon
	GeometryCollection []Geometry
)

func (Point) GeoJSONType() string              { return "Point" }
func (MultiPoint) GeoJSONType() string         { return "MultiPoint" }
func (LineString) GeoJSONType() string         { return "LineString" }
func (LinearRing) GeoJSONType() string         { return "LinearRing" }
func (Polygon) GeoJSONType() string            { return "Polygon" }
func (MultiLineString) GeoJSONType() string    { return "MultiLineString" }
func (MultiPolygon) GeoJSONType() string       { return "MultiPolygon" }
func (GeometryCollection) GeoJSONType() string { return "GeometryCollection" }

// walk calls f for each vertex of g in order.
func walk(g Geometry, f func(Coord) error) error {
	coords := func(cs []Coord) error {
		for _, c := range cs {
			if err := f(c); err != nil {
				return err
			}
		}
		return nil
	}

	switch g := g.(type) {
	case Point:
		return f(Coord(g))
	case MultiPoint:
		return coords(g)
	case LineString:
		return coords(g)
	case LinearRing:
		return coords(g)
	case Polygon:
		for _, r := range g {
			if err := coords(r); err != nil {
				return err
			}
		}
	case MultiLineString:
		for _, ls := range g {
			if err := coords(ls); err != nil {
				return err
			}
		}
	case MultiPolygon:
		for _, p := range g {
			if err := walk(p, f); err != nil {
				return err
			}
		}
	case GeometryCollection:
		for _, c := range g {
			if err := walk(c, f); err != nil {
				return err
			}
		}
	case nil:
		return fmt.Errorf("%w: nil geometry", skycam.ErrInvalidInput)
	default:
		return fmt.Errorf("%w: %T: unsupported geometry", skycam.ErrInvalidInput, g)
	}
	return nil
}

// flatten returns the components of every vertex of g, in order. Every
// vertex must have at least three components.
func flatten(g Geometry) (x, y, alt []float64, err error) {
	i := 0
	err = walk(g, func(c Coord) error {
		if len(c) < 3 {
			return fmt.Errorf("%w: vertex %d %v has no altitude", skycam.ErrInvalidInput, i, []float64(c))
		}
		x, y, alt = append(x, c[0]), append(y, c[1]), append(alt, c[2])
		i++
		return nil
	})
	return
}

// Count returns the number of vertices in g.
func Count(g Geometry) int {
	n := 0
	walk(g, func(Coord) error { n++; return nil })
	return n
}

// toOrb rebuilds g's structure as an orb geometry, taking the vertices
// in order from next.
func toOrb(g Geometry, next func() orb.Point) orb.Geometry {
	points := func(cs []Coord) []orb.Point {
		p := make([]orb.Point, len(cs))
		for i := range cs {
			p[i] = next()
		}
		return p
	}
	polygon := func(p Polygon) orb.Polygon {
		op := make(orb.Polygon, len(p))
		for i, r := range p {
			op[i] = orb.Ring(points(r))
		}
		return op
	}

	switch g := g.(type) {
	case Point:
		return next()
	case MultiPoint:
		return orb.MultiPoint(points(g))
	case LineString:
		return orb.LineString(points(g))
	case LinearRing:
		return orb.Ring(points(g))
	case Polygon:
		return polygon(g)
	case MultiLineString:
		mls := make(orb.MultiLineString, len(g))
		for i, ls := range g {
			mls[i] = orb.LineString(points(ls))
		}
		return mls
	case MultiPolygon:
		mp := make(orb.MultiPolygon, len(g))
		for i, p := range g {
			mp[i] = polygon(p)
		}
		return mp
	case GeometryCollection:
		c := make(orb.Collection, len(g))
		for i, sub := range g {
			c[i] = toOrb(sub, next)
		}
		return c
	default:
		panic(fmt.Sprintf("%T: unexpected geometry", g))
	}
}

// rebuild is like toOrb but produces a Geometry of the same type as g.
func rebuild(g Geometry, next func() Coord) Geometry {
	coords := func(cs []Coord) []Coord {
		c := make([]Coord, len(cs))
		for i := range cs {
			c[i] = next()
		}
		return c
	}
	polygon := func(p Polygon) Polygon {
		np := make(Polygon, len(p))
		for i, r := range p {
			np[i] = coords(r)
		}
		return np
	}

	switch g := g.(type) {
	case Point:
		return Point(next())
	case MultiPoint:
		return MultiPoint(coords(g))
	case LineString:
		return LineString(coords(g))
	case LinearRing:
		return LinearRing(coords(g))
	case Polygon:
		return polygon(g)
	case MultiLineString:
		mls := make(MultiLineString, len(g))
		for i, ls := range g {
			mls[i] = coords(ls)
		}
		return mls
	case MultiPolygon:
		mp := make(MultiPolygon, len(g))
		for i, p := range g {
			mp[i] = polygon(p)
		}
		return mp
	case GeometryCollection:
		c := make(GeometryCollection, len(g))
		for i, sub := range g {
			c[i] = rebuild(sub, next)
		}
		return c
	default:
		panic(fmt.Sprintf("%T: unexpected geometry", g))
	}
}

// Finite reports whether every vertex of the orb geometry g is finite.
// Projected geometry with NaN vertices can't be encoded as JSON.
func Finite(g orb.Geometry) bool {
	ok := func(p orb.Point) bool {
		return !gomath.IsNaN(p[0]) && !gomath.IsInf(p[0], 0) && !gomath.IsNaN(p[1]) && !gomath.IsInf(p[1], 0)
	}
	all := func(ps []orb.Point) bool {
		for _, p := range ps {
			if !ok(p) {
				return false
			}
		}
		return true
	}

	switch g := g.(type) {
	case orb.Point:
		return ok(g)
	case orb.MultiPoint:
		return all(g)
	case orb.LineString:
		return all(g)
	case orb.Ring:
		return all(g)
	case orb.Polygon:
		for _, r := range g {
			if !all(r) {
				return false
			}
		}
	case orb.MultiLineString:
		for _, ls := range g {
			if !all(ls) {
				return false
			}
		}
	case orb.MultiPolygon:
		for _, p := range g {
			if !Finite(p) {
				return false
			}
		}
	case orb.Collection:
		for _, sub := range g {
			if !Finite(sub) {
				return false
			}
		}
	}
	return true
}

///////////////////////////////////////////////////////////////////////////
// GeoJSON

// orb's GeoJSON types only carry two coordinates, so 3D geometry is
// decoded here.

type geojsonGeometry struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates,omitempty"`
	Geometries  []json.RawMessage `json:"geometries,omitempty"`
}

type geojsonFeature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// Feature is a GeoJSON feature with 3D geometry.
type Feature struct {
	ID         any
	Geometry   Geometry
	Properties map[string]any
}

func decodeAs[G Geometry](g geojsonGeometry) (Geometry, error) {
	if len(g.Coordinates) == 0 {
		return nil, fmt.Errorf("%w: %s without coordinates", skycam.ErrInvalidInput, g.Type)
	}
	var geom G
	if err := json.Unmarshal(g.Coordinates, &geom); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", skycam.ErrInvalidInput, g.Type, err)
	}
	return geom, nil
}

// UnmarshalGeometry decodes a GeoJSON geometry object. A Feature is also
// accepted, in which case its geometry is returned.
func UnmarshalGeometry(data []byte) (Geometry, error) {
	var g geojsonGeometry
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", skycam.ErrInvalidInput, err)
	}

	switch g.Type {
	case "Point":
		return decodeAs[Point](g)
	case "MultiPoint":
		return decodeAs[MultiPoint](g)
	case "LineString":
		return decodeAs[LineString](g)
	case "LinearRing":
		return decodeAs[LinearRing](g)
	case "Polygon":
		return decodeAs[Polygon](g)
	case "MultiLineString":
		return decodeAs[MultiLineString](g)
	case "MultiPolygon":
		return decodeAs[MultiPolygon](g)
	case "GeometryCollection":
		gc := make(GeometryCollection, len(g.Geometries))
		for i, raw := range g.Geometries {
			var err error
			if gc[i], err = UnmarshalGeometry(raw); err != nil {
				return nil, err
			}
		}
		return gc, nil
	case "Feature":
		var f geojsonFeature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", skycam.ErrInvalidInput, err)
		}
		return UnmarshalGeometry(f.Geometry)
	default:
		return nil, fmt.Errorf("%w: %q: unsupported GeoJSON type", skycam.ErrInvalidInput, g.Type)
	}
}

// UnmarshalFeatures decodes a GeoJSON FeatureCollection, a single Feature
// or a bare geometry into a list of features.
func UnmarshalFeatures(data []byte) ([]Feature, error) {
	var head struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", skycam.ErrInvalidInput, err)
	}

	feature := func(raw []byte) (Feature, error) {
		var f geojsonFeature
		if err := json.Unmarshal(raw, &f); err != nil {
			return Feature{}, fmt.Errorf("%w: %v", skycam.ErrInvalidInput, err)
		}
		g, err := UnmarshalGeometry(f.Geometry)
		return Feature{ID: f.ID, Geometry: g, Properties: f.Properties}, err
	}

	switch head.Type {
	case "FeatureCollection":
		fs := make([]Feature, len(head.Features))
		for i, raw := range head.Features {
			var err error
			if fs[i], err = feature(raw); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
		}
		return fs, nil
	case "Feature":
		f, err := feature(data)
		if err != nil {
			return nil, err
		}
		return []Feature{f}, nil
	default:
		g, err := UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		return []Feature{{Geometry: g}}, nil
	}
}

// MarshalGeometry encodes g as a GeoJSON geometry object.
func MarshalGeometry(g Geometry) ([]byte, error) {
	return json.Marshal(geojsonValue(g))
}

func geojsonValue(g Geometry) any {
	if gc, ok := g.(GeometryCollection); ok {
		geoms := make([]any, len(gc))
		for i, sub := range gc {
			geoms[i] = geojsonValue(sub)
		}
		return struct {
			Type       string `json:"type"`
			Geometries []any  `json:"geometries"`
		}{Type: gc.GeoJSONType(), Geometries: geoms}
	}
	return struct {
		Type        string   `json:"type"`
		Coordinates Geometry `json:"coordinates"`
	}{Type: g.GeoJSONType(), Coordinates: g}
}

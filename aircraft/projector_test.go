// aircraft/projector_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aircraft

import (
	"errors"
	"fmt"
	gomath "math"
	"strings"
	"testing"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/calib"
	"github.com/mmp/skycam/geodesy"
	"github.com/mmp/skycam/lens"
	"github.com/mmp/skycam/projection"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
)

func makeProjector(t *testing.T, opts ...Option) *Projector {
	t.Helper()
	cal, err := calib.Synthesize(calib.Equidistant{Category: "sky", Height: 201, Width: 201, FieldOfView: 90,
		Mirror: true})
	if err != nil {
		t.Fatal(err)
	}
	lm, err := lens.New(cal)
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewProjector(lm, geodesy.DefaultCameraPosition(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// Targets around the default camera position at 48.6N 2.35E.
var (
	targetLon = []float64{2.35, 2.35, 2.45, 2.30, 2.40, 2.28}
	targetLat = []float64{48.6, 48.7, 48.6, 48.55, 48.65, 48.63}
	targetAlt = []float64{5000, 10000, 9000, 11000, 3000, 12000}
)

func TestLonLatRoundTrip(t *testing.T) {
	for _, model := range []geodesy.Model{geodesy.WGS84{}, geodesy.Sphere{}} {
		p := makeProjector(t, WithEngine(geodesy.NewEngine(model)))

		px, py, err := p.LonLatToPixels(targetLon, targetLat, targetAlt)
		if err != nil {
			t.Fatal(err)
		}
		lon, lat, err := p.PixelsToLonLat(px, py, targetAlt)
		if err != nil {
			t.Fatal(err)
		}
		for i := range lon {
			if gomath.Abs(lon[i]-targetLon[i]) > 1e-3 || gomath.Abs(lat[i]-targetLat[i]) > 1e-3 {
				t.Errorf("%s: (%v, %v) -> pixel (%v, %v) -> (%v, %v)", model.Name(), targetLon[i], targetLat[i],
					px[i], py[i], lon[i], lat[i])
			}
		}
	}
}

func TestLonLatToPixelsOrientation(t *testing.T) {
	p := makeProjector(t)

	// Directly overhead is at the center; north is up and east is left.
	px, py, err := p.LonLatToPixels([]float64{2.35, 2.35, 2.50}, []float64{48.6, 48.7, 48.6},
		[]float64{10000, 10000, 10000})
	if err != nil {
		t.Fatal(err)
	}
	if gomath.Abs(px[0]-100) > 0.5 || gomath.Abs(py[0]-100) > 0.5 {
		t.Errorf("overhead: got (%v, %v), expected (100, 100)", px[0], py[0])
	}
	if gomath.Abs(px[1]-100) > 0.5 || !(py[1] < 50) {
		t.Errorf("north: got (%v, %v)", px[1], py[1])
	}
	if !(px[2] < 50) || gomath.Abs(py[2]-100) > 2 {
		t.Errorf("east: got (%v, %v)", px[2], py[2])
	}
}

func TestBelowHorizon(t *testing.T) {
	p := makeProjector(t)

	px, py, err := p.LonLatToPixels([]float64{3.5, 2.36}, []float64{48.6, 48.61}, []float64{0, 10000})
	if err != nil {
		t.Fatal(err)
	}
	if !gomath.IsNaN(px[0]) || !gomath.IsNaN(py[0]) {
		t.Errorf("target below the horizon: got (%v, %v), expected NaN", px[0], py[0])
	}
	if gomath.IsNaN(px[1]) || gomath.IsNaN(py[1]) {
		t.Errorf("visible target in the same batch gave NaN")
	}

	lon, lat, err := p.PixelsToLonLat([]float64{0, -5}, []float64{0, 10}, []float64{10000, 10000})
	if err != nil {
		t.Fatal(err)
	}
	for i := range lon {
		if !gomath.IsNaN(lon[i]) || !gomath.IsNaN(lat[i]) {
			t.Errorf("pixel %d outside the lens: got (%v, %v), expected NaN", i, lon[i], lat[i])
		}
	}
}

func TestGridRoundTrip(t *testing.T) {
	p := makeProjector(t)

	x, y, err := p.LonLatToGrid(targetLon, targetLat, targetAlt)
	if err != nil {
		t.Fatal(err)
	}
	lon, lat, err := p.GridToLonLat(x, y, targetAlt)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(targetLon, lon, cmpopts.EquateApprox(0, 1e-7)); diff != "" {
		t.Errorf("longitudes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(targetLat, lat, cmpopts.EquateApprox(0, 1e-7)); diff != "" {
		t.Errorf("latitudes (-want +got):\n%s", diff)
	}
}

func TestGridPlacement(t *testing.T) {
	p := makeProjector(t)
	cam := p.Camera()
	g := projection.DefaultSettings().Grid()

	// A target at the cloud height is at its own ground position in the grid.
	lat, lon := geodesy.WGS84{}.Direct(cam.Latitude, cam.Longitude, 0, 20000)
	x, y, err := p.LonLatToGrid([]float64{lon}, []float64{lat}, []float64{cam.Altitude + g.CloudHeight})
	if err != nil {
		t.Fatal(err)
	}
	ex, ey := g.PlaneToCell(0, 20000)
	if gomath.Abs(x[0]-ex) > 1e-6 || gomath.Abs(y[0]-ey) > 1e-6 {
		t.Errorf("got cell (%v, %v), expected (%v, %v)", x[0], y[0], ex, ey)
	}
}

func TestProjectGeometry(t *testing.T) {
	p := makeProjector(t)

	ring := LinearRing{
		{2.30, 48.55, 10000}, {2.40, 48.55, 10000}, {2.40, 48.65, 10000}, {2.30, 48.65, 10000},
		{2.30, 48.55, 10000},
	}
	g, err := p.ProjectGeometry(Polygon{ring})
	if err != nil {
		t.Fatal(err)
	}
	poly, ok := g.(orb.Polygon)
	if !ok || len(poly) != 1 || len(poly[0]) != len(ring) {
		t.Fatalf("got %#v, expected a polygon with one ring of %d vertices", g, len(ring))
	}

	var lon, lat, alt []float64
	for _, c := range ring {
		lon, lat, alt = append(lon, c[0]), append(lat, c[1]), append(alt, c[2])
	}
	px, py, err := p.LonLatToPixels(lon, lat, alt)
	if err != nil {
		t.Fatal(err)
	}
	for i, pt := range poly[0] {
		if pt[0] != px[i] || pt[1] != py[i] {
			t.Errorf("vertex %d: got %v, expected (%v, %v)", i, pt, px[i], py[i])
		}
	}
	if poly[0][0] != poly[0][len(ring)-1] {
		t.Errorf("ring is no longer closed")
	}
}

// structure describes the type and nesting of g and the number of
// vertices at each level, e.g. "MultiLineString[LineString(1) LineString(2)]".
func structure(g orb.Geometry) string {
	list := func(name string, n int, elem func(i int) string) string {
		var parts []string
		for i := range n {
			parts = append(parts, elem(i))
		}
		return name + "[" + strings.Join(parts, " ") + "]"
	}

	switch g := g.(type) {
	case orb.Point:
		return "Point"
	case orb.MultiPoint:
		return fmt.Sprintf("MultiPoint(%d)", len(g))
	case orb.LineString:
		return fmt.Sprintf("LineString(%d)", len(g))
	case orb.Ring:
		return fmt.Sprintf("Ring(%d)", len(g))
	case orb.Polygon:
		return list("Polygon", len(g), func(i int) string { return structure(g[i]) })
	case orb.MultiLineString:
		return list("MultiLineString", len(g), func(i int) string { return structure(g[i]) })
	case orb.MultiPolygon:
		return list("MultiPolygon", len(g), func(i int) string { return structure(g[i]) })
	case orb.Collection:
		return list("Collection", len(g), func(i int) string { return structure(g[i]) })
	default:
		return fmt.Sprintf("%T", g)
	}
}

func TestProjectGeometryTypes(t *testing.T) {
	p := makeProjector(t)
	c := func(lon, lat float64) Coord { return Coord{lon, lat, 10000} }

	tests := []struct {
		g        Geometry
		expected orb.Geometry
	}{
		{Point(c(2.35, 48.6)), orb.Point{}},
		{MultiPoint{c(2.35, 48.6), c(2.36, 48.6)}, orb.MultiPoint{{}, {}}},
		{LineString{c(2.35, 48.6), c(2.36, 48.6), c(2.37, 48.6)}, orb.LineString{{}, {}, {}}},
		{MultiLineString{{c(2.35, 48.6)}, {c(2.36, 48.6), c(2.37, 48.6)}},
			orb.MultiLineString{{{}}, {{}, {}}}},
		{MultiPolygon{{{c(2.35, 48.6), c(2.36, 48.6), c(2.35, 48.6)}}, {}},
			orb.MultiPolygon{{{{}, {}, {}}}, {}}},
		{GeometryCollection{Point(c(2.35, 48.6)), LineString{c(2.35, 48.6)}},
			orb.Collection{orb.Point{}, orb.LineString{{}}}},
		{MultiPoint{}, orb.MultiPoint{}},
		{GeometryCollection{}, orb.Collection{}},
	}

	// Only the structure is compared; coordinates are checked elsewhere.
	for _, test := range tests {
		g, err := p.ProjectGeometry(test.g)
		if err != nil {
			t.Errorf("%s: %v", test.g.GeoJSONType(), err)
			continue
		}
		if got, expected := structure(g), structure(test.expected); got != expected {
			t.Errorf("%s: got structure %s, expected %s", test.g.GeoJSONType(), got, expected)
		}
		if n := Count(test.g); n > 0 && !Finite(g) {
			t.Errorf("%s: got non-finite vertices %v", test.g.GeoJSONType(), g)
		}
	}
}

func TestProjectGeometryMissingAltitude(t *testing.T) {
	p := makeProjector(t)

	for _, g := range []Geometry{
		Point{2.35, 48.6},
		Polygon{{{2.30, 48.55, 10000}, {2.40, 48.55}, {2.40, 48.65, 10000}, {2.30, 48.55, 10000}}},
		GeometryCollection{LineString{{2.35, 48.6, 100}}, MultiPoint{{2.35}}},
		nil,
	} {
		if _, err := p.ProjectGeometry(g); !errors.Is(err, skycam.ErrInvalidInput) {
			t.Errorf("%v: got %v, expected ErrInvalidInput", g, err)
		}
		if _, err := p.ProjectGeometryToGrid(g); !errors.Is(err, skycam.ErrInvalidInput) {
			t.Errorf("%v: got %v, expected ErrInvalidInput", g, err)
		}
	}
}

func TestProjectGeometryBack(t *testing.T) {
	p := makeProjector(t)

	ls := LineString{{2.35, 48.6, 9000}, {2.38, 48.62, 10000}, {2.32, 48.58, 11000}, {2.36, 48.64, 8000}}
	g, err := p.ProjectGeometry(ls)
	if err != nil {
		t.Fatal(err)
	}

	var pix LineString
	for i, pt := range g.(orb.LineString) {
		pix = append(pix, Coord{pt[0], pt[1], ls[i][2]})
	}
	back, err := p.ProjectGeometryBack(pix)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ls, back, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestProjectorErrors(t *testing.T) {
	if _, err := NewProjector(nil, geodesy.DefaultCameraPosition()); !errors.Is(err, skycam.ErrInvalidInput) {
		t.Errorf("nil lens: got %v", err)
	}
	p := makeProjector(t)
	if _, err := NewProjector(p.Lens(), geodesy.CameraPosition{Latitude: 100}); !errors.Is(err, skycam.ErrInvalidInput) {
		t.Errorf("bad camera: got %v", err)
	}

	short := []float64{1}
	long := []float64{1, 2}
	if _, _, err := p.LonLatToPixels(short, long, long); !errors.Is(err, skycam.ErrInvalidInput) {
		t.Errorf("LonLatToPixels: got %v", err)
	}
	if _, _, err := p.PixelsToLonLat(long, long, short); !errors.Is(err, skycam.ErrInvalidInput) {
		t.Errorf("PixelsToLonLat: got %v", err)
	}
	if _, _, err := p.LonLatToGrid(long, short, long); !errors.Is(err, skycam.ErrInvalidInput) {
		t.Errorf("LonLatToGrid: got %v", err)
	}
	if _, _, err := p.GridToLonLat(short, short, long); !errors.Is(err, skycam.ErrInvalidInput) {
		t.Errorf("GridToLonLat: got %v", err)
	}
}

// aircraft/projector.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package aircraft places targets with known geographic positions, such
// as aircraft tracks, in sky-camera images, and recovers the geographic
// positions of image points at an assumed altitude. Positions can be
// mapped to the raw fisheye image or to the rectified grid produced by
// package projection.
package aircraft

import (
	"fmt"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/geodesy"
	"github.com/mmp/skycam/lens"
	"github.com/mmp/skycam/log"
	"github.com/mmp/skycam/math"
	"github.com/mmp/skycam/projection"

	"github.com/paulmach/orb"
)

// Projector combines a camera's lens model and position.
type Projector struct {
	lens   *lens.Model
	cam    geodesy.CameraPosition
	engine *geodesy.Engine
	grid   projection.Grid
	lg     *log.Logger
}

type Option func(*Projector)

// WithEngine sets the geodetic engine; the default uses WGS84.
func WithEngine(e *geodesy.Engine) Option {
	return func(p *Projector) { p.engine = e }
}

// WithGrid sets the rectified grid used by the *Grid methods; the default
// is the grid of projection.DefaultSettings.
func WithGrid(g projection.Grid) Option {
	return func(p *Projector) { p.grid = g }
}

func WithLogger(lg *log.Logger) Option {
	return func(p *Projector) { p.lg = lg }
}

func NewProjector(lm *lens.Model, cam geodesy.CameraPosition, opts ...Option) (*Projector, error) {
	if lm == nil {
		return nil, fmt.Errorf("%w: nil lens model", skycam.ErrInvalidInput)
	}
	if err := cam.Validate(); err != nil {
		return nil, err
	}

	p := &Projector{
		lens: lm,
		cam:  cam,
		grid: projection.DefaultSettings().Grid(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = geodesy.NewEngine(nil)
	}
	return p, nil
}

func (p *Projector) Camera() geodesy.CameraPosition { return p.cam }
func (p *Projector) Lens() *lens.Model               { return p.lens }
func (p *Projector) Grid() projection.Grid           { return p.grid }

func checkLengths(what string, a, b, c []float64) error {
	if len(a) != len(b) || len(a) != len(c) {
		return fmt.Errorf("%w: %s: mismatched lengths %d, %d, %d", skycam.ErrInvalidInput, what, len(a),
			len(b), len(c))
	}
	return nil
}

// LonLatToPixels returns the raw image positions of the targets at the
// given longitudes, latitudes and altitudes. Targets outside the lens's
// field of view give NaN.
func (p *Projector) LonLatToPixels(lon, lat, alt []float64) (px, py []float64, err error) {
	if err := checkLengths("LonLatToPixels", lon, lat, alt); err != nil {
		return nil, nil, err
	}
	az, zen, err := p.engine.BearingAndElevation(p.cam, lon, lat, alt)
	if err != nil {
		return nil, nil, err
	}
	return p.lens.PixelsAt(az, zen)
}

// PixelsToLonLat returns the longitudes and latitudes of the points at
// the given altitudes that appear at the raw image positions (px, py).
func (p *Projector) PixelsToLonLat(px, py, assumedAlt []float64) (lon, lat []float64, err error) {
	if err := checkLengths("PixelsToLonLat", px, py, assumedAlt); err != nil {
		return nil, nil, err
	}
	az, zen, err := p.lens.AnglesAt(px, py)
	if err != nil {
		return nil, nil, err
	}
	return p.engine.Inverse(p.cam, az, zen, assumedAlt)
}

// LonLatToGrid is like LonLatToPixels but gives positions in the
// rectified grid. A target is placed where its line of sight crosses the
// grid's plane, so the result is only the target's position above the
// ground when its altitude matches the grid's cloud height. Positions
// beyond the grid's extent are returned as they are.
func (p *Projector) LonLatToGrid(lon, lat, alt []float64) (x, y []float64, err error) {
	if err := checkLengths("LonLatToGrid", lon, lat, alt); err != nil {
		return nil, nil, err
	}
	az, zen, err := p.engine.BearingAndElevation(p.cam, lon, lat, alt)
	if err != nil {
		return nil, nil, err
	}

	x, y = make([]float64, len(az)), make([]float64, len(az))
	for i := range az {
		x[i], y[i] = p.grid.AnglesToCell(az[i], zen[i])
	}
	return
}

// GridToLonLat is the inverse of LonLatToGrid for targets at assumedAlt.
func (p *Projector) GridToLonLat(x, y, assumedAlt []float64) (lon, lat []float64, err error) {
	if err := checkLengths("GridToLonLat", x, y, assumedAlt); err != nil {
		return nil, nil, err
	}

	az, zen := make([]float64, len(x)), make([]float64, len(x))
	for i := range x {
		az[i], zen[i] = p.grid.CellToAngles(x[i], y[i])
	}
	return p.engine.Inverse(p.cam, az, zen, assumedAlt)
}

func (p *Projector) projectGeometry(g Geometry, f func(lon, lat, alt []float64) ([]float64, []float64, error)) (orb.Geometry, error) {
	lon, lat, alt, err := flatten(g)
	if err != nil {
		return nil, err
	}
	x, y, err := f(lon, lat, alt)
	if err != nil {
		return nil, err
	}

	i := 0
	og := toOrb(g, func() orb.Point {
		pt := orb.Point{x[i], y[i]}
		i++
		return pt
	})

	if n := len(x); n > 0 {
		valid := 0
		for j := range x {
			if math.IsFinite(x[j]) && math.IsFinite(y[j]) {
				valid++
			}
		}
		if valid < n {
			p.lg.Debugf("%s: %d of %d vertices not visible", g.GeoJSONType(), n-valid, n)
		}
	}
	return og, nil
}

// ProjectGeometry maps every vertex of g to raw image pixels, preserving
// the geometry's type, nesting and vertex order. Every vertex must have
// an altitude. Vertices that the camera can't see are NaN.
func (p *Projector) ProjectGeometry(g Geometry) (orb.Geometry, error) {
	return p.projectGeometry(g, p.LonLatToPixels)
}

// ProjectGeometryToGrid is like ProjectGeometry but maps to cells of the
// rectified grid.
func (p *Projector) ProjectGeometryToGrid(g Geometry) (orb.Geometry, error) {
	return p.projectGeometry(g, p.LonLatToGrid)
}

// ProjectGeometryBack maps geometry whose vertices are (px, py, alt) in
// raw image space back to (lon, lat, alt).
func (p *Projector) ProjectGeometryBack(g Geometry) (Geometry, error) {
	px, py, alt, err := flatten(g)
	if err != nil {
		return nil, err
	}
	lon, lat, err := p.PixelsToLonLat(px, py, alt)
	if err != nil {
		return nil, err
	}

	i := 0
	return rebuild(g, func() Coord {
		c := Coord{lon[i], lat[i], alt[i]}
		i++
		return c
	}), nil
}

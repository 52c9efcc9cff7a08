// projection/grid.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package projection

import (
	gomath "math"

	"github.com/mmp/skycam/math"
)

// Grid is the rectified output plane. Cell (x = column, y = row) is at
// east = -SquareSize/2 + x*step and north = SquareSize/2 - y*step meters
// from the point directly above the camera, where step =
// SquareSize/(Resolution-1). North is up and east is to the right; the
// camera is below the center cell. Fractional cell positions are allowed
// throughout.
type Grid struct {
	Resolution  int
	CloudHeight float64
	SquareSize  float64
}

// Step returns the distance in meters between adjacent cells.
func (g Grid) Step() float64 {
	return g.SquareSize / float64(g.Resolution-1)
}

func (g Grid) CellToPlane(x, y float64) (east, north float64) {
	step := g.Step()
	return -g.SquareSize/2 + x*step, g.SquareSize/2 - y*step
}

func (g Grid) PlaneToCell(east, north float64) (x, y float64) {
	step := g.Step()
	return (east + g.SquareSize/2) / step, (g.SquareSize/2 - north) / step
}

// PlaneToAngles returns the azimuth and zenith angle in degrees of the
// point (east, north) on the plane as seen from the camera.
func (g Grid) PlaneToAngles(east, north float64) (azimuth, zenith float64) {
	if !math.AllFinite(east, north) {
		return gomath.NaN(), gomath.NaN()
	}
	azimuth = math.NormalizeHeading(math.Degrees(gomath.Atan2(east, north)))
	zenith = math.Degrees(gomath.Atan(gomath.Hypot(east, north) / g.CloudHeight))
	return
}

// AnglesToPlane is the inverse of PlaneToAngles. Directions at or below
// the horizon never reach the plane and give NaN.
func (g Grid) AnglesToPlane(azimuth, zenith float64) (east, north float64) {
	if !math.IsFinite(azimuth) || !(zenith >= 0 && zenith < 90) {
		return gomath.NaN(), gomath.NaN()
	}
	r := g.CloudHeight * gomath.Tan(math.Radians(zenith))
	s, c := gomath.Sincos(math.Radians(azimuth))
	return r * s, r * c
}

func (g Grid) CellToAngles(x, y float64) (azimuth, zenith float64) {
	return g.PlaneToAngles(g.CellToPlane(x, y))
}

// AnglesToCell returns the fractional cell that the direction passes
// through. The result is not limited to the grid's extent.
func (g Grid) AnglesToCell(azimuth, zenith float64) (x, y float64) {
	east, north := g.AnglesToPlane(azimuth, zenith)
	if math.IsNaN(east) {
		return gomath.NaN(), gomath.NaN()
	}
	return g.PlaneToCell(east, north)
}

// Contains reports whether the fractional cell lies within the grid.
func (g Grid) Contains(x, y float64) bool {
	n := float64(g.Resolution - 1)
	return x >= 0 && x <= n && y >= 0 && y <= n
}

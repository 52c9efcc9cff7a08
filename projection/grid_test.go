// projection/grid_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package projection

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/math"
)

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Errorf("default settings: %v", err)
	}

	d := DefaultSettings()
	for _, s := range []Settings{
		{Resolution: 8, CloudHeight: 10000, SquareSize: 75000, MaxZenith: 80},
		{Resolution: 10000, CloudHeight: 10000, SquareSize: 75000, MaxZenith: 80},
		{Resolution: 256, CloudHeight: gomath.NaN(), SquareSize: 75000, MaxZenith: 80},
		{Resolution: 256, CloudHeight: -1, SquareSize: 75000, MaxZenith: 80},
		{Resolution: 256, CloudHeight: 10000, SquareSize: gomath.Inf(1), MaxZenith: 80},
		{Resolution: 256, CloudHeight: 10000, SquareSize: 75000, MaxZenith: 90},
		{Resolution: 256, CloudHeight: 10000, SquareSize: 75000, MaxZenith: 0},
	} {
		if err := s.Validate(); !errors.Is(err, skycam.ErrInvalidInput) {
			t.Errorf("%+v: got %v, expected ErrInvalidInput", s, err)
		}
	}

	if s := (Settings{Resolution: 256}).WithDefaults(); s.Resolution != 256 || s.CloudHeight != d.CloudHeight ||
		s.SquareSize != d.SquareSize || s.MaxZenith != d.MaxZenith {
		t.Errorf("WithDefaults: got %+v", s)
	}
}

func TestGridAngles(t *testing.T) {
	g := Settings{Resolution: 101, CloudHeight: 10000, SquareSize: 20000, MaxZenith: 80}.Grid()
	if g.Step() != 200 {
		t.Errorf("got step %v, expected 200", g.Step())
	}

	tests := []struct {
		x, y    float64
		az, zen float64
	}{
		{50, 50, 0, 0},
		{50, 0, 0, 45},    // top is north
		{100, 50, 90, 45}, // right is east
		{50, 100, 180, 45},
		{0, 50, 270, 45},
		{0, 0, 315, math.Degrees(gomath.Atan(gomath.Sqrt2))},
	}
	for _, test := range tests {
		az, zen := g.CellToAngles(test.x, test.y)
		if math.HeadingDifference(az, test.az) > 1e-9 || gomath.Abs(zen-test.zen) > 1e-9 {
			t.Errorf("CellToAngles(%v, %v): got (%v, %v), expected (%v, %v)", test.x, test.y, az, zen,
				test.az, test.zen)
		}
		if test.zen == 0 {
			continue
		}
		x, y := g.AnglesToCell(test.az, test.zen)
		if gomath.Abs(x-test.x) > 1e-9 || gomath.Abs(y-test.y) > 1e-9 {
			t.Errorf("AnglesToCell(%v, %v): got (%v, %v), expected (%v, %v)", test.az, test.zen, x, y,
				test.x, test.y)
		}
	}
}

func TestGridRoundTrip(t *testing.T) {
	g := DefaultSettings().Grid()
	for _, p := range [][2]float64{{0, 0}, {1023, 1023}, {511.5, 511.5}, {17.25, 900}, {700, 3}} {
		east, north := g.CellToPlane(p[0], p[1])
		if x, y := g.PlaneToCell(east, north); gomath.Abs(x-p[0]) > 1e-9 || gomath.Abs(y-p[1]) > 1e-9 {
			t.Errorf("plane round trip of %v gave (%v, %v)", p, x, y)
		}

		az, zen := g.CellToAngles(p[0], p[1])
		if x, y := g.AnglesToCell(az, zen); gomath.Abs(x-p[0]) > 1e-6 || gomath.Abs(y-p[1]) > 1e-6 {
			t.Errorf("angle round trip of %v gave (%v, %v)", p, x, y)
		}
		if !g.Contains(p[0], p[1]) {
			t.Errorf("%v should be inside the grid", p)
		}
	}

	if g.Contains(-0.5, 10) || g.Contains(10, 1023.5) {
		t.Errorf("Contains accepted a cell outside the grid")
	}
}

func TestGridBeyondHorizon(t *testing.T) {
	g := DefaultSettings().Grid()
	for _, zen := range []float64{90, 95, -1, gomath.NaN()} {
		if x, y := g.AnglesToCell(10, zen); !gomath.IsNaN(x) || !gomath.IsNaN(y) {
			t.Errorf("AnglesToCell(10, %v): got (%v, %v), expected NaN", zen, x, y)
		}
	}
	// Cells far outside the square are still a valid direction.
	if _, zen := g.CellToAngles(-1e6, 0); !(zen > 80 && zen < 90) {
		t.Errorf("got zenith %v for a distant cell", zen)
	}
}

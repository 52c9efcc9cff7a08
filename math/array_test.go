// math/array_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
	"testing"
)

func TestLocateBilinear(t *testing.T) {
	tests := []struct {
		x, y   float64
		ok     bool
		x0, y0 int
		fx, fy float64
	}{
		{0, 0, true, 0, 0, 0, 0},
		{1.25, 0.5, true, 1, 0, 0.25, 0.5},
		{3, 2, true, 2, 1, 1, 1}, // far edge
		{3.0001, 0, false, 0, 0, 0, 0},
		{-0.1, 0, false, 0, 0, 0, 0},
		{gomath.NaN(), 1, false, 0, 0, 0, 0},
	}

	for _, test := range tests {
		c, ok := LocateBilinear(test.x, test.y, 4, 3)
		if ok != test.ok {
			t.Errorf("LocateBilinear(%v, %v): got ok %v, expected %v", test.x, test.y, ok, test.ok)
			continue
		}
		if !ok {
			continue
		}
		if c.X0 != test.x0 || c.Y0 != test.y0 || c.X1 != c.X0+1 || c.Y1 != c.Y0+1 {
			t.Errorf("LocateBilinear(%v, %v): got cell %+v", test.x, test.y, c)
		}
		if gomath.Abs(c.Fx-test.fx) > 1e-12 || gomath.Abs(c.Fy-test.fy) > 1e-12 {
			t.Errorf("LocateBilinear(%v, %v): got fractions %v,%v expected %v,%v", test.x, test.y,
				c.Fx, c.Fy, test.fx, test.fy)
		}
	}
}

func TestBilinear(t *testing.T) {
	// f(x, y) = 2x + 3y is reproduced exactly by bilinear interpolation.
	a := NewArray2D(4, 5)
	for r := range a.Rows {
		for c := range a.Cols {
			a.Set(r, c, float64(2*c+3*r))
		}
	}

	for _, p := range [][2]float64{{0, 0}, {1.5, 2.25}, {4, 3}, {3.9, 0.1}} {
		expected := 2*p[0] + 3*p[1]
		if got := a.Bilinear(p[0], p[1]); gomath.Abs(got-expected) > 1e-9 {
			t.Errorf("Bilinear(%v): got %v, expected %v", p, got, expected)
		}
	}

	if v := a.Bilinear(5, 0); !gomath.IsNaN(v) {
		t.Errorf("Bilinear out of bounds: got %v, expected NaN", v)
	}

	a.Set(1, 1, gomath.NaN())
	if v := a.Bilinear(0.5, 0.5); !gomath.IsNaN(v) {
		t.Errorf("Bilinear next to NaN: got %v, expected NaN", v)
	}
	// Exactly on a valid sample, the NaN neighbor has zero weight.
	if v := a.Bilinear(1, 0); v != 2 {
		t.Errorf("Bilinear at valid sample: got %v, expected 2", v)
	}
}

func TestBilinearHeading(t *testing.T) {
	a := NewArray2D(2, 2)
	copy(a.Data, []float64{350, 10, 350, 10})

	if got := a.BilinearHeading(0.5, 0.5); gomath.Abs(got) > 1e-9 && gomath.Abs(got-360) > 1e-9 {
		t.Errorf("BilinearHeading across seam: got %v, expected 0", got)
	}
	if got := a.BilinearHeading(0.25, 0); gomath.Abs(got-355) > 1e-9 {
		t.Errorf("BilinearHeading: got %v, expected 355", got)
	}
	if got := a.BilinearHeading(0.75, 1); gomath.Abs(got-5) > 1e-9 {
		t.Errorf("BilinearHeading: got %v, expected 5", got)
	}
}

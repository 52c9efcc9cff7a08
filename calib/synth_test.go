// calib/synth_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package calib

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/mmp/skycam"
)

func TestSynthesizeEquidistant(t *testing.T) {
	c, err := Synthesize(Equidistant{Category: "cam", Height: 101, Width: 121, FieldOfView: 90})
	if err != nil {
		t.Fatal(err)
	}
	// Center (50, 60); 50 pixels of radius span 90 degrees.
	check := func(row, col int, az, zen float64) {
		t.Helper()
		a, z := c.At(row, col)
		if gomath.Abs(z-zen) > 1e-9 {
			t.Errorf("(%d,%d): got zenith %v, expected %v", row, col, z, zen)
		}
		if !gomath.IsNaN(az) && gomath.Abs(a-az) > 1e-9 {
			t.Errorf("(%d,%d): got azimuth %v, expected %v", row, col, a, az)
		}
	}
	check(0, 60, 0, 90)    // top: north, horizon
	check(50, 85, 90, 45)  // right: east
	check(75, 60, 180, 45) // bottom: south
	check(50, 35, 270, 45) // left: west
	check(50, 60, gomath.NaN(), 0)

	if c.Valid(0, 0) {
		t.Errorf("corner should be outside the valid disk")
	}
	if c.MaxZenith() != 90 {
		t.Errorf("got max zenith %v, expected 90", c.MaxZenith())
	}
}

func TestSynthesizeMirrorAndOffset(t *testing.T) {
	c, err := Synthesize(Equidistant{Height: 41, Width: 41, FieldOfView: 80, Mirror: true, AzimuthOffset: 30})
	if err != nil {
		t.Fatal(err)
	}
	// Right of center is 30 - 90 with mirroring.
	if a, _ := c.At(20, 30); gomath.Abs(a-300) > 1e-9 {
		t.Errorf("got azimuth %v, expected 300", a)
	}
	if a, _ := c.At(10, 20); gomath.Abs(a-30) > 1e-9 {
		t.Errorf("got azimuth %v, expected 30", a)
	}
}

func TestSynthesizeDistortion(t *testing.T) {
	c, err := Synthesize(Equidistant{Height: 81, Width: 81, FieldOfView: 85, Distortion: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	// Zenith is still monotonic along a radius and reaches the FOV at the edge.
	prev := -1.
	for col := 40; col <= 80; col++ {
		_, z := c.At(40, col)
		if z <= prev {
			t.Errorf("zenith not increasing at column %d: %v after %v", col, z, prev)
		}
		prev = z
	}
	if gomath.Abs(prev-85) > 1e-9 {
		t.Errorf("got edge zenith %v, expected 85", prev)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	for _, e := range []Equidistant{
		{Height: 0, Width: 10},
		{Height: 10, Width: 10, FieldOfView: 120},
		{Height: 10, Width: 10, Distortion: -0.5},
		{Height: 10, Width: 10, PixelsPerDegree: -1},
	} {
		if _, err := Synthesize(e); !errors.Is(err, skycam.ErrInvalidInput) {
			t.Errorf("%+v: got %v, expected ErrInvalidInput", e, err)
		}
	}
}

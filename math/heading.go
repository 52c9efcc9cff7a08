// math/heading.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
)

///////////////////////////////////////////////////////////////////////////
// headings and azimuths

// NormalizeHeading reduces h to [0,360). NaN and infinities come back as
// NaN.
func NormalizeHeading(h float64) float64 {
	if !IsFinite(h) {
		return gomath.NaN()
	}
	h = gomath.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 { // -tiny + 360 rounds up
		h = 0
	}
	return h
}

// HeadingDifference returns the minimum difference between two
// headings. (i.e., the result is always in the range [0,180].)
func HeadingDifference(a float64, b float64) float64 {
	d := Abs(NormalizeHeading(a) - NormalizeHeading(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// HeadingSignedTurn returns the signed angle to turn from cur to reach
// target, in the range [-180,180]; positive is clockwise.
func HeadingSignedTurn(cur, target float64) float64 {
	d := NormalizeHeading(target - cur)
	if d > 180 {
		d -= 360
	}
	return d
}

// UnwrapHeading returns h shifted by a multiple of 360 so that it is
// within 180 degrees of ref. This makes it possible to interpolate
// headings linearly across the 0/360 seam.
func UnwrapHeading(h, ref float64) float64 {
	return ref + HeadingSignedTurn(ref, h)
}

// Compass converts a heading expressed into degrees into a string
// corresponding to the closest compass direction.
func Compass(heading float64) string {
	h := NormalizeHeading(heading + 22.5) // now [0,45] is north, etc...
	if IsNaN(h) {
		return "Unknown"
	}
	idx := int(h / 45)
	return [...]string{"North", "Northeast", "East", "Southeast",
		"South", "Southwest", "West", "Northwest"}[idx]
}

// ShortCompass converts a heading expressed in degrees into an abbreviated
// string corresponding to the closest compass direction.
func ShortCompass(heading float64) string {
	h := NormalizeHeading(heading + 22.5)
	if IsNaN(h) {
		return "?"
	}
	idx := int(h / 45)
	return [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}[idx]
}

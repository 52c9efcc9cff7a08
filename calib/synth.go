// calib/synth.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package calib

import (
	"fmt"
	gomath "math"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/math"
)

// Equidistant describes an idealized upward-looking fisheye lens whose
// image radius grows linearly with zenith angle, optionally with a
// radial distortion term. It is used to generate calibrations for
// testing and for cameras without a measured calibration.
type Equidistant struct {
	Category      string
	Height, Width int
	// CenterX and CenterY give the optical center in pixels. If both are
	// zero, the center of the image is used.
	CenterX, CenterY float64
	// FieldOfView is the largest zenith angle imaged, in degrees. It
	// defaults to 90.
	FieldOfView float64
	// PixelsPerDegree sets the image circle's radius to
	// FieldOfView*PixelsPerDegree/(1+Distortion). By default the circle
	// fills the smaller image dimension.
	PixelsPerDegree float64
	// AzimuthOffset is the azimuth imaged straight up from the center.
	AzimuthOffset float64
	// Mirror selects counterclockwise azimuths, as seen by a camera
	// looking up at the sky with north at the top of the image.
	Mirror bool
	// Distortion bends the radius/zenith relationship. With q the radius
	// as a fraction of the image circle's radius,
	// zenith = FieldOfView * q * (1 + Distortion*q^2) / (1 + Distortion).
	// It must be greater than -1/3 to keep the relationship monotonic.
	Distortion float64
}

// Synthesize returns the calibration described by e.
func Synthesize(e Equidistant) (*AngleCalibration, error) {
	if e.Height <= 0 || e.Width <= 0 {
		return nil, fmt.Errorf("%w: invalid synthetic image size %dx%d", skycam.ErrInvalidInput, e.Width, e.Height)
	}
	if e.Distortion <= -1./3 {
		return nil, fmt.Errorf("%w: distortion %g makes the lens non-monotonic", skycam.ErrInvalidInput, e.Distortion)
	}

	fov := e.FieldOfView
	if fov == 0 {
		fov = 90
	}
	if !(fov > 0 && fov <= 90) {
		return nil, fmt.Errorf("%w: field of view %g outside (0,90]", skycam.ErrInvalidInput, fov)
	}

	cx, cy := e.CenterX, e.CenterY
	if cx == 0 && cy == 0 {
		cx, cy = float64(e.Width-1)/2, float64(e.Height-1)/2
	}

	// rmax is the radius at which the distorted zenith reaches the field
	// of view.
	rmax := float64(min(e.Width, e.Height)-1) / 2
	if e.PixelsPerDegree != 0 {
		if !(e.PixelsPerDegree > 0) {
			return nil, fmt.Errorf("%w: invalid pixels per degree %g", skycam.ErrInvalidInput, e.PixelsPerDegree)
		}
		rmax = fov * e.PixelsPerDegree / (1 + e.Distortion)
	}
	if !(rmax > 0) {
		return nil, fmt.Errorf("%w: image too small for a synthetic lens", skycam.ErrInvalidInput)
	}

	n := e.Height * e.Width
	az, zen := make([]float64, n), make([]float64, n)
	for row := range e.Height {
		for col := range e.Width {
			i := row*e.Width + col
			dx, dy := float64(col)-cx, float64(row)-cy
			r := gomath.Hypot(dx, dy)
			if r > rmax*(1+1e-12) {
				az[i], zen[i] = gomath.NaN(), gomath.NaN()
				continue
			}

			// Angle clockwise from image-up.
			theta := math.Degrees(gomath.Atan2(dx, -dy))
			if e.Mirror {
				theta = -theta
			}
			az[i] = math.NormalizeHeading(e.AzimuthOffset + theta)
			q := r / rmax
			zen[i] = min(fov*q*((1+e.Distortion*q*q)/(1+e.Distortion)), fov)
		}
	}

	category := e.Category
	if category == "" {
		category = "synthetic"
	}
	return New(category, e.Height, e.Width, az, zen)
}

// lens/lens.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package lens converts between image pixel coordinates and sky
// directions for a calibrated fisheye lens.
package lens

import (
	"fmt"
	gomath "math"
	"slices"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/calib"
	"github.com/mmp/skycam/log"
	"github.com/mmp/skycam/math"
	"github.com/mmp/skycam/util"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

const (
	// Width of the zenith bins used to fit the radius/zenith relationship.
	ZenithBinWidth = 0.25
	// Largest RMS azimuth residual, in degrees, of a radially symmetric
	// lens.
	MaxAzimuthResidual = 5.
	// Newton refinement of PixelAt.
	maxNewtonIterations = 4
	jacobianStep        = 0.5 // pixels
	// Farthest, in pixels, that PixelAt moves an estimate that lands just
	// outside the valid disk back toward the center.
	maxEdgeInset = 2.
)

// Model maps between pixel coordinates and (azimuth, zenith) directions.
// The forward direction (AngleAt) bilinearly interpolates the
// calibration. The inverse direction (PixelAt) uses a radial model of the
// lens fitted to the calibration when the Model is created: pixel radius
// from the optical center is a monotonic function of zenith, and the
// angle around the center is a linear function of azimuth.
//
// A Model is immutable and safe for concurrent use.
type Model struct {
	cal     *calib.AngleCalibration
	azimuth math.Array2D
	zenith  math.Array2D
	lg      *log.Logger

	fit    FitSummary
	radius interp.FritschButland
}

// FitSummary describes the radial model fitted to a calibration.
type FitSummary struct {
	// Optical center, in pixels.
	CenterX, CenterY float64
	// Handedness is +1 if azimuth increases clockwise around the center
	// in the image and -1 otherwise.
	Handedness float64
	// AzimuthOffset is the azimuth imaged directly above the center.
	AzimuthOffset float64
	// RMS difference in degrees between the calibrated azimuths and the
	// fitted orientation.
	AzimuthResidual float64
	FieldOfView     float64
	MaxRadius       float64
	// Zenith and radius samples that the radius function interpolates.
	Zeniths, Radii []float64
}

type Option func(*Model)

func WithLogger(lg *log.Logger) Option {
	return func(m *Model) { m.lg = lg }
}

// New fits a lens model to the calibration. It returns an error wrapping
// skycam.ErrCalibration if the calibration does not describe a radially
// symmetric lens with zenith increasing away from the center.
func New(cal *calib.AngleCalibration, opts ...Option) (*Model, error) {
	if cal == nil {
		return nil, fmt.Errorf("%w: nil calibration", skycam.ErrInvalidInput)
	}

	m := &Model{
		cal:     cal,
		azimuth: cal.AzimuthArray(),
		zenith:  cal.ZenithArray(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cal.ValidCount() < 3 {
		return nil, fmt.Errorf("%w: %s: only %d valid pixels", skycam.ErrCalibration, cal.Category(), cal.ValidCount())
	}

	m.fitCenter()
	if err := m.fitOrientation(); err != nil {
		return nil, err
	}
	if err := m.fitRadius(); err != nil {
		return nil, err
	}

	m.lg.Info("fitted lens model", "category", cal.Category(),
		"center_x", m.fit.CenterX, "center_y", m.fit.CenterY,
		"handedness", m.fit.Handedness, "azimuth_offset", m.fit.AzimuthOffset,
		"azimuth_residual", m.fit.AzimuthResidual, "fov", m.fit.FieldOfView,
		"bins", len(m.fit.Zeniths))

	return m, nil
}

// fitCenter takes the optical center to be the centroid of the pixels
// within a degree of the smallest calibrated zenith.
func (m *Model) fitCenter() {
	zmin := gomath.Inf(1)
	for _, z := range m.zenith.Data {
		if z < zmin {
			zmin = z
		}
	}

	var sx, sy float64
	var n int
	for row := range m.zenith.Rows {
		for col := range m.zenith.Cols {
			if z := m.zenith.At(row, col); z <= zmin+1 {
				sx += float64(col)
				sy += float64(row)
				n++
			}
		}
	}
	m.fit.CenterX, m.fit.CenterY = sx/float64(n), sy/float64(n)
	m.fit.FieldOfView = m.cal.MaxZenith()
}

// pixelAngle returns the angle in degrees of (col, row) around the
// optical center, clockwise from image-up, and its distance from the
// center.
func (m *Model) pixelAngle(col, row float64) (theta, r float64) {
	dx, dy := col-m.fit.CenterX, row-m.fit.CenterY
	return math.Degrees(gomath.Atan2(dx, -dy)), gomath.Hypot(dx, dy)
}

func (m *Model) fitOrientation() error {
	var maxR float64
	for row := range m.zenith.Rows {
		for col := range m.zenith.Cols {
			if !math.IsNaN(m.zenith.At(row, col)) {
				_, r := m.pixelAngle(float64(col), float64(row))
				maxR = max(maxR, r)
			}
		}
	}

	// Directions close to the center are poorly resolved; only use
	// pixels some distance out.
	minR := max(2, 0.1*maxR)
	var az, theta []float64
	for row := range m.zenith.Rows {
		for col := range m.zenith.Cols {
			a := m.azimuth.At(row, col)
			if math.IsNaN(a) {
				continue
			}
			if th, r := m.pixelAngle(float64(col), float64(row)); r >= minR {
				az = append(az, a)
				theta = append(theta, th)
			}
		}
	}
	if len(az) < 3 {
		return fmt.Errorf("%w: %s: too few pixels away from the optical center", skycam.ErrCalibration,
			m.cal.Category())
	}

	fit := func(s float64) (offset, rms float64) {
		d := make([]float64, len(az))
		for i := range az {
			d[i] = math.Radians(az[i] - s*theta[i])
		}
		offset = math.NormalizeHeading(math.Degrees(stat.CircularMean(d, nil)))

		var sum float64
		for i := range az {
			sum += math.Sqr(math.HeadingDifference(az[i], s*theta[i]+offset))
		}
		return offset, gomath.Sqrt(sum / float64(len(az)))
	}

	cwOffset, cwRMS := fit(1)
	ccwOffset, ccwRMS := fit(-1)
	if cwRMS <= ccwRMS {
		m.fit.Handedness, m.fit.AzimuthOffset, m.fit.AzimuthResidual = 1, cwOffset, cwRMS
	} else {
		m.fit.Handedness, m.fit.AzimuthOffset, m.fit.AzimuthResidual = -1, ccwOffset, ccwRMS
	}

	if m.fit.AzimuthResidual > MaxAzimuthResidual {
		return fmt.Errorf("%w: %s: azimuths are not radially symmetric (RMS residual %.2f degrees)",
			skycam.ErrCalibration, m.cal.Category(), m.fit.AzimuthResidual)
	}
	return nil
}

// fitRadius fits pixel radius as a monotonic function of zenith.
func (m *Model) fitRadius() error {
	nbins := int(m.fit.FieldOfView/ZenithBinWidth) + 1
	sumZ, sumR := make([]float64, nbins), make([]float64, nbins)
	count := make([]int, nbins)
	for row := range m.zenith.Rows {
		for col := range m.zenith.Cols {
			z := m.zenith.At(row, col)
			if math.IsNaN(z) {
				continue
			}
			_, r := m.pixelAngle(float64(col), float64(row))
			b := min(int(z/ZenithBinWidth), nbins-1)
			sumZ[b] += z
			sumR[b] += r
			count[b]++
		}
	}

	var zs, rs []float64
	for b := range nbins {
		if count[b] > 0 {
			zs = append(zs, sumZ[b]/float64(count[b]))
			rs = append(rs, sumR[b]/float64(count[b]))
		}
	}
	if len(zs) < 3 {
		return fmt.Errorf("%w: %s: only %d populated zenith bins", skycam.ErrCalibration, m.cal.Category(), len(zs))
	}

	maxR := slices.Max(rs)
	tolerance := max(1, 0.01*maxR)
	runMax := rs[0]
	for i, r := range rs {
		if r < runMax-tolerance {
			return fmt.Errorf("%w: %s: radius decreases from %.1f to %.1f pixels at zenith %.2f",
				skycam.ErrCalibration, m.cal.Category(), runMax, r, zs[i])
		}
		runMax = max(runMax, r)
		rs[i] = runMax
	}

	// Anchor the center at zenith 0.
	if zs[0] > 0 {
		zs = append([]float64{0}, zs...)
		rs = append([]float64{0}, rs...)
	} else {
		rs[0] = 0
	}

	// Extend linearly to the edge of the field of view so that zeniths
	// beyond the last bin's mean aren't clamped.
	n := len(zs)
	if fov := m.fit.FieldOfView; fov > zs[n-1]+1e-9 {
		slope := (rs[n-1] - rs[n-2]) / (zs[n-1] - zs[n-2])
		zs = append(zs, fov)
		rs = append(rs, rs[n-1]+slope*(fov-zs[n-1]))
	}

	if err := m.radius.Fit(zs, rs); err != nil {
		return fmt.Errorf("%w: %s: %w", skycam.ErrCalibration, m.cal.Category(), err)
	}
	m.fit.Zeniths, m.fit.Radii = zs, rs
	m.fit.MaxRadius = rs[len(rs)-1]
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Accessors

// Calibration returns the calibration that the model was fitted to.
func (m *Model) Calibration() *calib.AngleCalibration { return m.cal }

// FieldOfView returns the largest zenith angle that the lens images.
func (m *Model) FieldOfView() float64 { return m.fit.FieldOfView }

// Center returns the fitted optical center in pixels.
func (m *Model) Center() (x, y float64) { return m.fit.CenterX, m.fit.CenterY }

// Fit returns a description of the fitted radial model.
func (m *Model) Fit() FitSummary {
	f := m.fit
	f.Zeniths, f.Radii = slices.Clone(f.Zeniths), slices.Clone(f.Radii)
	return f
}

// Radius returns the fitted pixel radius at the given zenith angle, or
// NaN if the zenith is outside the field of view.
func (m *Model) Radius(zenith float64) float64 {
	if !(zenith >= 0 && zenith <= m.fit.FieldOfView) {
		return gomath.NaN()
	}
	return m.radius.Predict(zenith)
}

///////////////////////////////////////////////////////////////////////////
// Forward: pixels to angles

// AngleAt returns the azimuth and zenith in degrees imaged at the
// fractional pixel position (px = column, py = row). Both are NaN if the
// position is outside the image or any contributing calibration sample
// is outside the valid disk.
func (m *Model) AngleAt(px, py float64) (azimuth, zenith float64) {
	zenith = m.zenith.Bilinear(px, py)
	if math.IsNaN(zenith) {
		return gomath.NaN(), gomath.NaN()
	}
	azimuth = m.azimuth.BilinearHeading(px, py)
	if math.IsNaN(azimuth) {
		return gomath.NaN(), gomath.NaN()
	}
	return
}

// AnglesAt is the vectorized form of AngleAt.
func (m *Model) AnglesAt(px, py []float64) (azimuth, zenith []float64, err error) {
	if len(px) != len(py) {
		return nil, nil, fmt.Errorf("%w: %d x coordinates but %d y coordinates", skycam.ErrInvalidInput,
			len(px), len(py))
	}

	azimuth, zenith = make([]float64, len(px)), make([]float64, len(px))
	err = util.ForEachBand(len(px), func(start, end int) error {
		for i := start; i < end; i++ {
			azimuth[i], zenith[i] = m.AngleAt(px[i], py[i])
		}
		return nil
	})
	return
}

///////////////////////////////////////////////////////////////////////////
// Inverse: angles to pixels

// guess returns the pixel that the radial model maps (azimuth, zenith) to.
func (m *Model) guess(azimuth, zenith float64) (px, py float64) {
	r := m.radius.Predict(zenith)
	theta := math.Radians(m.fit.Handedness * (azimuth - m.fit.AzimuthOffset))
	return m.fit.CenterX + r*gomath.Sin(theta), m.fit.CenterY - r*gomath.Cos(theta)
}

// plane maps a direction to the azimuthal equidistant plane, where the
// forward map is smooth across the 0/360 azimuth seam and at the zenith.
func plane(azimuth, zenith float64) (u, v float64) {
	s, c := gomath.Sincos(math.Radians(azimuth))
	return zenith * s, zenith * c
}

func (m *Model) forwardPlane(px, py float64) (u, v float64, ok bool) {
	az, zen := m.AngleAt(px, py)
	if math.IsNaN(zen) {
		return 0, 0, false
	}
	u, v = plane(az, zen)
	return u, v, true
}

// inset moves (px, py) toward the optical center until it reaches the
// outermost point along that ray with a valid forward angle, searching
// no farther than maxEdgeInset pixels.
func (m *Model) inset(px, py float64) (x, y float64, ok bool) {
	dx, dy := px-m.fit.CenterX, py-m.fit.CenterY
	r := gomath.Hypot(dx, dy)
	if r == 0 {
		return 0, 0, false
	}
	at := func(rr float64) (float64, float64) {
		return m.fit.CenterX + dx*rr/r, m.fit.CenterY + dy*rr/r
	}

	lo, hi := max(0, r-maxEdgeInset), r
	if _, _, ok := m.forwardPlane(at(lo)); !ok {
		return 0, 0, false
	}
	for range 24 {
		mid := (lo + hi) / 2
		if _, _, ok := m.forwardPlane(at(mid)); ok {
			lo = mid
		} else {
			hi = mid
		}
	}
	x, y = at(lo)
	return x, y, true
}

// PixelAt returns the fractional pixel position (px = column, py = row)
// that images the given direction. Both are NaN if the zenith is negative,
// beyond the field of view or if either input is not finite.
//
// The radial model gives an initial estimate that is then refined with a
// few Newton-Raphson steps against the bilinear forward map so that
// AngleAt(PixelAt(a, z)) reproduces (a, z) closely. Refinement never
// leaves the valid disk. An estimate that falls just outside it, as at
// the edge of the field of view, is first moved inward onto the disk; if
// that isn't possible, the result is NaN. Any finite result therefore has
// finite angles under AngleAt.
func (m *Model) PixelAt(azimuth, zenith float64) (px, py float64) {
	if !math.IsFinite(azimuth) || !(zenith >= 0 && zenith <= m.fit.FieldOfView) {
		return gomath.NaN(), gomath.NaN()
	}
	azimuth = math.NormalizeHeading(azimuth)

	px, py = m.guess(azimuth, zenith)
	tu, tv := plane(azimuth, zenith)

	u, v, ok := m.forwardPlane(px, py)
	if !ok {
		if px, py, ok = m.inset(px, py); !ok {
			return gomath.NaN(), gomath.NaN()
		}
		u, v, _ = m.forwardPlane(px, py)
	}
	bestErr := math.Sqr(u-tu) + math.Sqr(v-tv)
	x, y := px, py
	for range maxNewtonIterations {
		if bestErr < 1e-14 {
			break
		}

		// Central-difference Jacobian of (u, v) with respect to (x, y).
		ux0, vx0, ok0 := m.forwardPlane(x-jacobianStep, y)
		ux1, vx1, ok1 := m.forwardPlane(x+jacobianStep, y)
		uy0, vy0, ok2 := m.forwardPlane(x, y-jacobianStep)
		uy1, vy1, ok3 := m.forwardPlane(x, y+jacobianStep)
		if !ok0 || !ok1 || !ok2 || !ok3 {
			break
		}
		dudx, dvdx := (ux1-ux0)/(2*jacobianStep), (vx1-vx0)/(2*jacobianStep)
		dudy, dvdy := (uy1-uy0)/(2*jacobianStep), (vy1-vy0)/(2*jacobianStep)
		det := dudx*dvdy - dudy*dvdx
		if det == 0 || !math.IsFinite(det) {
			break
		}

		eu, ev := u-tu, v-tv
		nx := x - (dvdy*eu-dudy*ev)/det
		ny := y - (-dvdx*eu+dudx*ev)/det

		nu, nv, ok := m.forwardPlane(nx, ny)
		if !ok {
			break
		}
		e := math.Sqr(nu-tu) + math.Sqr(nv-tv)
		if e >= bestErr {
			break
		}
		x, y, u, v, bestErr = nx, ny, nu, nv, e
	}
	return x, y
}

// PixelsAt is the vectorized form of PixelAt.
func (m *Model) PixelsAt(azimuth, zenith []float64) (px, py []float64, err error) {
	if len(azimuth) != len(zenith) {
		return nil, nil, fmt.Errorf("%w: %d azimuths but %d zeniths", skycam.ErrInvalidInput,
			len(azimuth), len(zenith))
	}

	px, py = make([]float64, len(azimuth)), make([]float64, len(azimuth))
	err = util.ForEachBand(len(azimuth), func(start, end int) error {
		for i := start; i < end; i++ {
			px[i], py[i] = m.PixelAt(azimuth[i], zenith[i])
		}
		return nil
	})
	return
}

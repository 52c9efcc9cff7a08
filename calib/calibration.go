// calib/calibration.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package calib holds per-pixel angle calibrations for sky cameras and
// the means to load, store and synthesize them.
package calib

import (
	"encoding/binary"
	"fmt"
	gomath "math"
	"slices"
	"strconv"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/math"

	"github.com/cespare/xxhash/v2"
)

// AngleCalibration gives, for every pixel of a camera's images, the
// azimuth and zenith angle (both in degrees) of the direction imaged at
// that pixel. Pixels outside the lens's valid disk are NaN in both
// arrays. An AngleCalibration is immutable once created and may be
// shared freely.
type AngleCalibration struct {
	category      string
	height, width int
	azimuth       []float64
	zenith        []float64
	nvalid        int
	maxZenith     float64
	fingerprint   uint64
}

// New validates the given row-major angle arrays and returns an
// AngleCalibration that holds copies of them. A pixel is valid only if
// both its azimuth and its zenith are finite; a non-finite value in
// either array makes both NaN. Azimuths are normalized to [0,360).
// Finite zeniths outside [0,90] are an error.
func New(category string, height, width int, azimuth, zenith []float64) (*AngleCalibration, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: %q: invalid shape %dx%d", skycam.ErrCalibration, category, height, width)
	}
	n := height * width
	if len(azimuth) != n || len(zenith) != n {
		return nil, fmt.Errorf("%w: %q: expected %d samples for %dx%d image, got %d azimuth and %d zenith",
			skycam.ErrCalibration, category, n, height, width, len(azimuth), len(zenith))
	}

	c := &AngleCalibration{
		category:  category,
		height:    height,
		width:     width,
		azimuth:   make([]float64, n),
		zenith:    make([]float64, n),
		maxZenith: gomath.NaN(),
	}
	for i := range n {
		az, zen := azimuth[i], zenith[i]
		if !math.IsFinite(az) || !math.IsFinite(zen) {
			c.azimuth[i], c.zenith[i] = gomath.NaN(), gomath.NaN()
			continue
		}
		if zen < 0 || zen > 90 {
			return nil, fmt.Errorf("%w: %q: zenith %g at pixel (%d,%d) outside [0,90]", skycam.ErrCalibration,
				category, zen, i/width, i%width)
		}
		c.azimuth[i] = math.NormalizeHeading(az)
		c.zenith[i] = zen
		c.nvalid++
		if c.nvalid == 1 || zen > c.maxZenith {
			c.maxZenith = zen
		}
	}

	c.fingerprint = c.computeFingerprint()
	return c, nil
}

func (c *AngleCalibration) computeFingerprint() uint64 {
	h := xxhash.New()
	h.WriteString(c.category)
	h.WriteString("\x00")
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeU64(uint64(c.height))
	writeU64(uint64(c.width))
	for _, v := range c.azimuth {
		writeU64(gomath.Float64bits(v))
	}
	for _, v := range c.zenith {
		writeU64(gomath.Float64bits(v))
	}
	return h.Sum64()
}

func (c *AngleCalibration) Category() string { return c.category }

// Shape returns the image height and width that the calibration covers.
func (c *AngleCalibration) Shape() (height, width int) { return c.height, c.width }

func (c *AngleCalibration) Height() int { return c.height }
func (c *AngleCalibration) Width() int  { return c.width }

// Azimuth returns a copy of the row-major azimuth array.
func (c *AngleCalibration) Azimuth() []float64 { return slices.Clone(c.azimuth) }

// Zenith returns a copy of the row-major zenith array.
func (c *AngleCalibration) Zenith() []float64 { return slices.Clone(c.zenith) }

// AzimuthArray and ZenithArray return copies of the angle maps as 2D
// arrays.
func (c *AngleCalibration) AzimuthArray() math.Array2D {
	return math.Array2D{Rows: c.height, Cols: c.width, Data: c.Azimuth()}
}

func (c *AngleCalibration) ZenithArray() math.Array2D {
	return math.Array2D{Rows: c.height, Cols: c.width, Data: c.Zenith()}
}

// At returns the azimuth and zenith at the given pixel; both are NaN for
// pixels outside the valid disk or outside the image.
func (c *AngleCalibration) At(row, col int) (azimuth, zenith float64) {
	if row < 0 || row >= c.height || col < 0 || col >= c.width {
		return gomath.NaN(), gomath.NaN()
	}
	i := row*c.width + col
	return c.azimuth[i], c.zenith[i]
}

func (c *AngleCalibration) Valid(row, col int) bool {
	_, zen := c.At(row, col)
	return !gomath.IsNaN(zen)
}

// ValidCount returns the number of pixels inside the valid disk.
func (c *AngleCalibration) ValidCount() int { return c.nvalid }

// MaxZenith returns the largest valid zenith angle, or NaN if there are
// no valid pixels.
func (c *AngleCalibration) MaxZenith() float64 { return c.maxZenith }

// Fingerprint returns a hash of the calibration's category, shape and
// angle data. Calibrations with different contents have different
// fingerprints (modulo hash collisions).
func (c *AngleCalibration) Fingerprint() uint64 { return c.fingerprint }

func (c *AngleCalibration) FingerprintHex() string {
	return strconv.FormatUint(c.fingerprint, 16)
}

func (c *AngleCalibration) String() string {
	return fmt.Sprintf("%s (%dx%d, %d valid, fingerprint %s)", c.category, c.width, c.height,
		c.nvalid, c.FingerprintHex())
}

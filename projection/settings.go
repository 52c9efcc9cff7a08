// projection/settings.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package projection rectifies raw sky-camera images onto a regular
// north-up grid in a horizontal plane at an assumed cloud height. The
// per-cell source pixel coordinates that this requires are expensive to
// compute, so they are kept in a CoordinateCache that persists them on
// disk keyed by the calibration and projection settings.
package projection

import (
	"fmt"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/math"
)

const (
	DefaultResolution  = 1024
	DefaultCloudHeight = 10000. // meters
	DefaultSquareSize  = 75000. // meters
	DefaultMaxZenith   = 80.    // degrees

	MinResolution = 16
	MaxResolution = 8192
)

// Settings describes the rectified output grid: Resolution x Resolution
// cells covering a SquareSize x SquareSize meter square centered above
// the camera at CloudHeight meters. Cells whose direction is more than
// MaxZenith degrees from the vertical are left empty.
type Settings struct {
	Resolution  int     `json:"resolution" yaml:"resolution"`
	CloudHeight float64 `json:"cloud_height" yaml:"cloud_height"`
	SquareSize  float64 `json:"square_size" yaml:"square_size"`
	MaxZenith   float64 `json:"max_zenith" yaml:"max_zenith"`
}

func DefaultSettings() Settings {
	return Settings{
		Resolution:  DefaultResolution,
		CloudHeight: DefaultCloudHeight,
		SquareSize:  DefaultSquareSize,
		MaxZenith:   DefaultMaxZenith,
	}
}

// WithDefaults returns a copy of s where zero-valued fields are replaced
// with their defaults.
func (s Settings) WithDefaults() Settings {
	if s.Resolution == 0 {
		s.Resolution = DefaultResolution
	}
	if s.CloudHeight == 0 {
		s.CloudHeight = DefaultCloudHeight
	}
	if s.SquareSize == 0 {
		s.SquareSize = DefaultSquareSize
	}
	if s.MaxZenith == 0 {
		s.MaxZenith = DefaultMaxZenith
	}
	return s
}

func (s Settings) Validate() error {
	if s.Resolution < MinResolution || s.Resolution > MaxResolution {
		return fmt.Errorf("%w: resolution %d outside [%d,%d]", skycam.ErrInvalidInput, s.Resolution,
			MinResolution, MaxResolution)
	}
	if !math.IsFinite(s.CloudHeight) || s.CloudHeight <= 0 {
		return fmt.Errorf("%w: cloud height %g must be finite and positive", skycam.ErrInvalidInput, s.CloudHeight)
	}
	if !math.IsFinite(s.SquareSize) || s.SquareSize <= 0 {
		return fmt.Errorf("%w: square size %g must be finite and positive", skycam.ErrInvalidInput, s.SquareSize)
	}
	if !(s.MaxZenith > 0 && s.MaxZenith < 90) {
		return fmt.Errorf("%w: max zenith %g outside (0,90)", skycam.ErrInvalidInput, s.MaxZenith)
	}
	return nil
}

func (s Settings) String() string {
	return fmt.Sprintf("%dpx %gm square at %gm, zenith <= %g", s.Resolution, s.SquareSize, s.CloudHeight,
		s.MaxZenith)
}

// Grid returns the output grid described by s.
func (s Settings) Grid() Grid {
	return Grid{
		Resolution:  s.Resolution,
		CloudHeight: s.CloudHeight,
		SquareSize:  s.SquareSize,
	}
}

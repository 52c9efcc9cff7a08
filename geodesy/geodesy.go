// geodesy/geodesy.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package geodesy relates a ground-based camera to targets in the sky:
// the direction (azimuth and zenith angle) in which a target at a given
// position appears, and the position of a target seen in a given
// direction at an assumed altitude.
package geodesy

import (
	"fmt"
	gomath "math"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/math"
)

// CameraPosition gives the location of the camera; latitude and
// longitude are in degrees and altitude is in meters.
type CameraPosition struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Altitude  float64 `json:"altitude" yaml:"altitude"`
}

// DefaultCameraPosition returns the position of the reference camera
// site.
func DefaultCameraPosition() CameraPosition {
	return CameraPosition{Latitude: 48.6, Longitude: 2.35, Altitude: 90}
}

func (c CameraPosition) Validate() error {
	if !math.AllFinite(c.Latitude, c.Longitude, c.Altitude) {
		return fmt.Errorf("%w: camera position %+v is not finite", skycam.ErrInvalidInput, c)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: camera latitude %g outside [-90,90]", skycam.ErrInvalidInput, c.Latitude)
	}
	return nil
}

func (c CameraPosition) String() string {
	return fmt.Sprintf("(%.6f, %.6f, %.1fm)", c.Latitude, c.Longitude, c.Altitude)
}

// Engine performs the camera/target computations with a single Earth
// model, so that its forward and inverse directions are consistent.
type Engine struct {
	model Model
}

// NewEngine returns an Engine using the given Earth model; a nil model
// selects WGS84.
func NewEngine(model Model) *Engine {
	if model == nil {
		model = WGS84{}
	}
	return &Engine{model: model}
}

func (e *Engine) Model() Model { return e.model }

// Direction returns the azimuth and zenith angle in degrees of the
// target at (lon, lat, alt) as seen from the camera. The azimuth is the
// initial bearing of the geodesic from the camera to the target, in
// [0,360), and is 0 for a target directly above or below the camera.
// The zenith angle is measured from the local vertical: 0 is straight
// up, 90 the horizon; targets below the horizon have zenith angles
// greater than 90. A target coincident with the camera has a NaN zenith.
func (e *Engine) Direction(cam CameraPosition, lon, lat, alt float64) (azimuth, zenith float64) {
	if !math.AllFinite(lon, lat, alt) {
		return gomath.NaN(), gomath.NaN()
	}
	azimuth, ground := e.model.Inverse(cam.Latitude, cam.Longitude, lat, lon)
	dz := alt - cam.Altitude
	if ground == 0 && dz == 0 {
		return azimuth, gomath.NaN()
	}
	return azimuth, math.Degrees(gomath.Atan2(ground, dz))
}

// BearingAndElevation is the vectorized form of Direction. The slices
// must all have the same length.
func (e *Engine) BearingAndElevation(cam CameraPosition, lon, lat, alt []float64) (azimuth, zenith []float64, err error) {
	if len(lon) != len(lat) || len(lon) != len(alt) {
		return nil, nil, fmt.Errorf("%w: mismatched lengths lon %d, lat %d, alt %d", skycam.ErrInvalidInput,
			len(lon), len(lat), len(alt))
	}

	azimuth, zenith = make([]float64, len(lon)), make([]float64, len(lon))
	for i := range lon {
		azimuth[i], zenith[i] = e.Direction(cam, lon[i], lat[i], alt[i])
	}
	return
}

// Locate returns the longitude and latitude of the point at altitude alt
// seen from the camera in the given direction. It is the inverse of
// Direction for targets at that altitude. Directions that never reach the
// altitude (for example, upward when alt is below the camera) give NaN.
func (e *Engine) Locate(cam CameraPosition, azimuth, zenith, alt float64) (lon, lat float64) {
	if !math.AllFinite(azimuth, zenith, alt) {
		return gomath.NaN(), gomath.NaN()
	}
	ground := (alt - cam.Altitude) * gomath.Tan(math.Radians(zenith))
	if !math.IsFinite(ground) || ground < 0 {
		return gomath.NaN(), gomath.NaN()
	}
	lat, lon = e.model.Direct(cam.Latitude, cam.Longitude, azimuth, ground)
	return lon, lat
}

// Inverse is the vectorized form of Locate.
func (e *Engine) Inverse(cam CameraPosition, azimuth, zenith, alt []float64) (lon, lat []float64, err error) {
	if len(azimuth) != len(zenith) || len(azimuth) != len(alt) {
		return nil, nil, fmt.Errorf("%w: mismatched lengths azimuth %d, zenith %d, alt %d", skycam.ErrInvalidInput,
			len(azimuth), len(zenith), len(alt))
	}

	lon, lat = make([]float64, len(azimuth)), make([]float64, len(azimuth))
	for i := range azimuth {
		lon[i], lat[i] = e.Locate(cam, azimuth[i], zenith[i], alt[i])
	}
	return
}

// GroundDistance returns the geodesic distance in meters along the
// Earth's surface from the camera to each (lon, lat).
func (e *Engine) GroundDistance(cam CameraPosition, lon, lat []float64) ([]float64, error) {
	if len(lon) != len(lat) {
		return nil, fmt.Errorf("%w: mismatched lengths lon %d, lat %d", skycam.ErrInvalidInput, len(lon), len(lat))
	}

	d := make([]float64, len(lon))
	for i := range lon {
		_, d[i] = e.model.Inverse(cam.Latitude, cam.Longitude, lat[i], lon[i])
	}
	return d, nil
}

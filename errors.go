// errors.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package skycam holds the error taxonomy shared by the calibration,
// lens, projection, geodesy and aircraft packages. Errors returned by
// those packages wrap one of the sentinels below and so can be tested
// with errors.Is.
package skycam

import (
	"errors"
)

var (
	// ErrConfiguration indicates a mismatch between a calibration and the
	// settings or cached mapping derived from it.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidInput is returned when arguments are rejected at an API
	// boundary: image shape mismatches, vertices without altitude,
	// non-finite settings, slices of differing lengths.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCalibration indicates a corrupt angle calibration.
	ErrCalibration = errors.New("invalid calibration")
	ErrProjection  = errors.New("projection failed")
)

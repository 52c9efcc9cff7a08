// geodesy/earth.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package geodesy

import (
	"fmt"
	gomath "math"
	"strings"

	"github.com/mmp/skycam"
	"github.com/mmp/skycam/math"

	geo "github.com/kellydunn/golang-geo"
)

// Model is an Earth shape that supports the two geodesic problems. All
// angles are in degrees and distances in meters.
type Model interface {
	// Inverse returns the initial bearing in [0,360) and the geodesic
	// distance from (lat1, lon1) to (lat2, lon2). The bearing is 0 when
	// the two points coincide.
	Inverse(lat1, lon1, lat2, lon2 float64) (azimuth, distance float64)
	// Direct returns the point reached by traveling distance along the
	// geodesic leaving (lat, lon) with the given initial bearing.
	Direct(lat, lon, azimuth, distance float64) (lat2, lon2 float64)
	Name() string
}

// ModelNamed returns the Earth model with the given name: "wgs84" or
// "sphere". An empty name selects WGS84.
func ModelNamed(name string) (Model, error) {
	switch strings.ToLower(name) {
	case "", "wgs84":
		return WGS84{}, nil
	case "sphere":
		return Sphere{}, nil
	default:
		return nil, fmt.Errorf("%w: %q: unknown earth model", skycam.ErrInvalidInput, name)
	}
}

// normalizeLongitude maps lon to [-180,180).
func normalizeLongitude(lon float64) float64 {
	return math.NormalizeHeading(lon+180) - 180
}

///////////////////////////////////////////////////////////////////////////
// Sphere

// Sphere is a spherical Earth of radius geo.EARTH_RADIUS, solved with
// great-circle formulas.
type Sphere struct{}

func (Sphere) Name() string { return "sphere" }

func (Sphere) Inverse(lat1, lon1, lat2, lon2 float64) (azimuth, distance float64) {
	p1, p2 := geo.NewPoint(lat1, lon1), geo.NewPoint(lat2, lon2)
	distance = 1000 * p1.GreatCircleDistance(p2)
	if distance == 0 {
		return 0, 0
	}
	return math.NormalizeHeading(p1.BearingTo(p2)), distance
}

func (Sphere) Direct(lat, lon, azimuth, distance float64) (lat2, lon2 float64) {
	if distance == 0 {
		return lat, lon
	}
	p := geo.NewPoint(lat, lon).PointAtDistanceAndBearing(distance/1000, azimuth)
	return p.Lat(), p.Lng()
}

///////////////////////////////////////////////////////////////////////////
// WGS84

const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
	wgs84B = wgs84A * (1 - wgs84F)
)

// WGS84 is the WGS84 ellipsoid, solved with Vincenty's formulae.
// Nearly antipodal points, for which Vincenty's inverse iteration does
// not converge, fall back to the sphere.
type WGS84 struct{}

func (WGS84) Name() string { return "wgs84" }

func (WGS84) Inverse(lat1, lon1, lat2, lon2 float64) (azimuth, distance float64) {
	if !math.AllFinite(lat1, lon1, lat2, lon2) {
		return gomath.NaN(), gomath.NaN()
	}
	if lat1 == lat2 && normalizeLongitude(lon1) == normalizeLongitude(lon2) {
		return 0, 0
	}

	L := math.Radians(normalizeLongitude(lon2 - lon1))
	U1 := gomath.Atan((1 - wgs84F) * gomath.Tan(math.Radians(lat1)))
	U2 := gomath.Atan((1 - wgs84F) * gomath.Tan(math.Radians(lat2)))
	sinU1, cosU1 := gomath.Sincos(U1)
	sinU2, cosU2 := gomath.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64
	converged := false
	for range 200 {
		sinLambda, cosLambda := gomath.Sincos(lambda)
		sinSigma = gomath.Sqrt(math.Sqr(cosU2*sinLambda) + math.Sqr(cosU1*sinU2-sinU1*cosU2*cosLambda))
		if sinSigma == 0 {
			return 0, 0
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = gomath.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		if cosSqAlpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		} else {
			cos2SigmaM = 0 // equatorial line
		}
		C := wgs84F / 16 * cosSqAlpha * (4 + wgs84F*(4-3*cosSqAlpha))
		prev := lambda
		lambda = L + (1-C)*wgs84F*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if gomath.Abs(lambda-prev) < 1e-12 {
			converged = true
			break
		}
	}
	if !converged {
		return Sphere{}.Inverse(lat1, lon1, lat2, lon2)
	}

	uSq := cosSqAlpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))
	distance = wgs84B * A * (sigma - deltaSigma)

	sinLambda, cosLambda := gomath.Sincos(lambda)
	azimuth = math.Degrees(gomath.Atan2(cosU2*sinLambda, cosU1*sinU2-sinU1*cosU2*cosLambda))
	return math.NormalizeHeading(azimuth), distance
}

func (WGS84) Direct(lat, lon, azimuth, distance float64) (lat2, lon2 float64) {
	if !math.AllFinite(lat, lon, azimuth, distance) {
		return gomath.NaN(), gomath.NaN()
	}
	if distance == 0 {
		return lat, lon
	}

	sinAlpha1, cosAlpha1 := gomath.Sincos(math.Radians(azimuth))
	tanU1 := (1 - wgs84F) * gomath.Tan(math.Radians(lat))
	cosU1 := 1 / gomath.Sqrt(1+tanU1*tanU1)
	sinU1 := tanU1 * cosU1
	sigma1 := gomath.Atan2(tanU1, cosAlpha1)
	sinAlpha := cosU1 * sinAlpha1
	cosSqAlpha := 1 - sinAlpha*sinAlpha
	uSq := cosSqAlpha * (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))

	sigma := distance / (wgs84B * A)
	var sinSigma, cosSigma, cos2SigmaM float64
	for range 200 {
		cos2SigmaM = gomath.Cos(2*sigma1 + sigma)
		sinSigma, cosSigma = gomath.Sincos(sigma)
		deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
			B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))
		prev := sigma
		sigma = distance/(wgs84B*A) + deltaSigma
		if gomath.Abs(sigma-prev) < 1e-12 {
			break
		}
	}
	cos2SigmaM = gomath.Cos(2*sigma1 + sigma)
	sinSigma, cosSigma = gomath.Sincos(sigma)

	x := sinU1*sinSigma - cosU1*cosSigma*cosAlpha1
	phi2 := gomath.Atan2(sinU1*cosSigma+cosU1*sinSigma*cosAlpha1, (1-wgs84F)*gomath.Sqrt(sinAlpha*sinAlpha+x*x))
	lambda := gomath.Atan2(sinSigma*sinAlpha1, cosU1*cosSigma-sinU1*sinSigma*cosAlpha1)
	C := wgs84F / 16 * cosSqAlpha * (4 + wgs84F*(4-3*cosSqAlpha))
	L := lambda - (1-C)*wgs84F*sinAlpha*(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

	return math.Degrees(phi2), normalizeLongitude(lon + math.Degrees(L))
}

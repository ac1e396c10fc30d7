// pkg/datum/datum.go - Chinese map datum corrections (BD09, GCJ02 -> WGS84)
package datum

import (
	"math"

	"github.com/paulmach/orb"
)

// Calibration constants shared by the whole BD09/GCJ02 formula family.
// pi and xPi are variables so that xPi is rounded in float64 the same way
// the published reference implementation rounds it.
var (
	pi  = math.Pi
	xPi = pi * 3000.0 / 180.0
)

const (
	// semiMajorAxis is the Krasovsky 1940 semi-major axis used by GCJ02
	semiMajorAxis = 6378245.0
	// eccentricitySq is the first eccentricity squared of the same ellipsoid
	eccentricitySq = 0.00669342162296594323
)

// chinaBound is the rough mainland bounding box used by OutOfChina.
var chinaBound = orb.Bound{
	Min: orb.Point{72.004, 0.8293},
	Max: orb.Point{137.8347, 55.8271},
}

// BD09ToGCJ02 converts a Baidu (BD09) coordinate to the Mars (GCJ02) datum.
func BD09ToGCJ02(lon, lat float64) (float64, float64) {
	x := lon - 0.0065
	y := lat - 0.006
	z := math.Sqrt(x*x+y*y) - 0.00002*math.Sin(y*xPi)
	theta := math.Atan2(y, x) - 0.000003*math.Cos(x*xPi)
	return z * math.Cos(theta), z * math.Sin(theta)
}

// GCJ02ToWGS84 converts a Mars (GCJ02) coordinate to WGS84.
//
// The offset is estimated at the GCJ02 point itself and reflected back, so the
// result is a one-step approximation of the inverse (sub-meter to a few meters
// of residual error), not an exact inverse. The out-of-China short-circuit is
// deliberately not applied here; see OutOfChina.
func GCJ02ToWGS84(lon, lat float64) (float64, float64) {
	dlat := transformLat(lon-105.0, lat-35.0)
	dlng := transformLng(lon-105.0, lat-35.0)
	radlat := lat / 180.0 * pi
	magic := math.Sin(radlat)
	magic = 1 - eccentricitySq*magic*magic
	sqrtmagic := math.Sqrt(magic)
	dlat = (dlat * 180.0) / ((semiMajorAxis * (1 - eccentricitySq)) / (magic * sqrtmagic) * pi)
	dlng = (dlng * 180.0) / (semiMajorAxis / sqrtmagic * math.Cos(radlat) * pi)
	mglat := lat + dlat
	mglng := lon + dlng
	return lon*2 - mglng, lat*2 - mglat
}

// BD09ToWGS84 converts a Baidu (BD09) coordinate to WGS84 by way of GCJ02.
func BD09ToWGS84(lon, lat float64) (float64, float64) {
	return GCJ02ToWGS84(BD09ToGCJ02(lon, lat))
}

// OutOfChina reports whether a coordinate lies outside the mainland bounding
// box for which the obfuscation formulas are defined.
//
// None of the conversions in this package call it: datasets are assumed to be
// inside China. Callers that mix regions can filter with it themselves.
func OutOfChina(lon, lat float64) bool {
	return !chinaBound.Contains(orb.Point{lon, lat})
}

// transformLat is the fitted latitude offset series.
func transformLat(lng, lat float64) float64 {
	ret := -100.0 + 2.0*lng + 3.0*lat + 0.2*lat*lat +
		0.1*lng*lat + 0.2*math.Sqrt(math.Abs(lng))
	ret += (20.0*math.Sin(6.0*lng*pi) + 20.0*
		math.Sin(2.0*lng*pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(lat*pi) + 40.0*
		math.Sin(lat/3.0*pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(lat/12.0*pi) + 320*
		math.Sin(lat*pi/30.0)) * 2.0 / 3.0
	return ret
}

// transformLng is the fitted longitude offset series.
func transformLng(lng, lat float64) float64 {
	ret := 300.0 + lng + 2.0*lat + 0.1*lng*lng +
		0.1*lng*lat + 0.1*math.Sqrt(math.Abs(lng))
	ret += (20.0*math.Sin(6.0*lng*pi) + 20.0*
		math.Sin(2.0*lng*pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(lng*pi) + 40.0*
		math.Sin(lng/3.0*pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(lng/12.0*pi) + 300.0*
		math.Sin(lng/30.0*pi)) * 2.0 / 3.0
	return ret
}

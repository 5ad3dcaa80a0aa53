// Package geo provides the great-circle math used by the eligibility filter.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used for haversine distances.
const EarthRadiusMiles = 3958.8

// DistanceMiles returns the haversine distance in miles between two
// coordinate pairs.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Pow(math.Sin(dLng/2), 2)
	return EarthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Clamp01 clamps x to the [0,1] interval.
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

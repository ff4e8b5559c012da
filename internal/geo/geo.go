// Package geo computes great-circle distances between coordinates.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6_371_000.0

// DefaultMaxMeters is how close a player must be to a task location.
const DefaultMaxMeters = 1000.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine distance in meters between two coordinates.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := radians(lat1)
	rlat2 := radians(lat2)
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push a just past 1 for near-antipodal points.
	a = min(max(a, 0), 1)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Between is Distance for two points.
func Between(a, b Point) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

// WithinRange reports whether current is at most maxMeters from target.
// A non-positive maxMeters falls back to DefaultMaxMeters.
func WithinRange(current, target Point, maxMeters float64) bool {
	if maxMeters <= 0 {
		maxMeters = DefaultMaxMeters
	}
	return Between(current, target) <= maxMeters
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers
)

// HaversineDistance calculates the great-circle distance between two points
// in meters using the Haversine formula
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Interpolate returns the point at fraction t (0..1) along the great circle
// between two points.
func Interpolate(t, lat1, lng1, lat2, lng2 float64) (float64, float64) {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)

	p := s2.Interpolate(t, s2.PointFromLatLng(p1), s2.PointFromLatLng(p2))
	ll := s2.LatLngFromPoint(p)

	return ll.Lat.Degrees(), ll.Lng.Degrees()
}

// Midpoint calculates the midpoint between two points
func Midpoint(lat1, lng1, lat2, lng2 float64) (float64, float64) {
	return Interpolate(0.5, lat1, lng1, lat2, lng2)
}

// ValidCoordinate reports whether lat/lng are finite and within range.
func ValidCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

package spatial

import "math"

// degToMeters converts degree-scaled equirectangular distances to meters.
const degToMeters = math.Pi / 180 * EarthRadiusMeters

// PointToSegmentDist computes the perpendicular distance in meters from
// point P to segment AB, working in an equirectangular projection. Good
// enough for the short corridor distances the route estimator needs.
func PointToSegmentDist(pLat, pLng, aLat, aLng, bLat, bLng float64) float64 {
	cosLat := math.Cos((aLat + bLat) / 2 * math.Pi / 180)

	ax := aLng * cosLat
	ay := aLat
	bx := bLng * cosLat
	by := bLat
	px := pLng * cosLat
	py := pLat

	if aLat == bLat && aLng == bLng {
		ex := px - ax
		ey := py - ay
		return math.Sqrt(ex*ex+ey*ey) * degToMeters
	}

	dx := bx - ax
	dy := by - ay
	lenSq := dx*dx + dy*dy

	var t float64
	if lenSq > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / lenSq
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}

	ex := px - (ax + t*dx)
	ey := py - (ay + t*dy)
	return math.Sqrt(ex*ex+ey*ey) * degToMeters
}

// DistanceToPath returns the minimum distance in meters from the point to
// any segment of the polyline.
func DistanceToPath(lat, lng float64, path [][2]float64) float64 {
	if len(path) == 0 {
		return math.Inf(1)
	}
	if len(path) == 1 {
		return HaversineDistance(lat, lng, path[0][0], path[0][1])
	}

	min := math.Inf(1)
	for i := 0; i < len(path)-1; i++ {
		d := PointToSegmentDist(lat, lng,
			path[i][0], path[i][1],
			path[i+1][0], path[i+1][1])
		if d < min {
			min = d
		}
	}
	return min
}

package location

import "math"

// earthRadiusMeters is the mean earth radius used for distance estimates.
const earthRadiusMeters = 6371000

// distanceMeters estimates the ground distance between two fixes using an
// equirectangular approximation. Good to well under a meter at the scales the
// movement threshold cares about.
func distanceMeters(a, b Fix) float64 {
	latA := a.Latitude * math.Pi / 180
	latB := b.Latitude * math.Pi / 180
	dLat := latB - latA
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	x := dLng * math.Cos((latA+latB)/2)

	return math.Sqrt(x*x+dLat*dLat) * earthRadiusMeters
}

package geo

import (
	"math"

	"github.com/atlasguess/atlasguess/internal/model"
)

const (
	// EarthRadiusKm is the mean earth radius used for haversine distance
	EarthRadiusKm = 6371

	// MaxPoints is the score for a perfect guess
	MaxPoints = 5000
)

// Distance returns the great-circle distance in km between two points
func Distance(a, b model.Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Points maps a guess's distance from the actual location to a score in
// [0, MaxPoints], decaying exponentially with distance relative to the
// session's maximum distance
func Points(actual, guess model.Point, maxDistKm float64) int {
	if maxDistKm <= 0 {
		maxDistKm = 20000
	}
	dist := Distance(actual, guess)
	pts := MaxPoints * math.Exp(-10*dist/maxDistKm)
	return int(math.Round(pts))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

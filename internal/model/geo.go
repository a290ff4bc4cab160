package model

// Point is a latitude/longitude pair in degrees
type Point struct {
	Lat float64
	Lng float64
}

// Location is a playable round location
type Location struct {
	Lat     float64
	Lng     float64
	Country string
}

// Point returns the location's coordinates
func (l Location) Point() Point {
	return Point{Lat: l.Lat, Lng: l.Lng}
}

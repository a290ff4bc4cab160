package geo

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/atlasguess/atlasguess/internal/model"
)

type GeoSuite struct {
	suite.Suite
}

func TestGeoSuite(t *testing.T) {
	suite.Run(t, new(GeoSuite))
}

func (s *GeoSuite) TestDistanceZero() {
	p := model.Point{Lat: 48.8566, Lng: 2.3522}
	s.Equal(0.0, Distance(p, p))
}

func (s *GeoSuite) TestDistanceParisLondon() {
	paris := model.Point{Lat: 48.8566, Lng: 2.3522}
	london := model.Point{Lat: 51.5074, Lng: -0.1278}

	// Great-circle distance is roughly 344 km
	s.InDelta(344, Distance(paris, london), 2)
}

func (s *GeoSuite) TestDistanceAntipodal() {
	a := model.Point{Lat: 0, Lng: 0}
	b := model.Point{Lat: 0, Lng: 180}

	// Half the earth's circumference at the equator
	s.InDelta(20015, Distance(a, b), 5)
}

func (s *GeoSuite) TestPointsPerfectGuess() {
	p := model.Point{Lat: -33.8688, Lng: 151.2093}
	s.Equal(MaxPoints, Points(p, p, 20000))
}

func (s *GeoSuite) TestPointsDecaysWithDistance() {
	actual := model.Point{Lat: 0, Lng: 0}
	near := model.Point{Lat: 0, Lng: 1}
	far := model.Point{Lat: 0, Lng: 90}

	nearPts := Points(actual, near, 20000)
	farPts := Points(actual, far, 20000)

	s.Greater(nearPts, farPts)
	s.Greater(nearPts, 0)
}

func (s *GeoSuite) TestPointsAtMaxDistanceNearZero() {
	a := model.Point{Lat: 0, Lng: 0}
	b := model.Point{Lat: 0, Lng: 180}

	// Antipodal with the default max distance decays to nothing
	s.Equal(0, Points(a, b, 0))
}

func (s *GeoSuite) TestPointsSmallerMaxDistanceIsHarsher() {
	actual := model.Point{Lat: 48.8566, Lng: 2.3522}
	guess := model.Point{Lat: 51.5074, Lng: -0.1278}

	worldwide := Points(actual, guess, 20000)
	regional := Points(actual, guess, 1000)

	s.Greater(worldwide, regional)
}

func (s *GeoSuite) TestPointsDefaultsMaxDistance() {
	actual := model.Point{Lat: 0, Lng: 0}
	guess := model.Point{Lat: 10, Lng: 10}

	s.Equal(Points(actual, guess, 20000), Points(actual, guess, 0))
}

func (s *GeoSuite) TestPointsBounded() {
	actual := model.Point{Lat: 0, Lng: 0}
	for _, lng := range []float64{0, 1, 10, 45, 90, 135, 180} {
		pts := Points(actual, model.Point{Lat: 0, Lng: lng}, 20000)
		s.GreaterOrEqual(pts, 0)
		s.LessOrEqual(pts, MaxPoints)
	}
}

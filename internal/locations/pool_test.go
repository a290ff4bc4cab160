package locations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/atlasguess/atlasguess/internal/dependencies/mocks"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/testutil"
)

var testLocs = []model.Location{
	{Lat: 48.8566, Lng: 2.3522, Country: "FR"},
	{Lat: 52.5200, Lng: 13.4050, Country: "DE"},
	{Lat: 35.6762, Lng: 139.6503, Country: "JP"},
	{Lat: 43.2965, Lng: 5.3698, Country: "FR"},
}

type PoolSuite struct {
	suite.Suite
	ctx    context.Context
	random *mocks.MockRandom
	pool   *Pool
}

func TestPoolSuite(t *testing.T) {
	suite.Run(t, new(PoolSuite))
}

func (s *PoolSuite) SetupTest() {
	s.ctx = context.Background()
	s.random = mocks.NewMockRandom()
	source := NewStaticSource(testLocs, s.random)
	s.pool = NewPool(source, s.random, 8, testutil.NopLogger())
}

func (s *PoolSuite) TestFillReachesConfiguredSize() {
	s.Equal(0, s.pool.Size())
	s.Require().NoError(s.pool.Fill(s.ctx))
	s.Equal(8, s.pool.Size())

	// A second fill is a no-op
	s.Require().NoError(s.pool.Fill(s.ctx))
	s.Equal(8, s.pool.Size())
}

func (s *PoolSuite) TestGenerateSamplesPool() {
	s.Require().NoError(s.pool.Fill(s.ctx))

	// An exhausted mock always picks index 0
	locs, err := s.pool.Generate(s.ctx, 5, "all")
	s.Require().NoError(err)
	s.Require().Len(locs, 5)
	for _, loc := range locs {
		s.Equal(testLocs[0], loc)
	}
}

func (s *PoolSuite) TestGenerateEmptyPool() {
	_, err := s.pool.Generate(s.ctx, 5, "all")
	s.ErrorIs(err, ErrPoolEmpty)
}

func (s *PoolSuite) TestGenerateAreaBypassesPool() {
	// The pool is cold, but an area request goes straight to the source
	locs, err := s.pool.Generate(s.ctx, 3, "JP")
	s.Require().NoError(err)
	s.Require().Len(locs, 3)
	for _, loc := range locs {
		s.Equal("JP", loc.Country)
	}
}

func (s *PoolSuite) TestGenerateAreaHonorsCancellation() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.pool.Generate(ctx, 3, "JP")
	s.ErrorIs(err, context.Canceled)
}

func (s *PoolSuite) TestRotateReplacesOldestStock() {
	s.Require().NoError(s.pool.Fill(s.ctx))

	// Queue a pick of the JP entry for the incoming location
	s.random.QueueIntn(2)
	s.Require().NoError(s.pool.Rotate(s.ctx))
	s.Equal(8, s.pool.Size())
}

func (s *PoolSuite) TestStaticSourceAreaFilter() {
	source := NewStaticSource(testLocs, s.random)

	// Two FR entries; index 1 picks the second
	s.random.QueueIntn(1)
	loc, err := source.RandomPoint(s.ctx, "FR")
	s.Require().NoError(err)
	s.Equal(testLocs[3], loc)

	// Unknown areas fall back to the full list
	loc, err = source.RandomPoint(s.ctx, "XX")
	s.Require().NoError(err)
	s.Equal(testLocs[0], loc)
}

func (s *PoolSuite) TestStaticSourceEmpty() {
	source := NewStaticSource(nil, s.random)
	_, err := source.RandomPoint(s.ctx, "all")
	s.ErrorIs(err, ErrPoolEmpty)
}

func (s *PoolSuite) TestWorldCitiesCatalog() {
	s.NotEmpty(WorldCities)
	for _, loc := range WorldCities {
		s.InDelta(0, loc.Lat, 90)
		s.InDelta(0, loc.Lng, 180)
		s.Len(loc.Country, 2)
	}
}

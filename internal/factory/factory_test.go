package factory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/atlasguess/atlasguess/internal/history"
)

type FactorySuite struct {
	suite.Suite
}

func TestFactorySuite(t *testing.T) {
	suite.Run(t, new(FactorySuite))
}

func (s *FactorySuite) TestNewTestAppWiresEverything() {
	app := NewTestApp()

	s.NotNil(app.Registry)
	s.NotNil(app.Locations)
	s.NotNil(app.Sessions)
	s.NotNil(app.Matchmaker)
	s.NotNil(app.Scheduler)
	s.NotNil(app.Hub)
	s.NotNil(app.Maintenance)
	s.NotNil(app.SnapshotStore)
	s.NotNil(app.MockClock)
	s.NotNil(app.MockRandom)

	s.NoError(app.Close())
}

func (s *FactorySuite) TestNewMemoryOnly() {
	app, err := New(context.Background(), Config{MemoryOnly: true})
	s.Require().NoError(err)

	s.NotNil(app.Scheduler)
	s.IsType(history.NopRecorder{}, app.Recorder)
	s.IsType(history.GuestOnlyVerifier{}, app.Verifier)
	s.NoError(app.Close())
}

func (s *FactorySuite) TestSchedulerPassRunsOnMockedTime() {
	app := NewTestApp()

	// A pass on an empty app touches every component without panicking.
	app.MockClock.Advance(time.Second)
	app.Scheduler.Pass(app.MockClock.Now())

	s.Zero(app.Registry.Count())
	s.Zero(app.Matchmaker.Len())
}

package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/atlasguess/atlasguess/internal/dependencies/mocks"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = New(s.clock, DefaultGraceWindow, testutil.NopLogger())
}

func (s *RegistrySuite) addConn(id, account, token string) *model.Connection {
	conn := &model.Connection{
		ID:          model.ConnectionID(id),
		AccountID:   model.AccountID(account),
		RejoinToken: token,
		Username:    "player-" + id,
		CreatedAt:   s.clock.Now(),
	}
	s.registry.Add(conn)
	return conn
}

func (s *RegistrySuite) TestAddAndGet() {
	conn := s.addConn("c1", "", "")

	got, err := s.registry.Get(conn.ID)
	s.Require().NoError(err)
	s.Equal(conn, got)
	s.Equal(model.ConnStateConnected, got.State)
}

func (s *RegistrySuite) TestGetUnknown() {
	_, err := s.registry.Get("nope")
	s.ErrorIs(err, model.ErrConnectionNotFound)
}

func (s *RegistrySuite) TestMarkDisconnectedStartsGrace() {
	conn := s.addConn("c1", "", "")

	s.registry.MarkDisconnected(conn.ID)

	s.Equal(model.ConnStateGrace, conn.State)
	s.Equal(s.clock.Now(), conn.DisconnectedAt)
	s.Equal(0, s.registry.Count())
}

func (s *RegistrySuite) TestReclaimByAccountWithinGrace() {
	conn := s.addConn("c1", "acct-1", "")
	s.registry.MarkDisconnected(conn.ID)

	s.clock.Advance(10 * time.Second)
	got := s.registry.Reclaim("acct-1")

	s.Require().NotNil(got)
	s.Equal(conn.ID, got.ID)
	s.Equal(model.ConnStateConnected, got.State)
	s.True(got.DisconnectedAt.IsZero())
}

func (s *RegistrySuite) TestReclaimByTokenWithinGrace() {
	conn := s.addConn("c1", "", "tok-1")
	s.registry.MarkDisconnected(conn.ID)

	got := s.registry.Reclaim("tok-1")

	s.Require().NotNil(got)
	s.Equal(conn.ID, got.ID)
}

func (s *RegistrySuite) TestReclaimConnectedConnectionFails() {
	s.addConn("c1", "acct-1", "")
	s.Nil(s.registry.Reclaim("acct-1"))
}

func (s *RegistrySuite) TestReclaimAfterPurgeFails() {
	conn := s.addConn("c1", "acct-1", "")
	s.registry.MarkDisconnected(conn.ID)

	s.clock.Advance(DefaultGraceWindow)
	expired := s.registry.ExpiredGrace(s.clock.Now())
	s.Require().Len(expired, 1)
	s.registry.Purge(expired[0].ID)

	s.Nil(s.registry.Reclaim("acct-1"))
	_, err := s.registry.Get(conn.ID)
	s.ErrorIs(err, model.ErrConnectionNotFound)
}

func (s *RegistrySuite) TestExpiredGraceBoundary() {
	conn := s.addConn("c1", "", "")
	s.registry.MarkDisconnected(conn.ID)

	s.clock.Advance(DefaultGraceWindow - time.Second)
	s.Empty(s.registry.ExpiredGrace(s.clock.Now()))

	s.clock.Advance(time.Second)
	s.Len(s.registry.ExpiredGrace(s.clock.Now()), 1)
}

func (s *RegistrySuite) TestCountExcludesGrace() {
	s.addConn("c1", "", "")
	c2 := s.addConn("c2", "", "")
	s.registry.MarkDisconnected(c2.ID)

	s.Equal(1, s.registry.Count())
	s.Len(s.registry.ConnectedIDs(), 1)
	s.Len(s.registry.All(), 2)
}

func (s *RegistrySuite) TestSetAccountIndexesForReclaim() {
	conn := s.addConn("c1", "", "")
	s.registry.SetAccount(conn.ID, "acct-9")
	s.registry.MarkDisconnected(conn.ID)

	got := s.registry.Reclaim("acct-9")
	s.Require().NotNil(got)
	s.Equal(conn.ID, got.ID)
}

func (s *RegistrySuite) TestRestoreForcesGrace() {
	conns := []*model.Connection{
		{ID: "c1", State: model.ConnStateConnected, RejoinToken: "tok-1"},
		{ID: "c2", State: model.ConnStateConnected, AccountID: "acct-2"},
	}

	s.registry.Restore(conns)

	for _, conn := range conns {
		s.Equal(model.ConnStateGrace, conn.State)
		s.Equal(s.clock.Now(), conn.DisconnectedAt)
	}

	// Both reclaim paths work after a restore
	s.NotNil(s.registry.Reclaim("tok-1"))
	s.NotNil(s.registry.Reclaim("acct-2"))
}

func (s *RegistrySuite) TestRestoredConnectionExpiresFromRestoreInstant() {
	s.registry.Restore([]*model.Connection{{ID: "c1"}})

	s.clock.Advance(DefaultGraceWindow)
	s.Len(s.registry.ExpiredGrace(s.clock.Now()), 1)
}

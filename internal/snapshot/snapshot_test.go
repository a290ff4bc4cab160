package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/atlasguess/atlasguess/internal/dependencies/mocks"
	"github.com/atlasguess/atlasguess/internal/history"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/rating"
	"github.com/atlasguess/atlasguess/internal/registry"
	"github.com/atlasguess/atlasguess/internal/session"
	"github.com/atlasguess/atlasguess/internal/testutil"
)

type stubSupplier struct{}

func (stubSupplier) Generate(_ context.Context, count int, _ string) ([]model.Location, error) {
	locs := make([]model.Location, count)
	for i := range locs {
		locs[i] = model.Location{Lat: 48.8566, Lng: 2.3522, Country: "FR"}
	}
	return locs, nil
}

type SnapshotSuite struct {
	suite.Suite
	ctx   context.Context
	clock *mocks.MockClock
	store *RedisStore
}

func TestSnapshotSuite(t *testing.T) {
	suite.Run(t, new(SnapshotSuite))
}

func (s *SnapshotSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.store = NewWithClient(client, DefaultConfig(), testutil.NopLogger())
}

// fixtureSnapshot builds a snapshot holding a mid-round duel and a waiting
// private lobby
func (s *SnapshotSuite) fixtureSnapshot() *Snapshot {
	now := s.clock.Now()

	a := &model.Slot{ConnectionID: "a", Username: "alice", Score: 4200, Final: true,
		Guess: &model.Point{Lat: 10, Lng: 20}}
	b := &model.Slot{ConnectionID: "b", Username: "bob", Score: 5000}
	duel := &model.Session{
		ID:    "duel-1",
		Kind:  model.KindDuel,
		State: model.SessionStateGuess,
		Round: 2,
		Options: model.DuelSessionOptions(),
		Roster: []*model.Slot{a, b},
		Duel: &model.DuelState{
			Slots:  [2]*model.Slot{a, b},
			Ranked: true,
			Outcomes: rating.Outcomes(1000, 1200),
		},
		Locations: []model.Location{
			{Lat: 1, Lng: 2, Country: "FR"},
			{Lat: 3, Lng: 4, Country: "DE"},
			{Lat: 5, Lng: 6, Country: "JP"},
			{Lat: 7, Lng: 8, Country: "US"},
			{Lat: 9, Lng: 10, Country: "BR"},
		},
		History: []model.RoundRecord{{
			Round:    1,
			Location: model.Location{Lat: 1, Lng: 2, Country: "FR"},
			Results: []model.GuessResult{
				{ConnectionID: "a", Username: "alice", Points: 4800, Took: 9 * time.Second},
				{ConnectionID: "b", Username: "bob", Points: 4000},
			},
		}},
		NextEventAt:    now.Add(30 * time.Second),
		RoundOpenedAt:  now.Add(-20 * time.Second),
		LastSavedRound: 1,
		CreatedAt:      now.Add(-2 * time.Minute),
		UpdatedAt:      now,
	}

	lobby := &model.Session{
		ID:      "lobby-1",
		Code:    "123456",
		Kind:    model.KindPrivateParty,
		State:   model.SessionStateWaiting,
		Options: model.DefaultSessionOptions(),
		Roster: []*model.Slot{
			{ConnectionID: "c", Username: "carol", IsHost: true},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	return &Snapshot{
		TakenAt:  now,
		Sessions: []*model.Session{duel, lobby},
		Connections: []*model.Connection{
			{ID: "a", AccountID: "acct-a", Username: "alice", Verified: true,
				Rating: 1000, League: "beginner", SessionID: "duel-1", State: model.ConnStateConnected},
			{ID: "b", AccountID: "acct-b", Username: "bob", Verified: true,
				Rating: 1200, League: "beginner", SessionID: "duel-1", State: model.ConnStateConnected},
			{ID: "c", Username: "carol", IsGuest: true, RejoinToken: "tok-c",
				Rating: rating.Initial, SessionID: "lobby-1", State: model.ConnStateConnected},
		},
	}
}

func (s *SnapshotSuite) TestRedisRoundTrip() {
	s.Require().NoError(s.store.Save(s.ctx, s.fixtureSnapshot()))

	loaded, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	s.True(loaded.TakenAt.Equal(s.clock.Now()))
	s.Require().Len(loaded.Sessions, 2)
	s.Require().Len(loaded.Connections, 3)

	duel := loaded.Sessions[0]
	s.Equal(model.SessionID("duel-1"), duel.ID)
	s.Equal(model.SessionStateGuess, duel.State)
	s.Equal(2, duel.Round)
	s.Equal(1, duel.LastSavedRound)
	s.Len(duel.Locations, 5)
	s.Require().Len(duel.History, 1)
	s.Equal(4800, duel.History[0].Results[0].Points)
	s.Equal(9*time.Second, duel.History[0].Results[0].Took)
	s.True(duel.NextEventAt.Equal(s.clock.Now().Add(30 * time.Second)))

	s.Require().NotNil(duel.Duel)
	s.True(duel.Duel.Ranked)
	s.Equal(*rating.Outcomes(1000, 1200), *duel.Duel.Outcomes)

	guess := duel.Member("a").Guess
	s.Require().NotNil(guess)
	s.Equal(model.Point{Lat: 10, Lng: 20}, *guess)

	lobby := loaded.Sessions[1]
	s.Equal("123456", lobby.Code)
	s.True(lobby.Roster[0].IsHost)
}

func (s *SnapshotSuite) TestLoadWithoutSnapshot() {
	_, err := s.store.Load(s.ctx)
	s.ErrorIs(err, model.ErrSnapshotNotFound)
}

func (s *SnapshotSuite) TestClearRemovesSnapshot() {
	s.Require().NoError(s.store.Save(s.ctx, s.fixtureSnapshot()))
	s.Require().NoError(s.store.Clear(s.ctx))

	_, err := s.store.Load(s.ctx)
	s.ErrorIs(err, model.ErrSnapshotNotFound)
}

func (s *SnapshotSuite) TestStaleBoundary() {
	snap := &Snapshot{TakenAt: s.clock.Now()}

	s.False(snap.Stale(s.clock.Now().Add(MaxAge)))
	s.True(snap.Stale(s.clock.Now().Add(MaxAge + time.Second)))
}

func (s *SnapshotSuite) TestMemoryStoreRoundTrip() {
	store := NewMemoryStore()

	_, err := store.Load(s.ctx)
	s.ErrorIs(err, model.ErrSnapshotNotFound)

	snap := s.fixtureSnapshot()
	s.Require().NoError(store.Save(s.ctx, snap))

	loaded, err := store.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(snap, loaded)

	s.Require().NoError(store.Clear(s.ctx))
	_, err = store.Load(s.ctx)
	s.ErrorIs(err, model.ErrSnapshotNotFound)
}

// newCore builds an empty manager/registry pair against the suite clock
func (s *SnapshotSuite) newCore() (*session.Manager, *registry.Registry) {
	reg := registry.New(s.clock, registry.DefaultGraceWindow, testutil.NopLogger())
	mgr := session.NewManager(
		reg,
		session.NopSender{},
		stubSupplier{},
		history.NopRecorder{},
		s.clock,
		mocks.NewMockRandom(),
		session.DefaultConfig(),
		testutil.NopLogger(),
	)
	return mgr, reg
}

func (s *SnapshotSuite) TestRestoreAppliesFreshSnapshot() {
	s.Require().NoError(s.store.Save(s.ctx, s.fixtureSnapshot()))

	// The replacement process comes up 10 seconds later
	s.clock.Advance(10 * time.Second)
	mgr, reg := s.newCore()
	s.Require().NoError(Restore(s.ctx, s.store, mgr, reg, s.clock.Now(), testutil.NopLogger()))

	// Restored connections sit in grace until their owner reconnects
	conn, err := reg.Get("a")
	s.Require().NoError(err)
	s.Equal(model.ConnStateGrace, conn.State)
	s.True(conn.DisconnectedAt.Equal(s.clock.Now()))

	s.NotNil(reg.Reclaim("acct-a"))
	s.NotNil(reg.Reclaim("tok-c"))

	// Sessions are live again, join code included
	s.Equal(2, mgr.Count())
	id, err := mgr.FindByCode("123456")
	s.NoError(err)
	s.Equal(model.SessionID("lobby-1"), id)

	// Duel slots share their roster entries after deserialization
	duel, err := mgr.Get("duel-1")
	s.Require().NoError(err)
	s.Same(duel.Member("a"), duel.Duel.Slots[0])
	s.Same(duel.Member("b"), duel.Duel.Slots[1])

	// The snapshot is consumed
	_, err = s.store.Load(s.ctx)
	s.ErrorIs(err, model.ErrSnapshotNotFound)
}

func (s *SnapshotSuite) TestRestoreRejectsStaleSnapshot() {
	s.Require().NoError(s.store.Save(s.ctx, s.fixtureSnapshot()))

	s.clock.Advance(MaxAge + time.Minute)
	mgr, reg := s.newCore()
	err := Restore(s.ctx, s.store, mgr, reg, s.clock.Now(), testutil.NopLogger())
	s.ErrorIs(err, model.ErrSnapshotStale)

	s.Equal(0, mgr.Count())
	s.Equal(0, reg.Count())

	// Even a rejected snapshot is cleared so it cannot resurface
	_, err = s.store.Load(s.ctx)
	s.ErrorIs(err, model.ErrSnapshotNotFound)
}

func (s *SnapshotSuite) TestRestoreWithoutSnapshot() {
	mgr, reg := s.newCore()
	err := Restore(s.ctx, s.store, mgr, reg, s.clock.Now(), testutil.NopLogger())
	s.ErrorIs(err, model.ErrSnapshotNotFound)
}

func (s *SnapshotSuite) TestCaptureCollectsLiveState() {
	mgr, reg := s.newCore()
	conn := &model.Connection{ID: "x", Username: "xavi", IsGuest: true, State: model.ConnStateConnected}
	reg.Add(conn)
	sess := mgr.Create(model.KindPublicParty, model.DefaultSessionOptions(), false)
	s.Require().NoError(mgr.AddPlayer(sess.ID, conn, false))

	snap := Capture(mgr, reg, s.clock.Now())
	s.True(snap.TakenAt.Equal(s.clock.Now()))
	s.Require().Len(snap.Sessions, 1)
	s.Equal(sess.ID, snap.Sessions[0].ID)
	s.Require().Len(snap.Connections, 1)
	s.Equal(sess.ID, snap.Connections[0].SessionID)
}

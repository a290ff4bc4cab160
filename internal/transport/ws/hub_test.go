package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/atlasguess/atlasguess/internal/dependencies/mocks"
	"github.com/atlasguess/atlasguess/internal/history"
	"github.com/atlasguess/atlasguess/internal/matchmaker"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/protocol"
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

type HubSuite struct {
	suite.Suite
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	registry   *registry.Registry
	sessions   *session.Manager
	matchmaker *matchmaker.Matchmaker
	hub        *Hub
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubSuite))
}

func (s *HubSuite) SetupTest() {
	logger := testutil.NopLogger()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()

	s.registry = registry.New(s.clock, registry.DefaultGraceWindow, logger)
	s.sessions = session.NewManager(
		s.registry, session.NopSender{}, stubSupplier{}, history.NopRecorder{},
		s.clock, s.random, session.DefaultConfig(), logger,
	)
	s.matchmaker = matchmaker.New(s.sessions, s.registry, s.clock, matchmaker.DefaultConfig(), logger)

	s.hub = NewHub(
		s.registry, s.sessions, s.matchmaker, history.GuestOnlyVerifier{},
		s.clock, s.random, &atomic.Bool{}, logger,
	)
	s.sessions.SetSender(s.hub)
	s.matchmaker.SetSender(s.hub)
	s.matchmaker.SetKicker(s.hub)
}

// attach registers a connection together with a hub client whose send
// queue the test can drain
func (s *HubSuite) attach(id, account string) (*model.Connection, *client) {
	conn := &model.Connection{
		ID:       model.ConnectionID(id),
		Username: "player-" + id,
		State:    model.ConnStateConnected,
		Rating:   1000,
	}
	if account != "" {
		conn.AccountID = model.AccountID(account)
		conn.Verified = true
	} else {
		conn.IsGuest = true
	}
	s.registry.Add(conn)

	c := newClient(conn.ID, nil)
	c.verified = true
	s.hub.mu.Lock()
	s.hub.clients[conn.ID] = c
	s.hub.mu.Unlock()
	return conn, c
}

// drain empties the client's send queue into decoded frames
func (s *HubSuite) drain(c *client) []map[string]any {
	var out []map[string]any
	for {
		select {
		case frame := <-c.send:
			var m map[string]any
			s.Require().NoError(json.Unmarshal(frame, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func (s *HubSuite) ofType(c *client, typ string) []map[string]any {
	var out []map[string]any
	for _, m := range s.drain(c) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// newLobby creates a private lobby with the given host and code 424242
func (s *HubSuite) newLobby(host *model.Connection) *model.Session {
	s.random.QueueString("424242")
	opts := model.DefaultSessionOptions()
	opts.RoundCount = 3
	sess := s.sessions.Create(model.KindPrivateParty, opts, false)
	s.Require().NoError(s.sessions.AddPlayer(sess.ID, host, true))
	return sess
}

func (s *HubSuite) TestInviteFriendDeliversLobbyCode() {
	host, hostCl := s.attach("h", "acct-h")
	_, friendCl := s.attach("f", "acct-f")
	s.newLobby(host)
	s.drain(hostCl)

	s.hub.handleMessage(hostCl, []byte(`{"type":"inviteFriend","friendId":"f"}`))

	invites := s.ofType(friendCl, "invite")
	s.Require().Len(invites, 1)
	s.Equal("424242", invites[0]["code"])
	s.Equal("player-h", invites[0]["invitedByName"])
	s.Equal("h", invites[0]["invitedById"])

	toasts := s.ofType(hostCl, "toast")
	s.Require().Len(toasts, 1)
	s.Equal("inviteSent", toasts[0]["key"])
}

func (s *HubSuite) TestInviteRequiresAccountAndPrivateLobby() {
	guest, guestCl := s.attach("g", "")
	_, friendCl := s.attach("f", "acct-f")
	s.newLobby(guest)
	s.drain(guestCl)

	// Guests cannot invite
	s.hub.handleInviteFriend(guest, protocol.InviteFriend{FriendID: "f"})
	s.Empty(s.drain(friendCl))

	// Neither can a member of a public session
	member, memberCl := s.attach("m", "acct-m")
	pub := s.sessions.Create(model.KindPublicParty, model.DefaultSessionOptions(), false)
	s.Require().NoError(s.sessions.AddPlayer(pub.ID, member, false))
	s.drain(memberCl)

	s.hub.handleInviteFriend(member, protocol.InviteFriend{FriendID: "f"})
	s.Empty(s.drain(friendCl))
	s.Empty(s.ofType(memberCl, "toast"))
}

func (s *HubSuite) TestInviteCooldownPerRecipient() {
	host, hostCl := s.attach("h", "acct-h")
	_, friendCl := s.attach("f", "acct-f")
	s.newLobby(host)
	s.drain(hostCl)

	s.hub.handleInviteFriend(host, protocol.InviteFriend{FriendID: "f"})
	s.Len(s.ofType(friendCl, "invite"), 1)
	s.drain(hostCl)

	s.clock.Advance(time.Second)
	s.hub.handleInviteFriend(host, protocol.InviteFriend{FriendID: "f"})
	s.Empty(s.ofType(friendCl, "invite"))
	toasts := s.ofType(hostCl, "toast")
	s.Require().Len(toasts, 1)
	s.Equal("inviteCooldown", toasts[0]["key"])

	s.clock.Advance(5 * time.Second)
	s.hub.handleInviteFriend(host, protocol.InviteFriend{FriendID: "f"})
	s.Len(s.ofType(friendCl, "invite"), 1)
}

func (s *HubSuite) TestInviteMemberAlreadyInLobby() {
	host, hostCl := s.attach("h", "acct-h")
	friend, _ := s.attach("f", "acct-f")
	sess := s.newLobby(host)
	s.Require().NoError(s.sessions.AddPlayer(sess.ID, friend, false))
	s.drain(hostCl)

	s.hub.handleInviteFriend(host, protocol.InviteFriend{FriendID: "f"})

	toasts := s.ofType(hostCl, "toast")
	s.Require().Len(toasts, 1)
	s.Equal("alreadyInYourGame", toasts[0]["key"])
}

func (s *HubSuite) TestAcceptInviteJoinsAndNotifiesInviter() {
	host, hostCl := s.attach("h", "acct-h")
	friend, friendCl := s.attach("f", "acct-f")
	sess := s.newLobby(host)
	s.Require().NoError(s.matchmaker.Enqueue(friend, false, false))
	s.drain(hostCl)
	s.drain(friendCl)

	s.hub.handleMessage(friendCl, []byte(`{"type":"acceptInvite","code":"424242","invitedById":"h"}`))

	s.Equal(sess.ID, friend.SessionID)
	s.False(friend.InQueue)
	s.Equal(0, s.matchmaker.Len())

	var keys []string
	for _, t := range s.ofType(friendCl, "toast") {
		keys = append(keys, t["key"].(string))
	}
	s.Contains(keys, "inviteAccepted")

	hostToasts := s.ofType(hostCl, "toast")
	s.Require().Len(hostToasts, 1)
	s.Equal("inviteAcceptedBy", hostToasts[0]["key"])
}

func (s *HubSuite) TestAcceptInviteUnknownCode() {
	friend, friendCl := s.attach("f", "acct-f")

	s.hub.handleAcceptInvite(friend, protocol.AcceptInvite{Code: "000000"})

	toasts := s.ofType(friendCl, "toast")
	s.Require().Len(toasts, 1)
	s.Equal("invalidGameCode", toasts[0]["key"])
	s.False(friend.InSession())
}

func (s *HubSuite) TestAcceptInviteFullLobby() {
	host, _ := s.attach("h", "acct-h")
	friend, friendCl := s.attach("f", "acct-f")

	s.random.QueueString("424242")
	opts := model.DefaultSessionOptions()
	opts.MaxPlayers = 1
	s.sessions.Create(model.KindPrivateParty, opts, false)
	id, err := s.sessions.FindByCode("424242")
	s.Require().NoError(err)
	s.Require().NoError(s.sessions.AddPlayer(id, host, true))

	s.hub.handleAcceptInvite(friend, protocol.AcceptInvite{Code: "424242", InvitedBy: "h"})

	toasts := s.ofType(friendCl, "toast")
	s.Require().Len(toasts, 1)
	s.Equal("gameIsFull", toasts[0]["key"])
	s.False(friend.InSession())
}

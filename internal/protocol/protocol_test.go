package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/atlasguess/atlasguess/internal/model"
)

type ProtocolSuite struct {
	suite.Suite
}

func TestProtocolSuite(t *testing.T) {
	suite.Run(t, new(ProtocolSuite))
}

func (s *ProtocolSuite) TestDecodeVerify() {
	msg, err := DecodeClient([]byte(`{"type":"verify","secret":"s3cret","rejoinCode":"tok"}`))
	s.Require().NoError(err)

	v, ok := msg.(Verify)
	s.Require().True(ok)
	s.Equal("s3cret", v.Secret)
	s.Equal("tok", v.RejoinToken)
}

func (s *ProtocolSuite) TestDecodePlace() {
	msg, err := DecodeClient([]byte(`{"type":"place","latLong":[48.85,2.35],"final":true}`))
	s.Require().NoError(err)

	p, ok := msg.(Place)
	s.Require().True(ok)
	s.Equal([2]float64{48.85, 2.35}, p.LatLong)
	s.True(p.Final)
	s.NoError(p.Validate())
}

func (s *ProtocolSuite) TestDecodeCreatePrivateGame() {
	msg, err := DecodeClient([]byte(`{"type":"createPrivateGame","rounds":5,"timePerRound":60,"location":"all"}`))
	s.Require().NoError(err)

	c, ok := msg.(CreatePrivateGame)
	s.Require().True(ok)
	s.Equal(5, c.Rounds)
	s.Equal(60, c.TimePerRound)
	s.Equal("all", c.Location)
	s.NoError(c.Validate())
}

func (s *ProtocolSuite) TestDecodeInviteMessages() {
	msg, err := DecodeClient([]byte(`{"type":"inviteFriend","friendId":"conn-9"}`))
	s.Require().NoError(err)
	inv, ok := msg.(InviteFriend)
	s.Require().True(ok)
	s.Equal("conn-9", inv.FriendID)

	msg, err = DecodeClient([]byte(`{"type":"acceptInvite","code":"424242","invitedById":"conn-1"}`))
	s.Require().NoError(err)
	acc, ok := msg.(AcceptInvite)
	s.Require().True(ok)
	s.Equal("424242", acc.Code)
	s.Equal("conn-1", acc.InvitedBy)
}

func (s *ProtocolSuite) TestDecodeBareCommands() {
	for raw, want := range map[string]ClientMessage{
		`{"type":"publicDuel"}`:   PublicDuel{},
		`{"type":"unrankedDuel"}`: UnrankedDuel{},
		`{"type":"publicParty"}`:  PublicParty{},
		`{"type":"leaveQueue"}`:   LeaveQueue{},
		`{"type":"leaveGame"}`:    LeaveGame{},
		`{"type":"resetGame"}`:    ResetGame{},
	} {
		msg, err := DecodeClient([]byte(raw))
		s.Require().NoError(err, raw)
		s.Equal(want, msg, raw)
	}
}

func (s *ProtocolSuite) TestDecodeRejectsUnknownType() {
	_, err := DecodeClient([]byte(`{"type":"launchMissiles"}`))
	s.ErrorIs(err, ErrUnknownType)
}

func (s *ProtocolSuite) TestDecodeRejectsMissingType() {
	_, err := DecodeClient([]byte(`{"latLong":[1,2]}`))
	s.ErrorIs(err, ErrMissingType)
}

func (s *ProtocolSuite) TestDecodeRejectsMalformedJSON() {
	_, err := DecodeClient([]byte(`{"type":"place","latLong":`))
	s.ErrorIs(err, ErrInvalidPayload)
}

func (s *ProtocolSuite) TestPlaceValidateBounds() {
	s.Error(Place{LatLong: [2]float64{91, 0}}.Validate())
	s.Error(Place{LatLong: [2]float64{0, -181}}.Validate())
	s.NoError(Place{LatLong: [2]float64{-90, 180}}.Validate())
}

func (s *ProtocolSuite) TestChatValidateBounds() {
	s.Error(Chat{}.Validate())
	s.Error(Chat{Message: string(make([]byte, 201))}.Validate())
	s.NoError(Chat{Message: "gg"}.Validate())
}

func (s *ProtocolSuite) TestPrivateGameOptionsValidate() {
	valid := PrivateGameOptions{Rounds: 5, TimePerRound: 60, Location: "all"}
	s.NoError(valid.Validate())

	for _, bad := range []PrivateGameOptions{
		{Rounds: 0, TimePerRound: 60, Location: "all"},
		{Rounds: 21, TimePerRound: 60, Location: "all"},
		{Rounds: 5, TimePerRound: 5, Location: "all"},
		{Rounds: 5, TimePerRound: 301, Location: "all"},
		{Rounds: 5, TimePerRound: 60},
	} {
		s.Error(bad.Validate())
	}
}

func (s *ProtocolSuite) TestEncodeGameSnapshot() {
	snap := GameSnapshot{
		Type:     TypeGame,
		State:    model.SessionStateGuess,
		Kind:     model.KindPrivateParty,
		CurRound: 2,
		Rounds:   5,
		MyID:     "c1",
		Code:     "123456",
		Players:  []SlotView{{ID: "c1", Username: "host", Host: true}},
	}

	frame := Encode(snap)
	s.Require().NotNil(frame)

	var decoded map[string]any
	s.Require().NoError(json.Unmarshal(frame, &decoded))
	s.Equal("game", decoded["type"])
	s.Equal("guess", decoded["state"])
	s.Equal("123456", decoded["code"])
}

func (s *ProtocolSuite) TestEncodeDeltasCarryDiscriminant() {
	add := NewPlayerAdd(SlotView{ID: "c2", Username: "joiner"})
	s.Equal(TypePlayerDelta, add.Type)
	s.Equal("add", add.Action)

	rem := NewPlayerRemove("c2")
	s.Equal("remove", rem.Action)
	s.Nil(rem.Player)
}

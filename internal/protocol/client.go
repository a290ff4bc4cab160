// Package protocol defines the wire messages exchanged with clients as a
// closed set of typed structs. Everything a client sends is validated here
// before it can reach session logic; malformed or unknown input decodes to
// an error and is dropped by the transport.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound message type discriminants
const (
	TypeVerify            = "verify"
	TypePong              = "pong"
	TypePlace             = "place"
	TypeChat              = "chat"
	TypeCreatePrivateGame = "createPrivateGame"
	TypeJoinPrivateGame   = "joinPrivateGame"
	TypeStartGameHost     = "startGameHost"
	TypeEditPrivateGame   = "editPrivateGame"
	TypeResetGame         = "resetGame"
	TypePublicDuel        = "publicDuel"
	TypeUnrankedDuel      = "unrankedDuel"
	TypePublicParty       = "publicParty"
	TypeLeaveQueue        = "leaveQueue"
	TypeLeaveGame         = "leaveGame"
	TypeInviteFriend      = "inviteFriend"
	TypeAcceptInvite      = "acceptInvite"
	TypeScreen            = "screen"
)

// Decode errors
var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingType    = errors.New("missing message type")
	ErrInvalidPayload = errors.New("invalid message payload")
)

// ClientMessage is implemented by every inbound message type
type ClientMessage interface {
	clientMessage()
}

// Verify authenticates the connection, either against the account store
// (Secret) or as a guest; RejoinToken reclaims a disconnected connection.
type Verify struct {
	Secret      string `json:"secret,omitempty"`
	RejoinToken string `json:"rejoinCode,omitempty"`
}

// Pong answers a heartbeat
type Pong struct{}

// Place records a guess for the current round
type Place struct {
	LatLong [2]float64 `json:"latLong"`
	Final   bool       `json:"final"`
}

// Chat sends a message to the session roster
type Chat struct {
	Message string `json:"message"`
}

// PrivateGameOptions are the host-configurable private lobby settings
type PrivateGameOptions struct {
	Rounds       int     `json:"rounds"`
	TimePerRound int     `json:"timePerRound"` // seconds
	Location     string  `json:"location"`
	MaxDist      float64 `json:"maxDist,omitempty"`
}

// CreatePrivateGame opens a new private lobby with the sender as host
type CreatePrivateGame struct {
	PrivateGameOptions
}

// JoinPrivateGame joins a private lobby by its 6-digit code
type JoinPrivateGame struct {
	Code string `json:"gameCode"`
}

// StartGameHost starts a private session (host only)
type StartGameHost struct{}

// EditPrivateGame changes lobby options before start (host only)
type EditPrivateGame struct {
	PrivateGameOptions
}

// ResetGame returns an ended private lobby to waiting (host only)
type ResetGame struct{}

// PublicDuel requests ranked duel matchmaking
type PublicDuel struct{}

// UnrankedDuel requests unranked duel matchmaking
type UnrankedDuel struct{}

// PublicParty requests placement into a public party lobby
type PublicParty struct{}

// LeaveQueue abandons matchmaking
type LeaveQueue struct{}

// LeaveGame leaves the current session
type LeaveGame struct{}

// InviteFriend asks the server to relay a private-lobby invitation to
// another live connection
type InviteFriend struct {
	FriendID string `json:"friendId"`
}

// AcceptInvite joins the lobby named in a received invitation
type AcceptInvite struct {
	Code      string `json:"code"`
	InvitedBy string `json:"invitedById"`
}

// Screen reports which client screen is active
type Screen struct {
	Screen string `json:"screen"`
}

func (Verify) clientMessage()            {}
func (Pong) clientMessage()              {}
func (Place) clientMessage()             {}
func (Chat) clientMessage()              {}
func (CreatePrivateGame) clientMessage() {}
func (JoinPrivateGame) clientMessage()   {}
func (StartGameHost) clientMessage()     {}
func (EditPrivateGame) clientMessage()   {}
func (ResetGame) clientMessage()         {}
func (PublicDuel) clientMessage()        {}
func (UnrankedDuel) clientMessage()      {}
func (PublicParty) clientMessage()       {}
func (LeaveQueue) clientMessage()        {}
func (LeaveGame) clientMessage()         {}
func (InviteFriend) clientMessage()      {}
func (AcceptInvite) clientMessage()      {}
func (Screen) clientMessage()            {}

type envelope struct {
	Type string `json:"type"`
}

// DecodeClient parses a raw client frame into its typed message
func DecodeClient(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}

	var (
		msg ClientMessage
		err error
	)
	switch env.Type {
	case TypeVerify:
		var m Verify
		err = json.Unmarshal(data, &m)
		msg = m
	case TypePong:
		msg = Pong{}
	case TypePlace:
		var m Place
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeChat:
		var m Chat
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeCreatePrivateGame:
		var m CreatePrivateGame
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeJoinPrivateGame:
		var m JoinPrivateGame
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeStartGameHost:
		msg = StartGameHost{}
	case TypeEditPrivateGame:
		var m EditPrivateGame
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeResetGame:
		msg = ResetGame{}
	case TypePublicDuel:
		msg = PublicDuel{}
	case TypeUnrankedDuel:
		msg = UnrankedDuel{}
	case TypePublicParty:
		msg = PublicParty{}
	case TypeLeaveQueue:
		msg = LeaveQueue{}
	case TypeLeaveGame:
		msg = LeaveGame{}
	case TypeInviteFriend:
		var m InviteFriend
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeAcceptInvite:
		var m AcceptInvite
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeScreen:
		var m Screen
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return msg, nil
}

// Validate applies shape checks beyond JSON decoding
func (m Place) Validate() error {
	lat, lng := m.LatLong[0], m.LatLong[1]
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ErrInvalidPayload
	}
	return nil
}

// Validate bounds chat messages to 1..200 characters
func (m Chat) Validate() error {
	if len(m.Message) < 1 || len(m.Message) > 200 {
		return ErrInvalidPayload
	}
	return nil
}

// Validate bounds the host-configurable options
func (o PrivateGameOptions) Validate() error {
	if o.Location == "" {
		return ErrInvalidPayload
	}
	if o.Rounds < 1 || o.Rounds > 20 {
		return ErrInvalidPayload
	}
	if o.TimePerRound < 10 || o.TimePerRound > 300 {
		return ErrInvalidPayload
	}
	return nil
}

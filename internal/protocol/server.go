package protocol

import (
	"encoding/json"
	"time"

	"github.com/atlasguess/atlasguess/internal/model"
)

// Outbound message type discriminants
const (
	TypeVerifyAck     = "verify"
	TypeGame          = "game"
	TypePlayerDelta   = "player"
	TypePlaceBcast    = "place"
	TypeGenerating    = "generating"
	TypeMaxDist       = "maxDist"
	TypeDuelEnd       = "duelEnd"
	TypeRating        = "elo"
	TypeToast         = "toast"
	TypeChatBcast     = "chat"
	TypeCount         = "cnt"
	TypeHeartbeat     = "t"
	TypeGameShutdown  = "gameShutdown"
	TypeRestartQueued = "restartQueued"
	TypeJoinError     = "gameJoinError"
	TypeDuelRange     = "duelRange"
	TypeInvite        = "invite"
)

// ServerMessage is implemented by every outbound message type
type ServerMessage interface {
	serverMessage()
}

// Encode marshals a server message for the wire. Encoding a value built by
// this package cannot fail; errors indicate a programming bug and surface
// as a nil frame the transport drops.
func Encode(msg ServerMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}

// VerifyAck confirms verification; guests also receive their assigned name
// and the rejoin token that reclaims this connection after a drop
type VerifyAck struct {
	Type        string `json:"type"`
	GuestName   string `json:"guestName,omitempty"`
	RejoinToken string `json:"rejoinCode,omitempty"`
}

// NewVerifyAck builds a VerifyAck
func NewVerifyAck(guestName, rejoinToken string) VerifyAck {
	return VerifyAck{Type: TypeVerifyAck, GuestName: guestName, RejoinToken: rejoinToken}
}

// SlotView is the roster-visible projection of a slot
type SlotView struct {
	ID       model.ConnectionID `json:"id"`
	Username string             `json:"username"`
	Score    int                `json:"score"`
	Final    bool               `json:"final"`
	Host     bool               `json:"host"`
}

// GameSnapshot is the full session state sent to a joining or reconnecting
// member, and (without locations) on every state change
type GameSnapshot struct {
	Type          string              `json:"type"`
	State         model.SessionState  `json:"state"`
	Kind          model.SessionKind   `json:"kind"`
	CurRound      int                 `json:"curRound"`
	Rounds        int                 `json:"rounds"`
	TimePerRound  int64               `json:"timePerRound"` // ms
	NextEvtTime   int64               `json:"nextEvtTime"`  // unix ms, 0 if unset
	MaxPlayers    int                 `json:"maxPlayers"`
	MaxDist       float64             `json:"maxDist"`
	MyID          model.ConnectionID  `json:"myId,omitempty"`
	Host          bool                `json:"host,omitempty"`
	Code          string              `json:"code,omitempty"`
	Public        bool                `json:"public"`
	Players       []SlotView          `json:"players"`
	Generated     int                 `json:"generated"`
	Locations     []model.Location    `json:"locations,omitempty"`
	History       []model.RoundRecord `json:"history,omitempty"`
}

func (GameSnapshot) serverMessage() {}

// PlayerDelta announces a roster addition or removal
type PlayerDelta struct {
	Type   string             `json:"type"`
	Action string             `json:"action"` // "add" or "remove"
	ID     model.ConnectionID `json:"id"`
	Player *SlotView          `json:"player,omitempty"`
}

func (PlayerDelta) serverMessage() {}

// NewPlayerAdd builds an add delta
func NewPlayerAdd(slot SlotView) PlayerDelta {
	return PlayerDelta{Type: TypePlayerDelta, Action: "add", ID: slot.ID, Player: &slot}
}

// NewPlayerRemove builds a remove delta
func NewPlayerRemove(id model.ConnectionID) PlayerDelta {
	return PlayerDelta{Type: TypePlayerDelta, Action: "remove", ID: id}
}

// PlaceBroadcast announces a member's finalized guess placement
type PlaceBroadcast struct {
	Type    string             `json:"type"`
	ID      model.ConnectionID `json:"id"`
	Final   bool               `json:"final"`
	LatLong [2]float64         `json:"latLong"`
}

func (PlaceBroadcast) serverMessage() {}

// Generating reports location-generation progress
type Generating struct {
	Type      string `json:"type"`
	Generated int    `json:"generated"`
}

func (Generating) serverMessage() {}

// MaxDistUpdate announces a changed maximum distance for scoring
type MaxDistUpdate struct {
	Type    string  `json:"type"`
	MaxDist float64 `json:"maxDist"`
}

func (MaxDistUpdate) serverMessage() {}

// DuelEnd announces a duel result with the applied ratings
type DuelEnd struct {
	Type     string             `json:"type"`
	WinnerID model.ConnectionID `json:"winner,omitempty"` // empty on draw
	Draw     bool               `json:"draw,omitempty"`
	Forfeit  bool               `json:"forfeit,omitempty"`
}

func (DuelEnd) serverMessage() {}

// RatingUpdate notifies one player of their new rating and league
type RatingUpdate struct {
	Type   string `json:"type"`
	Rating int    `json:"elo"`
	League string `json:"league"`
}

func (RatingUpdate) serverMessage() {}

// Toast is a transient client notice keyed for localization
type Toast struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	ToastType string `json:"toastType,omitempty"` // info, success, error
	Seconds   int    `json:"s,omitempty"`
}

func (Toast) serverMessage() {}

// NewToast builds a toast notice
func NewToast(key, toastType string) Toast {
	return Toast{Type: TypeToast, Key: key, ToastType: toastType}
}

// ChatBroadcast relays a roster chat message
type ChatBroadcast struct {
	Type    string             `json:"type"`
	ID      model.ConnectionID `json:"id"`
	Name    string             `json:"name"`
	Message string             `json:"message"`
}

func (ChatBroadcast) serverMessage() {}

// Count reports the number of connected players
type Count struct {
	Type  string `json:"type"`
	Count int    `json:"c"`
}

func (Count) serverMessage() {}

// Heartbeat carries the server clock for client drift correction
type Heartbeat struct {
	Type string `json:"type"`
	Time int64  `json:"t"` // unix ms
}

func (Heartbeat) serverMessage() {}

// NewHeartbeat builds a heartbeat for the given instant
func NewHeartbeat(now time.Time) Heartbeat {
	return Heartbeat{Type: TypeHeartbeat, Time: now.UnixMilli()}
}

// GameShutdown tells a member their session is gone
type GameShutdown struct {
	Type string `json:"type"`
}

func (GameShutdown) serverMessage() {}

// RestartQueued signals maintenance mode to clients
type RestartQueued struct {
	Type  string `json:"type"`
	Value bool   `json:"value"`
}

func (RestartQueued) serverMessage() {}

// JoinError reports a failed private-lobby join
type JoinError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func (JoinError) serverMessage() {}

// Invite delivers a private-lobby invitation to the invited connection
type Invite struct {
	Type          string             `json:"type"`
	Code          string             `json:"code"`
	InvitedByName string             `json:"invitedByName"`
	InvitedByID   model.ConnectionID `json:"invitedById"`
}

func (Invite) serverMessage() {}

// DuelRange notifies a queued player their acceptable range widened
type DuelRange struct {
	Type string `json:"type"`
	Low  int    `json:"low"`
	High int    `json:"high"`
}

func (DuelRange) serverMessage() {}

func (VerifyAck) serverMessage() {}

package gameserver

import (
	"encoding/json"
	"time"

	"github.com/udisondev/zombiearena/internal/game/reward"
	"github.com/udisondev/zombiearena/internal/model"
)

// ClientConnectionState represents the state machine for a WebSocket connection.
type ClientConnectionState int32

const (
	ClientStateConnected     ClientConnectionState = iota // upgraded, no identity yet
	ClientStateAuthenticated                              // ticket verified, account bound
	ClientStateDisconnected                               // connection closed
)

func (s ClientConnectionState) String() string {
	switch s {
	case ClientStateConnected:
		return "CONNECTED"
	case ClientStateAuthenticated:
		return "AUTHENTICATED"
	case ClientStateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Inbound event types.
const (
	EventAuthenticate  = "authenticate"
	EventFindMatch     = "findMatch"
	EventLeaveRoom     = "leaveRoom"
	EventPlayerMove    = "playerMove"
	EventPlayerShoot   = "playerShoot"
	EventZombieKilled  = "zombieKilled"
	EventDamage        = "damage"
	EventBuyPerk       = "buyPerk"
	EventMysteryBox    = "mysteryBox"
	EventRoundComplete = "roundComplete"
)

// Outbound event types that are not produced by a room.
const (
	EventAuthenticated    = "authenticated"
	EventAuthError        = "authError"
	EventMatchFound       = "matchFound"
	EventMatchmakingError = "matchmakingError"
	EventTokensEarned     = "tokensEarned"
	EventPerkPurchased    = "perkPurchased"
	EventPerkError        = "perkError"
	EventMysteryBoxResult = "mysteryBoxResult"
	EventMysteryBoxError  = "mysteryBoxError"
	EventRoundStats       = "roundStats"
	EventError            = "error"
)

// envelope is the wire frame in both directions: {"type": ..., "data": ...}.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type authenticateRequest struct {
	Ticket string `json:"ticket"`
}

type findMatchRequest struct {
	Mode string `json:"mode"`
}

type moveRequest struct {
	Position model.Vec3 `json:"position"`
	Rotation model.Vec3 `json:"rotation"`
}

type damageRequest struct {
	Amount int `json:"amount"`
}

type buyPerkRequest struct {
	PerkType model.Perk `json:"perkType"`
}

type roundCompleteRequest struct {
	SurvivalTime float64 `json:"survivalTime"`
}

type authenticatedResponse struct {
	Account   string    `json:"account"`
	Balance   int64     `json:"balance"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type errorResponse struct {
	Message string `json:"message"`
}

type matchFoundResponse struct {
	RoomID string `json:"roomId"`
	Mode   string `json:"mode"`
}

type tokensEarnedResponse struct {
	TokensEarned int           `json:"tokensEarned"`
	Reason       reward.Reason `json:"reason"`
	Balance      int64         `json:"balance"`
}

type perkPurchasedResponse struct {
	PerkType model.Perk `json:"perkType"`
	Cost     int        `json:"cost"`
	Balance  int64      `json:"balance"`
}

type mysteryBoxResponse struct {
	Weapon  reward.WeaponDraw `json:"weapon"`
	Cost    int               `json:"cost"`
	Balance int64             `json:"balance"`
}

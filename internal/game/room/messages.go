package room

import (
	"github.com/udisondev/zombiearena/internal/game/reward"
	"github.com/udisondev/zombiearena/internal/game/spawn"
	"github.com/udisondev/zombiearena/internal/model"
)

// Outbound event names.
const (
	EventGameState     = "gameState"
	EventPlayerJoined  = "playerJoined"
	EventPlayerLeft    = "playerLeft"
	EventPlayerMoved   = "playerMoved"
	EventPlayerShot    = "playerShot"
	EventPlayerDamaged = "playerDamaged"
	EventZombieKilled  = "zombieKilled"
	EventZombieSpawned = "zombieSpawned"
	EventPerkActivated = "perkActivated"
	EventRoundStart    = "roundStart"
	EventRoundComplete = "roundComplete"
	EventRoomFull      = "roomFull"
)

// Message is an outbound notification addressed to one participant.
type Message struct {
	Event string
	Data  any
}

// Notifier delivers messages to participants. Send must not block: it is
// called with the room lock held.
type Notifier interface {
	Send(participantID string, msg Message)
}

// Settlement is a reward to be credited to an external account.
type Settlement struct {
	ParticipantID string
	Account       string
	RoomID        string
	Round         int
	Amount        int
	Reason        reward.Reason
}

// Settler accepts settlements for asynchronous crediting. Settle must not
// block; a returned error means the settlement was not accepted.
type Settler interface {
	Settle(Settlement) error
}

// PlayerState is the public view of a participant.
type PlayerState struct {
	ID        string       `json:"id"`
	Position  model.Vec3   `json:"position"`
	Health    int          `json:"health"`
	MaxHealth int          `json:"maxHealth"`
	MoveSpeed float64      `json:"moveSpeed"`
	Score     int          `json:"score"`
	Kills     int          `json:"kills"`
	Perks     []model.Perk `json:"perks"`
}

// GameState is the snapshot a joining participant receives.
type GameState struct {
	RoomID           string        `json:"roomId"`
	Players          []PlayerState `json:"players"`
	Round            int           `json:"round"`
	Active           bool          `json:"active"`
	ZombiesRemaining int           `json:"zombiesRemaining"`
	Zombies          []spawn.Slot  `json:"zombies"`
}

// PlayerJoined announces a new participant to the others.
type PlayerJoined struct {
	PlayerID string     `json:"playerId"`
	Position model.Vec3 `json:"position"`
}

// PlayerLeft announces a departure.
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

// PlayerMoved relays a position update.
type PlayerMoved struct {
	PlayerID string     `json:"playerId"`
	Position model.Vec3 `json:"position"`
	Rotation model.Vec3 `json:"rotation"`
}

// Shot is an inbound shot report.
type Shot struct {
	Origin    model.Vec3 `json:"origin"`
	Direction model.Vec3 `json:"direction"`
	Weapon    string     `json:"weapon"`
}

// PlayerShot relays a shot.
type PlayerShot struct {
	PlayerID  string     `json:"playerId"`
	Origin    model.Vec3 `json:"origin"`
	Direction model.Vec3 `json:"direction"`
	Weapon    string     `json:"weapon"`
}

// PlayerDamaged reports a health change from zombie damage.
type PlayerDamaged struct {
	PlayerID string `json:"playerId"`
	Health   int    `json:"health"`
	Downed   bool   `json:"downed"`
}

// Kill is an inbound kill report. ZombieID is nil when the client did not
// name a pool slot; the kill still counts but no slot is released.
type Kill struct {
	ZombieID   *int `json:"zombieId,omitempty"`
	IsHeadshot bool `json:"isHeadshot"`
}

// ZombieKilled relays a confirmed kill.
type ZombieKilled struct {
	PlayerID   string `json:"playerId"`
	ZombieID   *int   `json:"zombieId,omitempty"`
	IsHeadshot bool   `json:"isHeadshot"`
	Points     int    `json:"points"`
}

// ZombieSpawned announces a released zombie.
type ZombieSpawned struct {
	Round int `json:"round"`
	spawn.Slot
}

// PerkActivated announces a perk purchase.
type PerkActivated struct {
	PlayerID string     `json:"playerId"`
	PerkType model.Perk `json:"perkType"`
}

// RoundStart announces a new round.
type RoundStart struct {
	Round       int `json:"round"`
	ZombieCount int `json:"zombieCount"`
}

// RoundComplete is sent to surviving participants when a round is cleared.
type RoundComplete struct {
	Round       int `json:"round"`
	Bonus       int `json:"bonus"`
	NextRoundIn int `json:"nextRoundIn"`
}

// RoomFull declines a join.
type RoomFull struct {
	RoomID     string `json:"roomId"`
	MaxPlayers int    `json:"maxPlayers"`
}

// RoundSummary is the per-participant result of completeRound.
// Bonus is non-zero only for the first claim of a cleared round.
type RoundSummary struct {
	Round        int     `json:"round"`
	Kills        int     `json:"kills"`
	Score        int     `json:"score"`
	SurvivalTime float64 `json:"survivalTime"`
	Bonus        int     `json:"bonus"`
	Claimed      bool    `json:"-"`
}

// Info is a lightweight room description for listings.
type Info struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Round      int    `json:"round"`
	Active     bool   `json:"active"`
}

package model

import "slices"

// Player defaults.
const (
	DefaultHealth    = 100
	DefaultMoveSpeed = 5.0
)

// DefaultSpawn is where every participant enters the arena.
var DefaultSpawn = Vec3{X: 0, Y: 5, Z: 0}

// Player is the per-participant soft state held by a room.
// Not safe for concurrent use: the owning room serializes access.
type Player struct {
	id      string
	account string

	position Vec3
	rotation Vec3

	health    int
	maxHealth int
	moveSpeed float64

	score int
	kills int
	perks []Perk

	// claimedRound is the last completed round whose bonus was paid out.
	claimedRound int
}

// NewPlayer creates a player at the default spawn with full default health.
// account is the verified external account; empty means unauthenticated.
func NewPlayer(id, account string) *Player {
	return &Player{
		id:        id,
		account:   account,
		position:  DefaultSpawn,
		health:    DefaultHealth,
		maxHealth: DefaultHealth,
		moveSpeed: DefaultMoveSpeed,
	}
}

func (p *Player) ID() string { return p.id }
func (p *Player) Account() string { return p.account }
func (p *Player) Position() Vec3 { return p.position }
func (p *Player) Rotation() Vec3 { return p.rotation }
func (p *Player) Health() int { return p.health }
func (p *Player) MaxHealth() int { return p.maxHealth }
func (p *Player) MoveSpeed() float64 { return p.moveSpeed }
func (p *Player) Score() int { return p.score }
func (p *Player) Kills() int { return p.kills }
func (p *Player) ClaimedRound() int { return p.claimedRound }
func (p *Player) IsAlive() bool { return p.health > 0 }
func (p *Player) Perks() []Perk { return slices.Clone(p.perks) }
func (p *Player) HasPerk(k Perk) bool { return slices.Contains(p.perks, k) }
func (p *Player) SetClaimedRound(r int) { p.claimedRound = r }

// MoveTo updates position and facing.
func (p *Player) MoveTo(position, rotation Vec3) {
	p.position = position
	p.rotation = rotation
}

// RecordKill adds one kill and the given score points.
func (p *Player) RecordKill(points int) {
	p.kills++
	p.score += points
}

// TakeDamage reduces health, floored at zero.
// Returns true if this hit downed the player.
func (p *Player) TakeDamage(amount int) bool {
	if amount <= 0 || p.health == 0 {
		return false
	}
	p.health = max(p.health-amount, 0)
	return p.health == 0
}

// Heal restores health up to the current ceiling. A downed player stays down.
func (p *Player) Heal(amount int) {
	if amount <= 0 || p.health == 0 {
		return
	}
	p.health = min(p.health+amount, p.maxHealth)
}

// AddPerk records the perk and applies its effect.
// Returns false if the perk is unknown or already owned.
func (p *Player) AddPerk(k Perk) bool {
	if !k.IsKnown() || p.HasPerk(k) {
		return false
	}
	p.perks = append(p.perks, k)

	switch k {
	case PerkJuggernog:
		p.maxHealth = JuggernogMaxHealth
		p.Heal(JuggernogRefill)
	case PerkStaminUp:
		p.moveSpeed = StaminUpMoveSpeed
	case PerkSpeedCola:
		// Reload speed lives in the client weapon system.
	}
	return true
}

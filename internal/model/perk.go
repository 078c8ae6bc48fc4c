package model

// Perk identifies a persistent per-player modifier bought during a session.
type Perk string

const (
	PerkJuggernog Perk = "juggernog"
	PerkSpeedCola Perk = "speed_cola"
	PerkStaminUp  Perk = "stamin_up"
)

// Perk effect constants.
const (
	JuggernogMaxHealth = 250
	JuggernogRefill    = 150
	StaminUpMoveSpeed  = 7.0
)

// IsKnown reports whether p is a perk the server knows how to apply.
func (p Perk) IsKnown() bool {
	switch p {
	case PerkJuggernog, PerkSpeedCola, PerkStaminUp:
		return true
	default:
		return false
	}
}

package reward

import (
	"log/slog"
)

// Arbiter binds the reward mapping to a weapon table and a randomness source.
// Not safe for concurrent use when rng is a *rand.Rand; callers serialize
// through their room lock.
type Arbiter struct {
	table WeaponTable
	rng   Rand
}

// NewArbiter creates an arbiter. A nil rng uses the process-wide source.
// A misconfigured table is logged and kept: rolls degrade to the fallback draw.
func NewArbiter(table WeaponTable, rng Rand) *Arbiter {
	if err := table.Validate(); err != nil {
		slog.Warn("mystery box table misconfigured, rolls fall back to default",
			"entries", len(table),
			"totalWeight", table.TotalWeight(),
			"error", err)
	}
	if rng == nil {
		rng = globalRand{}
	}
	return &Arbiter{table: table, rng: rng}
}

// Kill returns the reward for a kill.
func (a *Arbiter) Kill(round int, isHeadshot bool) Result {
	return Kill(round, isHeadshot)
}

// RoundComplete returns the round-completion bonus.
func (a *Arbiter) RoundComplete(round int) Result {
	return RoundComplete(round)
}

// RollMysteryBox draws a weapon from the table.
func (a *Arbiter) RollMysteryBox() WeaponDraw {
	return a.table.Roll(a.rng)
}

// Table returns the weapon table in use.
func (a *Arbiter) Table() WeaponTable {
	return a.table
}
